package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
	"github.com/roach88/registrar/internal/testutil"
)

func TestRunner_SerializesInputs(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := newEnv(t, model.Registering())
	s := v.session("s1")
	v.fakes.BeginSessionResults = []service.SessionResult{testutil.SessionOK(s)}
	v.fakes.RequestCodeResults = []service.SessionResult{testutil.SessionOK(s)}

	r := NewRunner(v.engine)
	r.Start(v.ctx)
	defer r.Stop()

	step, err := r.Submit(v.ctx, NextStep{})
	require.NoError(t, err)
	requireStep[model.StepPhoneNumberEntry](t, step)

	step, err = r.Submit(v.ctx, SubmitPhoneNumber{E164: testE164})
	require.NoError(t, err)
	requireStep[model.StepVerificationCodeEntry](t, step)
}

func TestRunner_ConcurrentSubmitters(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := newEnv(t, model.Registering())
	r := NewRunner(v.engine)
	r.Start(v.ctx)
	defer r.Stop()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			step, err := r.Submit(v.ctx, NextStep{})
			if err == nil {
				_, ok := step.(model.StepPhoneNumberEntry)
				if !ok {
					err = assert.AnError
				}
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Empty(t, v.fakes.Calls())
}

func TestRunner_SubmitAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := newEnv(t, model.Registering())
	r := NewRunner(v.engine)
	r.Start(v.ctx)
	r.Stop()

	_, err := r.Submit(v.ctx, NextStep{})
	assert.ErrorIs(t, err, ErrRunnerStopped)
}

func TestRunner_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRunner(newEnv(t, model.Registering()).engine)
	r.Stop()
	r.Stop()

	_, err := r.Submit(context.Background(), NextStep{})
	assert.ErrorIs(t, err, ErrRunnerStopped)
}

func TestRunner_ContextCancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := newEnv(t, model.Registering())
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(v.engine)
	r.Start(ctx)

	cancel()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}

	_, err := r.Submit(context.Background(), NextStep{})
	assert.ErrorIs(t, err, ErrRunnerStopped)
}
