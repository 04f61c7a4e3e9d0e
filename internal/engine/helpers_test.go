package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
	"github.com/roach88/registrar/internal/testutil"
)

const (
	testE164   = "+15551234567"
	testACI    = "aci-0001"
	testPin    = "1234"
	testAttmpt = "attempt-0001"
)

var testMasterKey = []byte("0123456789abcdef0123456789abcdef")

// env is one engine wired to fakes, a fake clock and a memory store.
type env struct {
	t       *testing.T
	ctx     context.Context
	clock   *testutil.FakeTime
	fakes   *testutil.FakeServices
	store   *store.MemoryStore
	metrics *Metrics
	engine  *Engine
}

func collaborators(f *testutil.FakeServices) Collaborators {
	return Collaborators{
		Sessions:       f,
		SVR:            f,
		Accounts:       f,
		PushTokens:     f,
		PushChallenges: f,
		Permissions:    f,
		PreKeys:        f,
		Storage:        f,
		Profiles:       f,
		Usernames:      f,
		PNI:            f,
		Secrets:        f,
		Exporter:       f,
	}
}

func newEnv(t *testing.T, mode model.Mode, opts ...Option) *env {
	t.Helper()
	clock := testutil.NewFakeTime(testutil.Epoch)
	fakes := testutil.NewFakeServices(clock)
	st := store.NewMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())

	base := []Option{
		WithTimeSource(clock),
		WithAttemptIDGenerator(testutil.NewFixedAttemptGenerator(testAttmpt)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics),
	}
	e := New(st, collaborators(fakes), mode, append(base, opts...)...)
	return &env{t: t, ctx: context.Background(), clock: clock, fakes: fakes, store: st, metrics: metrics, engine: e}
}

func (v *env) next() model.Step {
	v.t.Helper()
	step, err := v.engine.NextStep(v.ctx)
	require.NoError(v.t, err)
	require.NotNil(v.t, step)
	return step
}

func (v *env) apply(in Input) model.Step {
	v.t.Helper()
	step, err := v.engine.Apply(v.ctx, in)
	require.NoError(v.t, err)
	require.NotNil(v.t, step)
	return step
}

// session returns a fresh unverified session for testE164.
func (v *env) session(id string) *model.Session {
	return testutil.NewSession(id, testE164, v.clock.Now())
}

func requireStep[T model.Step](t *testing.T, step model.Step) T {
	t.Helper()
	got, ok := step.(T)
	require.Truef(t, ok, "expected %T, got %s", *new(T), model.Describe(step))
	return got
}
