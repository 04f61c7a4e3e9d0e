package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/registrar/internal/engine"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
	"github.com/roach88/registrar/internal/testutil"
)

// DefaultAttemptID is used when a scenario does not fix one.
const DefaultAttemptID = "scenario-attempt"

// Harness is the test execution engine.
// It drives one engine against scripted fakes, a fake clock and an
// in-memory store.
type Harness struct {
	store  *store.MemoryStore
	engine *engine.Engine
	fakes  *testutil.FakeServices
	clock  *testutil.FakeTime
	logger *slog.Logger

	// seen is the number of fake calls already traced.
	seen int
}

// Option configures a Harness.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store and fakes, with the
// clock stopped at testutil.Epoch, so the same scenario always produces
// the same trace.
//
// Execution flow:
// 1. Script the fakes from the device and server sections
// 2. Apply each flow input, tracing calls and the returned step
// 3. Check expect clauses and assertions
// 4. Return result with pass/fail, trace, and errors
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := newHarness(scenario, o.logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if err := h.collectState(ctx, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	clock := testutil.NewFakeTime(testutil.Epoch)
	fakes := testutil.NewFakeServices(clock)

	if err := scenario.Device.install(fakes); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	sc, err := scenario.Server.build(clock.Now())
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	sc.install(fakes)

	attemptID := scenario.AttemptID
	if attemptID == "" {
		attemptID = DefaultAttemptID
	}

	st := store.NewMemoryStore()
	eng := engine.New(st, Collaborators(fakes), scenario.Mode.model(),
		engine.WithTimeSource(clock),
		engine.WithAttemptIDGenerator(testutil.NewFixedAttemptGenerator(attemptID)),
		engine.WithLogger(logger),
	)

	return &Harness{
		store:  st,
		engine: eng,
		fakes:  fakes,
		clock:  clock,
		logger: logger,
	}, nil
}

// Collaborators wires every engine collaborator to f.
func Collaborators(f *testutil.FakeServices) engine.Collaborators {
	return engine.Collaborators{
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

// executeFlow applies every flow input and validates expect clauses.
//
// Each step:
// 1. Converts the step to an engine input
// 2. Applies it and traces the input name
// 3. Traces the collaborator calls the input caused
// 4. Traces the returned step and compares it with expect
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, fs := range flow {
		in, err := buildInput(fs)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		result.AddTrace(EventInput, in.Name())
		step, err := h.engine.Apply(ctx, in)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, in.Name(), err)
		}
		h.traceCalls(result)

		desc := model.Describe(step)
		result.AddTrace(EventStep, desc)
		result.FinalStep = desc

		if fs.Expect != "" && fs.Expect != desc {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected step %s, got %s", i, fs.Input, fs.Expect, desc))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"input", in.Name(),
			"result", desc,
		)
	}
	return nil
}

// traceCalls appends the fake calls made since the last trace.
func (h *Harness) traceCalls(result *Result) {
	calls := h.fakes.Calls()
	for _, c := range calls[h.seen:] {
		result.AddTrace(EventCall, c.Name)
	}
	h.seen = len(calls)
}

// collectState records what the flow left behind.
func (h *Harness) collectState(ctx context.Context, result *Result) error {
	result.Exported = append(result.Exported, h.fakes.Exported...)

	_, modeErr := h.store.LoadMode(ctx)
	_, stateErr := h.store.Load(ctx)
	for _, err := range []error{modeErr, stateErr} {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("inspect store: %w", err)
		}
	}
	result.StoreCleared = errors.Is(modeErr, store.ErrNotFound) && errors.Is(stateErr, store.ErrNotFound)
	return nil
}
