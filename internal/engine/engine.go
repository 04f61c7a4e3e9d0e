package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
	"github.com/roach88/registrar/internal/store"
)

// Config holds the engine's tunables.
type Config struct {
	MaxNetworkRetries  int
	AutoRetryThreshold time.Duration
	PushMinWait        time.Duration
	PushMaxWait        time.Duration
	MaxLocalPinGuesses int
	MaxResolutions     int
	RetryBaseDelay     time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxNetworkRetries:  3,
		AutoRetryThreshold: 5 * time.Second,
		PushMinWait:        3 * time.Second,
		PushMaxWait:        30 * time.Second,
		MaxLocalPinGuesses: 10,
		MaxResolutions:     32,
		RetryBaseDelay:     500 * time.Millisecond,
	}
}

// Collaborators bundles everything the engine calls out to.
type Collaborators struct {
	Sessions       service.SessionService
	SVR            service.SVR
	Accounts       service.AccountService
	PushTokens     service.PushTokens
	PushChallenges service.PushChallenges
	Permissions    service.Permissions
	PreKeys        service.PreKeys
	Storage        service.StorageService
	Profiles       service.Profiles
	Usernames      service.Usernames
	PNI            service.PNIManager
	Secrets        service.LocalSecrets
	Exporter       service.AccountExporter
}

// Engine is the registration orchestrator.
//
// The engine is not safe for concurrent use: callers serialize inputs,
// typically through a Runner. Every input mutates state and then runs a
// full evaluation that returns exactly one step.
//
// Evaluation is a bounded trampoline. Each iteration resolves one pathway
// and runs its handler; a handler either returns a step or mutates state
// and hands control back for re-resolution.
type Engine struct {
	store   store.Store
	c       Collaborators
	cfg     Config
	time    TimeSource
	clock   *Clock
	ids     AttemptIDGenerator
	metrics *Metrics
	log     *slog.Logger

	initialMode model.Mode
	mode        model.Mode
	persisted   model.PersistedState
	mem         model.InMemoryState
	attemptID   string

	// masterKey is the key present on the device at launch.
	masterKey []byte
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default tunables.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithTimeSource injects wall time.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) { e.time = ts }
}

// WithAttemptIDGenerator injects the attempt id generator.
func WithAttemptIDGenerator(g AttemptIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithMetrics enables metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine. initial is the mode used when the store holds
// none; a stored mode always wins so an interrupted flow resumes as it was.
func New(st store.Store, c Collaborators, initial model.Mode, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		c:           c,
		cfg:         DefaultConfig(),
		time:        SystemTime{},
		clock:       NewClock(),
		ids:         UUIDv7Generator{},
		log:         slog.Default(),
		initialMode: initial.Clone(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the active mode.
func (e *Engine) Mode() model.Mode { return e.mode.Clone() }

// Persisted returns a copy of the persisted state.
func (e *Engine) Persisted() model.PersistedState { return e.persisted.Clone() }

// InMemory returns a copy of the in-memory state.
func (e *Engine) InMemory() model.InMemoryState { return e.mem.Clone() }

// NextStep evaluates and returns the current step.
func (e *Engine) NextStep(ctx context.Context) (model.Step, error) {
	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	seq := e.clock.Next()
	step, err := e.evaluate(ctx)
	if err != nil {
		e.log.Error("evaluation failed", "eval_seq", seq, "error", err)
		return nil, err
	}
	e.metrics.step(step.StepName())
	e.log.Info("step", "eval_seq", seq, "step", model.Describe(step))
	return step, nil
}

// evaluate is the trampoline.
func (e *Engine) evaluate(ctx context.Context) (model.Step, error) {
	quota := NewQuotaEnforcer(e.cfg.MaxResolutions)
	cycles := NewCycleDetector()

	for {
		if err := quota.Check(e.attemptID); err != nil {
			return nil, err
		}

		switch {
		case e.mem.Exited:
			return model.StepExited{}, nil
		case e.mem.Completed:
			return model.StepDone{}, nil
		case e.mem.AwaitingUserRetry && e.mem.ErrorSheet != nil:
			return e.sheetStep(), nil
		}

		var (
			name string
			step model.Step
			err  error
		)
		switch {
		case e.mem.NeedsPNIReconciliation:
			name = "pniReconciliation"
		case e.mem.SessionRestorePending:
			name = "sessionRestore"
		case e.persisted.ShowPinExhaustedNotice:
			return model.StepPinAttemptsExhaustedWithoutReglock{}, nil
		}

		var pathway model.Pathway
		if name == "" {
			pathway = Resolve(e.mode, e.persisted, e.mem)
			name = pathway.Name()
			e.metrics.pathway(name)
			e.log.Debug("pathway resolved", "pathway", name)
		}

		fp, err := model.Fingerprint(e.mode, e.persisted, e.mem)
		if err != nil {
			return nil, err
		}
		if cycles.WouldCycle(name, fp) {
			return nil, NewCycleError(e.attemptID, name, fp)
		}
		cycles.Record(name, fp)

		switch name {
		case "pniReconciliation":
			step, err = e.reconcilePNI(ctx)
		case "sessionRestore":
			step, err = e.restoreSession(ctx)
		default:
			step, err = e.dispatch(ctx, pathway)
		}
		if err != nil {
			return nil, err
		}
		if step != nil {
			return step, nil
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, p model.Pathway) (model.Step, error) {
	switch v := p.(type) {
	case model.PathOpening:
		return e.handleOpening(ctx)
	case model.PathQuickRestore:
		return e.handleQuickRestore(ctx)
	case model.PathManualRestore:
		return e.handleManualRestore(ctx)
	case model.PathRegistrationRecoveryPassword:
		return e.handleRecoveryPassword(ctx, v.Password)
	case model.PathSVRAuthCredential:
		return e.handleCredential(ctx, v.Credential)
	case model.PathSVRAuthCredentialCandidates:
		return e.handleCandidates(ctx, v.Candidates)
	case model.PathSession:
		return e.handleSession(ctx, v.Session)
	case model.PathProfileSetup:
		return e.handleProfileSetup(ctx, v.Identity)
	default:
		panic("unhandled pathway " + p.Name())
	}
}

// restore loads state once per launch and snapshots the collaborators.
// A corrupt state record is reset to blank once.
func (e *Engine) restore(ctx context.Context) error {
	if e.mem.HasRestoredState {
		return nil
	}
	e.attemptID = e.ids.Generate()
	e.log = e.log.With("attempt_id", e.attemptID)

	mode, err := e.store.LoadMode(ctx)
	switch {
	case err == nil:
		e.mode = mode
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupt):
		if errors.Is(err, store.ErrCorrupt) {
			e.log.Warn("stored mode corrupt, using initial mode", "error", err)
			e.metrics.reset("corrupt_mode")
		}
		e.mode = e.initialMode.Clone()
		if err := e.store.SaveMode(ctx, &e.mode); err != nil {
			return NewStoreError(e.attemptID, "save mode", err)
		}
	default:
		return NewStoreError(e.attemptID, "load mode", err)
	}

	persisted, err := e.store.Load(ctx)
	switch {
	case err == nil:
		e.persisted = persisted
	case errors.Is(err, store.ErrNotFound):
		e.persisted = model.NewPersistedState()
	case errors.Is(err, store.ErrCorrupt):
		e.log.Warn("persisted state corrupt, starting blank", "error", err)
		e.metrics.reset("corrupt_state")
		if err := e.store.Clear(ctx); err != nil {
			return NewStoreError(e.attemptID, "clear corrupt state", err)
		}
		e.persisted = model.NewPersistedState()
	default:
		return NewStoreError(e.attemptID, "load state", err)
	}

	e.snapshot(ctx)
	e.log.Info("state restored",
		"mode", e.mode.Kind,
		"has_session", e.persisted.SessionState != nil,
		"has_identity", e.persisted.AccountIdentity != nil,
	)

	if e.c.Secrets.ReglockEnabled(ctx) && !e.persisted.ReglockKnownEnabled {
		return e.withPersisted(ctx, func(p *model.PersistedState) {
			p.ReglockKnownEnabled = true
		})
	}
	return nil
}

// snapshot rebuilds in-memory state from persisted and collaborator state.
// The derived password and token are fixed from here on unless a recovery
// in this flow yields a new master key.
func (e *Engine) snapshot(ctx context.Context) {
	mem := model.InMemoryState{HasRestoredState: true}
	if e.mode.Kind == model.ModeRegistering {
		mem.PermissionsOutstanding = e.c.Permissions.Outstanding(ctx)
	}
	mem.LegacyPin = e.c.Secrets.LegacyPin(ctx)
	mem.HasConfirmedUsername = e.c.Secrets.HasConfirmedUsername(ctx)
	mem.SVRAuthCredentialCandidates = e.c.Secrets.SVRAuthCredentials(ctx)
	mem.SessionRestorePending = e.persisted.SessionState != nil
	mem.NeedsPNIReconciliation = e.mode.Kind == model.ModeChangingNumber && e.mode.PendingPNI != nil

	e.masterKey = e.c.Secrets.MasterKey(ctx)
	key := e.persisted.RecoveredSVRMasterKey
	if key == nil {
		key = e.masterKey
	}
	if key != nil {
		e.deriveFromMasterKey(&mem, key)
	}
	// A key recovered earlier in this flow was unlocked with the PIN.
	mem.PinVerifiedLocally = e.persisted.RestoredFromSVR
	e.mem = mem
}

func (e *Engine) deriveFromMasterKey(mem *model.InMemoryState, key []byte) {
	password, err := keys.RegistrationRecoveryPassword(key)
	if err != nil {
		e.log.Warn("derive recovery password", "error", err)
		return
	}
	token, err := keys.ReglockToken(key)
	if err != nil {
		e.log.Warn("derive reglock token", "error", err)
		return
	}
	mem.RegRecoveryPassword = password
	mem.ReglockToken = token
}

// currentMasterKey is the key recovered in this flow, else the device key.
func (e *Engine) currentMasterKey() []byte {
	if e.persisted.RecoveredSVRMasterKey != nil {
		return e.persisted.RecoveredSVRMasterKey
	}
	return e.masterKey
}

func (e *Engine) now() time.Time {
	return e.time.Now()
}
