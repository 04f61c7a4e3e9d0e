package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
)

// Input is a caller action. Applying an input mutates state and is always
// followed by a full evaluation.
type Input interface {
	Name() string
	apply(ctx context.Context, e *Engine) error
}

// Apply applies in and returns the resulting step.
func (e *Engine) Apply(ctx context.Context, in Input) (model.Step, error) {
	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	if e.mem.Exited || e.mem.Completed {
		return e.NextStep(ctx)
	}
	e.log.Info("input", "input", in.Name())
	if err := in.apply(ctx, e); err != nil {
		return nil, err
	}
	return e.NextStep(ctx)
}

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type (
	// NextStep only evaluates.
	NextStep struct{}

	// CompleteSplash dismisses the welcome screen.
	CompleteSplash struct{}

	// RequestPermissions asks the platform for outstanding permissions.
	RequestPermissions struct{}

	// SubmitPhoneNumber sets the number to register.
	SubmitPhoneNumber struct {
		E164 string
	}

	// RequestCode asks for a code over the given transport.
	RequestCode struct {
		Transport model.Transport
	}

	// SubmitVerificationCode submits the code the user received.
	SubmitVerificationCode struct {
		Code string
	}

	// SubmitCaptcha submits a solved captcha token.
	SubmitCaptcha struct {
		Token string
	}

	// SubmitPushChallengeToken delivers a push challenge token that
	// arrived outside a wait.
	SubmitPushChallengeToken struct {
		Token string
	}

	// SubmitPin submits a PIN for whichever PIN step is showing.
	SubmitPin struct {
		Pin string
	}

	// SkipPin declines the PIN step that is showing. It also acknowledges
	// the PIN-exhausted notice.
	SkipPin struct{}

	// BeginRestore selects a restore mode on a fresh registration.
	BeginRestore struct {
		Mode model.RestoreMode
	}

	// ChooseRestoreMethod picks how previous data is brought over.
	ChooseRestoreMethod struct {
		Method model.RestoreMethod
	}

	// ProvideRootKey supplies the backup root key.
	ProvideRootKey struct {
		Key string
	}

	// SetProfileInfo supplies the profile name.
	SetProfileInfo struct {
		GivenName  string
		FamilyName string
	}

	// SetPhoneNumberDiscoverability answers the discoverability prompt.
	SetPhoneNumberDiscoverability struct {
		Discoverable bool
	}

	// DismissErrorSheet dismisses the error sheet and unblocks automatic
	// calls.
	DismissErrorSheet struct{}

	// ExitFlow abandons the flow where the mode allows it.
	ExitFlow struct{}
)

func (NextStep) Name() string                      { return "nextStep" }
func (CompleteSplash) Name() string                { return "completeSplash" }
func (RequestPermissions) Name() string            { return "requestPermissions" }
func (SubmitPhoneNumber) Name() string             { return "submitPhoneNumber" }
func (RequestCode) Name() string                   { return "requestCode" }
func (SubmitVerificationCode) Name() string        { return "submitVerificationCode" }
func (SubmitCaptcha) Name() string                 { return "submitCaptcha" }
func (SubmitPushChallengeToken) Name() string      { return "submitPushChallengeToken" }
func (SubmitPin) Name() string                     { return "submitPin" }
func (SkipPin) Name() string                       { return "skipPin" }
func (BeginRestore) Name() string                  { return "beginRestore" }
func (ChooseRestoreMethod) Name() string           { return "chooseRestoreMethod" }
func (ProvideRootKey) Name() string                { return "provideRootKey" }
func (SetProfileInfo) Name() string                { return "setProfileInfo" }
func (SetPhoneNumberDiscoverability) Name() string { return "setPhoneNumberDiscoverability" }
func (DismissErrorSheet) Name() string             { return "dismissErrorSheet" }
func (ExitFlow) Name() string                      { return "exitFlow" }

func (NextStep) apply(context.Context, *Engine) error { return nil }

func (CompleteSplash) apply(ctx context.Context, e *Engine) error {
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasShownSplash = true })
}

func (RequestPermissions) apply(ctx context.Context, e *Engine) error {
	e.c.Permissions.Request(ctx)
	outstanding := e.c.Permissions.Outstanding(ctx)
	e.withInMemory(func(m *model.InMemoryState) { m.PermissionsOutstanding = outstanding })
	return nil
}

func (in SubmitPhoneNumber) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) { m.ClearUserRetry() })
	e164 := strings.TrimSpace(in.E164)

	invalid := !e164Pattern.MatchString(e164) ||
		(e.mode.Kind == model.ModeChangingNumber && e164 == e.mode.OldE164)
	if invalid {
		e.withInMemory(func(m *model.InMemoryState) { m.PhoneNumberError = model.PhoneNumberErrorInvalid })
		return nil
	}

	if s := e.mem.Session; s != nil && s.E164 != e164 {
		e.log.Info("number changed, discarding session")
		if err := e.discardSession(ctx); err != nil {
			return err
		}
	}
	e.withInMemory(func(m *model.InMemoryState) { m.PhoneNumberError = model.PhoneNumberErrorNone })
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.E164 = e164 })
}

func (in RequestCode) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		if m.Session != nil {
			m.PendingTransport = in.Transport
		}
	})
	return nil
}

func (in SubmitVerificationCode) apply(ctx context.Context, e *Engine) error {
	code := strings.TrimSpace(in.Code)
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingCode = code
	})
	return nil
}

func (in SubmitCaptcha) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingCaptchaToken = in.Token
	})
	return nil
}

func (in SubmitPushChallengeToken) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) { m.ClearUserRetry() })
	ss := e.persisted.SessionState
	if ss == nil || in.Token == "" {
		return nil
	}
	switch ss.PushChallenge.Kind {
	case model.PushFulfilled, model.PushRejected:
		return nil
	}
	return e.receivePushToken(ctx, in.Token)
}

func (in SubmitPin) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingPin = in.Pin
	})
	return nil
}

func (SkipPin) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingPin = ""
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})

	switch {
	case e.persisted.ShowPinExhaustedNotice:
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.ShowPinExhaustedNotice = false })

	case e.mem.Session != nil:
		// The reglock PIN cannot be skipped.
		e.log.Info("pin skip ignored during session")
		return nil

	case e.persisted.AccountIdentity != nil:
		id := e.persisted.AccountIdentity
		if e.currentMasterKey() == nil && id.HasPreviouslyUsedSVR && !e.persisted.HasGivenUpOnSVRRestore {
			return e.giveUpOnSVRRestore(ctx)
		}
		e.log.Info("pin creation skipped")
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.DidBackUpToSVR = true })

	default:
		e.withInMemory(func(m *model.InMemoryState) {
			m.SVRAuthCredential = nil
			m.SVRAuthCredentialCandidates = nil
		})
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasSkippedPinEntry = true })
	}
}

func (in BeginRestore) apply(ctx context.Context, e *Engine) error {
	if e.mode.Kind != model.ModeRegistering {
		e.log.Info("restore ignored outside registration", "mode", e.mode.Kind)
		return nil
	}
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.RestoreMethod = model.RestoreMethodNone
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.RestoreMode = in.Mode })
}

func (in ChooseRestoreMethod) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.RestoreMethod = in.Method
	})
	if in.Method != model.RestoreMethodDeclined {
		return nil
	}
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		p.RestoreMode = model.RestoreModeNone
		p.SkipDeviceTransfer = true
	})
}

func (in ProvideRootKey) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) { m.ClearUserRetry() })
	key, err := keys.MasterKeyFromRootKey(in.Key)
	if err != nil {
		e.log.Warn("invalid root key", "error", err)
		e.block(model.ErrorSheetGeneric, nil, model.StepEnterBackupKey{Method: e.mem.RestoreMethod})
		return nil
	}
	if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.RecoveredSVRMasterKey = key }); err != nil {
		return err
	}
	e.withInMemory(func(m *model.InMemoryState) {
		e.deriveFromMasterKey(m, key)
		m.HasRootKey = true
		m.PinVerifiedLocally = true
	})
	return nil
}

func (in SetProfileInfo) apply(ctx context.Context, e *Engine) error {
	given := strings.TrimSpace(in.GivenName)
	if given == "" {
		return nil
	}
	info := model.ProfileInfo{GivenName: given, FamilyName: strings.TrimSpace(in.FamilyName)}
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingProfile = &info
	})
	return nil
}

func (in SetPhoneNumberDiscoverability) apply(ctx context.Context, e *Engine) error {
	d := in.Discoverable
	e.withInMemory(func(m *model.InMemoryState) {
		m.ClearUserRetry()
		m.PendingDiscoverable = &d
	})
	return nil
}

func (DismissErrorSheet) apply(ctx context.Context, e *Engine) error {
	e.withInMemory(func(m *model.InMemoryState) { m.ClearUserRetry() })
	return nil
}

func (ExitFlow) apply(ctx context.Context, e *Engine) error {
	if !e.mode.CanExit() {
		e.log.Info("exit not allowed", "mode", e.mode.Kind)
		return nil
	}
	if err := e.resetAll(ctx); err != nil {
		return err
	}
	e.withInMemory(func(m *model.InMemoryState) { m.Exited = true })
	e.log.Info("flow exited")
	return nil
}
