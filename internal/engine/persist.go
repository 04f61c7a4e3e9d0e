package engine

import (
	"context"
	"time"

	"github.com/roach88/registrar/internal/model"
)

// withPersisted is the only way persisted state changes. The mutation runs
// inside the store's transaction; the cached copy is replaced with what
// was written and the changed field names are logged.
func (e *Engine) withPersisted(ctx context.Context, mutate func(*model.PersistedState)) error {
	before := e.persisted
	updated, err := e.store.Update(ctx, func(p *model.PersistedState) error {
		mutate(p)
		return nil
	})
	if err != nil {
		return NewStoreError(e.attemptID, "update state", err)
	}
	e.persisted = updated
	if changed := model.Diff(before, updated); len(changed) > 0 {
		e.log.Debug("persisted state changed", "changed", changed, "revision", updated.Revision)
	}
	return nil
}

// withInMemory is the only way in-memory state changes.
func (e *Engine) withInMemory(mutate func(*model.InMemoryState)) {
	before := e.mem.Clone()
	mutate(&e.mem)
	if changed := model.Diff(before, e.mem); len(changed) > 0 {
		e.log.Debug("in-memory state changed", "changed", changed)
	}
}

// saveMode persists a new mode.
func (e *Engine) saveMode(ctx context.Context, mode model.Mode) error {
	if err := e.store.SaveMode(ctx, &mode); err != nil {
		return NewStoreError(e.attemptID, "save mode", err)
	}
	e.log.Info("mode changed", "from", e.mode.Kind, "to", mode.Kind)
	e.mode = mode
	return nil
}

// block records an error sheet and stops automatic calls until the user
// dismisses it or submits new input.
func (e *Engine) block(kind model.ErrorSheetKind, until *time.Time, behind model.Step) model.Step {
	e.withInMemory(func(m *model.InMemoryState) {
		m.ErrorSheet = &model.ErrorSheet{Kind: kind, Until: until, Behind: behind}
		m.AwaitingUserRetry = true
	})
	e.log.Info("error sheet", "kind", kind, "behind", model.Describe(behind))
	return e.sheetStep()
}

func (e *Engine) sheetStep() model.Step {
	s := e.mem.ErrorSheet
	return model.StepShowErrorSheet{Kind: s.Kind, Until: s.Until, Behind: s.Behind}
}

// blockForOutcome maps a failed call to a network or generic sheet.
func (e *Engine) blockForOutcome(network bool, behind model.Step) model.Step {
	if network {
		return e.block(model.ErrorSheetNetwork, nil, behind)
	}
	return e.block(model.ErrorSheetGeneric, nil, behind)
}

// discardSession forgets the session. Outside re-registration the number
// is forgotten too so the caller shows phone entry again.
func (e *Engine) discardSession(ctx context.Context) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.Session = nil
		m.PendingCode = ""
		m.PendingCaptchaToken = ""
		m.PendingTransport = ""
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		p.SessionState = nil
		if e.mode.Kind != model.ModeReRegistering {
			p.E164 = ""
		}
	})
}

// wipeSVRMaterial drops every locally cached secret-recovery artifact.
// Never used while changing number, where the material stays valid for
// the current number.
func (e *Engine) wipeSVRMaterial(ctx context.Context) error {
	if e.mode.Kind == model.ModeChangingNumber {
		return nil
	}
	e.c.SVR.ClearKeys(ctx)
	e.masterKey = nil
	e.withInMemory(func(m *model.InMemoryState) {
		m.RegRecoveryPassword = ""
		m.ReglockToken = ""
		m.SVRAuthCredential = nil
		m.SVRAuthCredentialCandidates = nil
		m.PinVerifiedLocally = false
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		p.RecoveredSVRMasterKey = nil
		p.RestoredFromSVR = false
		p.HasSkippedPinEntry = true
	})
}

// resetAll wipes persisted orchestration state and the mode, and starts
// in-memory state from scratch.
func (e *Engine) resetAll(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return NewStoreError(e.attemptID, "clear state", err)
	}
	if err := e.store.SaveMode(ctx, nil); err != nil {
		return NewStoreError(e.attemptID, "clear mode", err)
	}
	e.persisted = model.NewPersistedState()
	e.masterKey = nil
	e.mem = model.InMemoryState{HasRestoredState: true}
	return nil
}

// targetE164 is the number under registration.
func (e *Engine) targetE164() string {
	if e.persisted.E164 != "" {
		return e.persisted.E164
	}
	if e.mode.Kind == model.ModeReRegistering {
		return e.mode.E164
	}
	return ""
}

func (e *Engine) phoneNumberStep() model.Step {
	step := model.StepPhoneNumberEntry{
		E164:            e.targetE164(),
		ValidationError: e.mem.PhoneNumberError,
		CanExit:         e.mode.CanExit(),
	}
	switch e.mode.Kind {
	case model.ModeReRegistering:
		step.Mode = model.PhoneNumberReRegistration
	case model.ModeChangingNumber:
		step.Mode = model.PhoneNumberChange
		step.OldE164 = e.mode.OldE164
	default:
		step.Mode = model.PhoneNumberInitial
	}
	return step
}

func (e *Engine) pinStep(mode model.PinEntryMode, canSkip bool) model.Step {
	var remaining *int
	if e.mem.RemainingPinAttempts != nil {
		n := *e.mem.RemainingPinAttempts
		remaining = &n
	}
	return model.StepPinEntry{
		Mode:              mode,
		RemainingAttempts: remaining,
		Error:             e.mem.LastPinError,
		CanSkip:           canSkip,
		CanExit:           e.mode.CanExit(),
	}
}
