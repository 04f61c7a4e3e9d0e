package engine

import (
	"context"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// handleRecoveryPassword registers with the password derived from a master
// key. A key that came from the device itself is only trusted once the
// user proves the PIN locally; failed guesses are counted in persisted
// state so the limit survives relaunches.
func (e *Engine) handleRecoveryPassword(ctx context.Context, password string) (model.Step, error) {
	if e.targetE164() == "" {
		return e.phoneNumberStep(), nil
	}

	if !e.mem.PinVerifiedLocally {
		if e.mem.PendingPin == "" {
			e.setRemainingLocalGuesses()
			return e.pinStep(model.PinModeRegistrationRecoveryPassword, true), nil
		}
		pin := e.consumePin()
		if !e.c.Secrets.VerifyPin(ctx, pin) {
			guesses := e.persisted.NumLocalPinGuesses + 1
			if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.NumLocalPinGuesses = guesses }); err != nil {
				return nil, err
			}
			if guesses >= e.cfg.MaxLocalPinGuesses {
				e.log.Info("local pin guesses exhausted", "guesses", guesses)
				return nil, e.abandonRecoveryPassword(ctx)
			}
			e.wrongPin(e.cfg.MaxLocalPinGuesses - guesses)
			return e.pinStep(model.PinModeRegistrationRecoveryPassword, true), nil
		}
		e.withInMemory(func(m *model.InMemoryState) {
			m.PinVerifiedLocally = true
			m.VerifiedPin = pin
			m.RemainingPinAttempts = nil
			m.LastPinError = model.PinErrorNone
		})
	}

	return e.registerAccount(ctx, service.RegistrationMethod{RecoveryPassword: password}, e.phoneNumberStep())
}

// abandonRecoveryPassword closes PIN-based recovery for the rest of the
// flow and falls back to session verification.
func (e *Engine) abandonRecoveryPassword(ctx context.Context) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.RegRecoveryPassword = ""
		m.ReglockToken = ""
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasSkippedPinEntry = true })
}

func (e *Engine) setRemainingLocalGuesses() {
	if e.persisted.NumLocalPinGuesses == 0 || e.mem.RemainingPinAttempts != nil {
		return
	}
	remaining := e.cfg.MaxLocalPinGuesses - e.persisted.NumLocalPinGuesses
	e.withInMemory(func(m *model.InMemoryState) { m.RemainingPinAttempts = &remaining })
}

// handleCredential recovers the master key with a server-validated SVR
// credential and the user's PIN.
func (e *Engine) handleCredential(ctx context.Context, cred model.SVRAuthCredential) (model.Step, error) {
	if e.targetE164() == "" {
		return e.phoneNumberStep(), nil
	}
	if e.mem.PendingPin == "" {
		return e.pinStep(model.PinModeRestoringBackup, true), nil
	}
	pin := e.consumePin()

	res, err := callRemote(ctx, e, "restoreKeys", func(ctx context.Context) service.SVRRestoreResult {
		return e.c.SVR.RestoreKeys(ctx, pin, service.SVRAuth{Credential: &cred})
	}, classifySVR)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case service.SVRRestoreSuccess:
		return nil, e.adoptMasterKey(ctx, res.MasterKey, pin)
	case service.SVRRestoreInvalidPin:
		if res.RemainingAttempts <= 0 {
			return nil, e.pinAttemptsExhausted(ctx)
		}
		e.wrongPin(res.RemainingAttempts)
		return e.pinStep(model.PinModeRestoringBackup, true), nil
	case service.SVRRestoreBackupMissing:
		e.log.Info("no backup on secret recovery service")
		e.c.SVR.ClearKeys(ctx)
		return nil, e.pinAttemptsExhausted(ctx)
	default:
		return e.blockForOutcome(res.Kind == service.SVRRestoreNetworkError, e.pinStep(model.PinModeRestoringBackup, true)), nil
	}
}

// pinAttemptsExhausted permanently closes recovery and raises the notice
// that registration continues with SMS verification.
func (e *Engine) pinAttemptsExhausted(ctx context.Context) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.SVRAuthCredential = nil
		m.SVRAuthCredentialCandidates = nil
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		p.HasSkippedPinEntry = true
		p.ShowPinExhaustedNotice = true
	})
}

// handleCandidates asks the server which stored credential, if any, is
// still valid for the number.
func (e *Engine) handleCandidates(ctx context.Context, candidates []model.SVRAuthCredential) (model.Step, error) {
	e164 := e.targetE164()
	if e164 == "" {
		return e.phoneNumberStep(), nil
	}

	res, err := callRemote(ctx, e, "checkAuthCredentials", func(ctx context.Context) service.CredentialCheckResult {
		return e.c.Accounts.CheckAuthCredentials(ctx, e164, candidates)
	}, classifyOutcome(func(r service.CredentialCheckResult) service.OutcomeKind { return r.Kind }))
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case service.OutcomeSuccess:
		e.log.Info("credential candidates checked", "matched", res.Matched != nil, "invalid", len(res.Invalid))
		e.withInMemory(func(m *model.InMemoryState) {
			m.SVRAuthCredentialCandidates = nil
			if res.Matched != nil {
				cred := *res.Matched
				m.SVRAuthCredential = &cred
			}
		})
		return nil, nil
	case service.OutcomeNetworkError:
		return e.block(model.ErrorSheetNetwork, nil, e.phoneNumberStep()), nil
	default:
		e.withInMemory(func(m *model.InMemoryState) { m.SVRAuthCredentialCandidates = nil })
		return nil, nil
	}
}

// adoptMasterKey stores a key recovered from the secret recovery service
// and derives the recovery password and reglock token from it.
func (e *Engine) adoptMasterKey(ctx context.Context, key []byte, pin string) error {
	if err := e.withPersisted(ctx, func(p *model.PersistedState) {
		p.RecoveredSVRMasterKey = append([]byte(nil), key...)
		p.RestoredFromSVR = true
	}); err != nil {
		return err
	}
	e.withInMemory(func(m *model.InMemoryState) {
		e.deriveFromMasterKey(m, key)
		m.PinVerifiedLocally = true
		m.VerifiedPin = pin
		m.SVRAuthCredential = nil
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})
	return nil
}

// consumePin takes the pending PIN in its normalized form.
func (e *Engine) consumePin() string {
	pin := keys.NormalizePin(e.mem.PendingPin)
	e.withInMemory(func(m *model.InMemoryState) { m.PendingPin = "" })
	return pin
}

func (e *Engine) wrongPin(remaining int) {
	e.withInMemory(func(m *model.InMemoryState) {
		m.RemainingPinAttempts = &remaining
		m.LastPinError = model.PinErrorWrongPin
	})
}
