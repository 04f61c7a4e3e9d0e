package engine

import (
	"context"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// registerAccount sends the create-account or change-number request and
// folds the response into state. behind is the step an error sheet covers.
func (e *Engine) registerAccount(ctx context.Context, method service.RegistrationMethod, behind model.Step) (model.Step, error) {
	if e.mem.AuthToken == "" {
		token, err := keys.NewAuthToken()
		if err != nil {
			return nil, err
		}
		e.withInMemory(func(m *model.InMemoryState) { m.AuthToken = token })
	}

	req := service.AccountRequest{
		Method:    method,
		E164:      e.targetE164(),
		AuthToken: e.mem.AuthToken,
		TwoFA:     e.twoFA(),
		// A chosen restore method means the user already answered the
		// transfer question.
		SkipDeviceTransfer: e.persisted.SkipDeviceTransfer || e.mode.Kind != model.ModeRegistering || e.mem.RestoreMethod != model.RestoreMethodNone,
	}
	e.log.Info("account request",
		"method", methodName(method),
		"two_fa", req.TwoFA.Kind,
		"skip_device_transfer", req.SkipDeviceTransfer,
	)

	var (
		res service.AccountResponse
		err error
	)
	if e.mode.Kind == model.ModeChangingNumber {
		if step, err := e.ensurePendingPNI(ctx, req.E164, behind); step != nil || err != nil {
			return step, err
		}
		req.PNI = e.mode.PendingPNI
		req.AuthToken = e.mode.OldAuthToken
		auth := service.AccountAuth{ACI: e.mode.LocalAccountID, DeviceID: 1, AuthToken: e.mode.OldAuthToken}
		res, err = callRemote(ctx, e, "changeNumber", func(ctx context.Context) service.AccountResponse {
			return e.c.Accounts.ChangeNumber(ctx, auth, req)
		}, classifyAccount)
	} else {
		res, err = callRemote(ctx, e, "createAccount", func(ctx context.Context) service.AccountResponse {
			return e.c.Accounts.CreateAccount(ctx, req)
		}, classifyAccount)
	}
	if err != nil {
		return nil, err
	}

	if e.mode.Kind == model.ModeChangingNumber {
		switch res.Kind {
		case service.AccountSuccess:
		case service.AccountNetworkError:
			// The request may have reached the server; reconcile before
			// anything is resent.
			e.withInMemory(func(m *model.InMemoryState) { m.NeedsPNIReconciliation = true })
		default:
			if err := e.discardPendingPNI(ctx); err != nil {
				return nil, err
			}
		}
	}

	return e.applyAccountResponse(ctx, method, req, res, behind)
}

func (e *Engine) applyAccountResponse(ctx context.Context, method service.RegistrationMethod, req service.AccountRequest, res service.AccountResponse, behind model.Step) (model.Step, error) {
	viaPassword := method.RecoveryPassword != ""

	switch res.Kind {
	case service.AccountSuccess:
		if res.Identity == nil {
			return e.block(model.ErrorSheetGeneric, nil, behind), nil
		}
		identity := *res.Identity
		identity.AuthToken = req.AuthToken
		e.log.Info("account registered", "aci", identity.ACI, "e164", identity.E164)
		return nil, e.adoptIdentity(ctx, identity)

	case service.AccountReglockFailure:
		return e.handleReglockFailure(ctx, method, req, res.Reglock, behind)

	case service.AccountRejectedVerificationMethod:
		if viaPassword {
			e.log.Info("recovery password rejected")
			return nil, e.dropRecoveryPassword(ctx)
		}
		return e.invalidateSession(ctx)

	case service.AccountDeviceTransferPossible:
		if e.mode.Kind == model.ModeRegistering && !req.SkipDeviceTransfer {
			return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.RestoreMode = model.RestoreModeQuick })
		}
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.SkipDeviceTransfer = true })

	case service.AccountRetryAfter:
		until := e.now().Add(res.RetryAfter)
		return e.block(model.ErrorSheetRateLimited, &until, behind), nil

	case service.AccountNetworkError:
		return e.block(model.ErrorSheetNetwork, nil, behind), nil

	default:
		if viaPassword {
			// The password may be stale rather than wrong.
			return nil, e.dropRecoveryPassword(ctx)
		}
		return e.block(model.ErrorSheetGeneric, nil, behind), nil
	}
}

// handleReglockFailure applies the reglock rules: retry once with the
// token when it was not sent, distrust the master key when it was, and
// otherwise start the session's PIN challenge.
func (e *Engine) handleReglockFailure(ctx context.Context, method service.RegistrationMethod, req service.AccountRequest, details *service.ReglockFailure, behind model.Step) (model.Step, error) {
	sentToken := req.TwoFA.Kind == service.TwoFAV2

	switch {
	case !sentToken && e.mem.ReglockToken != "":
		e.log.Info("number is reglocked, retrying with token")
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.ReglockKnownEnabled = true })

	case sentToken:
		e.log.Warn("reglock token rejected, discarding local recovery material")
		if e.mode.Kind == model.ModeChangingNumber {
			e.withInMemory(func(m *model.InMemoryState) {
				m.RegRecoveryPassword = ""
				m.ReglockToken = ""
			})
			return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.HasSkippedPinEntry = true })
		}
		return nil, e.wipeSVRMaterial(ctx)

	case method.SessionID != "":
		// Without the lock's details there is no PIN challenge to start.
		if details == nil {
			e.log.Warn("reglock failure without details")
			return e.block(model.ErrorSheetGeneric, nil, behind), nil
		}
		expiry := e.now().Add(details.TimeRemaining)
		lock := model.ReglockState{Kind: model.ReglockLocked, Expiry: expiry}
		if details.Credential.Username != "" {
			cred := details.Credential
			lock.Credential = &cred
		} else {
			lock.Kind = model.ReglockWaitingTimeout
		}
		if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.ReglockKnownEnabled = true }); err != nil {
			return nil, err
		}
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) { ss.Reglock = lock })

	default:
		return nil, e.abandonRecoveryPassword(ctx)
	}
}

// dropRecoveryPassword forgets the derived password so re-resolution can
// try a credential or the session path. After a successful restore from
// the recovery service in this flow there is nothing better to try, so
// the flow falls back to session verification.
func (e *Engine) dropRecoveryPassword(ctx context.Context) error {
	if e.persisted.RestoredFromSVR {
		return e.abandonRecoveryPassword(ctx)
	}
	e.withInMemory(func(m *model.InMemoryState) { m.RegRecoveryPassword = "" })
	return nil
}

// twoFA picks the reglock proof: the token when reglock is known to be on,
// else a legacy PIN, else none.
func (e *Engine) twoFA() service.TwoFAMode {
	switch {
	case e.persisted.ReglockKnownEnabled && e.mem.ReglockToken != "":
		return service.TwoFAMode{Kind: service.TwoFAV2, Token: e.mem.ReglockToken}
	case e.mem.LegacyPin != "":
		return service.TwoFAMode{Kind: service.TwoFAV1, Pin: e.mem.LegacyPin}
	default:
		return service.TwoFAMode{Kind: service.TwoFANone}
	}
}

// ensurePendingPNI generates and persists the PNI bundle for the target
// number before the change-number request goes out.
func (e *Engine) ensurePendingPNI(ctx context.Context, e164 string, behind model.Step) (model.Step, error) {
	if p := e.mode.PendingPNI; p != nil && p.NewE164 == e164 {
		return nil, nil
	}
	state, err := e.c.PNI.GeneratePNI(ctx, e164)
	if err != nil {
		e.log.Error("generate pni", "error", err)
		return e.block(model.ErrorSheetGeneric, nil, behind), nil
	}
	mode := e.mode.Clone()
	mode.PendingPNI = &state
	return nil, e.saveMode(ctx, mode)
}

func (e *Engine) discardPendingPNI(ctx context.Context) error {
	if e.mode.PendingPNI == nil {
		return nil
	}
	mode := e.mode.Clone()
	mode.PendingPNI = nil
	return e.saveMode(ctx, mode)
}

func methodName(m service.RegistrationMethod) string {
	if m.RecoveryPassword != "" {
		return "recoveryPassword"
	}
	return "session"
}
