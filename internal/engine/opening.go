package engine

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// handleOpening walks splash, permissions and phone entry, then begins a
// verification session for the number.
func (e *Engine) handleOpening(ctx context.Context) (model.Step, error) {
	if e.mode.Kind == model.ModeRegistering && e.mem.PermissionsOutstanding {
		if !e.persisted.HasShownSplash {
			return model.StepSplash{}, nil
		}
		return model.StepPermissions{}, nil
	}

	e164 := e.targetE164()
	if e164 == "" {
		return e.phoneNumberStep(), nil
	}
	if e.persisted.E164 == "" {
		if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.E164 = e164 }); err != nil {
			return nil, err
		}
	}

	pushToken, hasPush := e.c.PushTokens.PushToken(ctx)
	res, err := callRemote(ctx, e, "beginSession", func(ctx context.Context) service.SessionResult {
		return e.c.Sessions.BeginSession(ctx, e164, pushToken)
	}, classifySession)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case service.SessionSuccess:
		if res.Session == nil {
			return e.block(model.ErrorSheetGeneric, nil, e.phoneNumberStep()), nil
		}
		now := e.now()
		state := model.NewSessionState(res.Session.ID)
		if hasPush {
			state.PushChallenge = model.PushChallengeState{Kind: model.PushWaiting, RequestedAt: now}
		} else {
			state.PushChallenge = model.PushChallengeState{Kind: model.PushIneligible}
		}
		e.withInMemory(func(m *model.InMemoryState) {
			m.Session = res.Session.Clone()
			m.PhoneNumberError = model.PhoneNumberErrorNone
		})
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.SessionState = state })

	case service.SessionRejected:
		e.withInMemory(func(m *model.InMemoryState) { m.PhoneNumberError = model.PhoneNumberErrorInvalid })
		if e.mode.Kind == model.ModeReRegistering {
			// The number comes from the mode; re-polling must not resend.
			return e.block(model.ErrorSheetGeneric, nil, e.phoneNumberStep()), nil
		}
		if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.E164 = "" }); err != nil {
			return nil, err
		}
		step := e.phoneNumberStep().(model.StepPhoneNumberEntry)
		step.E164 = e164
		return step, nil

	case service.SessionRateLimited:
		until := e.now().Add(res.RetryAfter)
		step := e.phoneNumberStep().(model.StepPhoneNumberEntry)
		step.RateLimitedUntil = &until
		return e.block(model.ErrorSheetRateLimited, &until, step), nil

	default:
		return e.blockForOutcome(res.Kind == service.SessionNetworkError, e.phoneNumberStep()), nil
	}
}

// restoreSession re-attaches the session persisted by a previous launch.
func (e *Engine) restoreSession(ctx context.Context) (model.Step, error) {
	id := e.persisted.SessionState.SessionID
	res, err := callRemote(ctx, e, "restoreSession", func(ctx context.Context) service.SessionResult {
		return e.c.Sessions.RestoreSession(ctx, id)
	}, classifySession)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Session != nil && res.Kind != service.SessionNotFound:
		e.withInMemory(func(m *model.InMemoryState) {
			m.Session = res.Session.Clone()
			m.SessionRestorePending = false
		})
		return nil, nil
	case res.Kind == service.SessionNotFound || res.Kind == service.SessionRejected:
		e.log.Info("persisted session expired", "session_id", id)
		e.withInMemory(func(m *model.InMemoryState) { m.SessionRestorePending = false })
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.SessionState = nil })
	default:
		return e.blockForOutcome(res.Kind == service.SessionNetworkError, e.phoneNumberStep()), nil
	}
}

// reconcilePNI settles a change-number request interrupted by a previous
// launch. The request may have succeeded, so the server is asked which
// number the account now has before anything is resent.
func (e *Engine) reconcilePNI(ctx context.Context) (model.Step, error) {
	pending := e.mode.PendingPNI
	if pending == nil {
		e.withInMemory(func(m *model.InMemoryState) { m.NeedsPNIReconciliation = false })
		return nil, nil
	}

	auth := service.AccountAuth{ACI: e.mode.LocalAccountID, DeviceID: 1, AuthToken: e.mode.OldAuthToken}
	res, err := callRemote(ctx, e, "whoAmI", func(ctx context.Context) service.WhoAmIResult {
		return e.c.Accounts.WhoAmI(ctx, auth)
	}, classifyOutcome(func(r service.WhoAmIResult) service.OutcomeKind { return r.Kind }))
	if err != nil {
		return nil, err
	}
	if res.Kind != service.OutcomeSuccess {
		return e.blockForOutcome(res.Kind == service.OutcomeNetworkError, e.phoneNumberStep()), nil
	}

	e.withInMemory(func(m *model.InMemoryState) { m.NeedsPNIReconciliation = false })

	if res.E164 != pending.NewE164 {
		e.log.Info("pending number change did not apply, discarding", "target", pending.NewE164)
		mode := e.mode.Clone()
		mode.PendingPNI = nil
		return nil, e.saveMode(ctx, mode)
	}

	e.log.Info("pending number change already applied", "e164", res.E164)
	identity := model.AccountIdentity{
		ACI:       res.ACI,
		PNI:       res.PNI,
		E164:      res.E164,
		DeviceID:  1,
		AuthToken: e.mode.OldAuthToken,
	}
	return nil, e.adoptIdentity(ctx, identity)
}

// adoptIdentity records a successful account response.
func (e *Engine) adoptIdentity(ctx context.Context, identity model.AccountIdentity) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.Session = nil
		m.SessionRestorePending = false
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		id := identity
		p.AccountIdentity = &id
		p.E164 = identity.E164
		p.SessionState = nil
	})
}
