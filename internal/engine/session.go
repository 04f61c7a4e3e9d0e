package engine

import (
	"context"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// handleSession drives an active verification session: reglock, code
// submission, challenges, code requests, then code entry.
func (e *Engine) handleSession(ctx context.Context, s *model.Session) (model.Step, error) {
	ss := e.persisted.SessionState
	if ss == nil || ss.SessionID != s.ID {
		e.log.Warn("session id mismatch, resetting session", "session_id", s.ID)
		e.metrics.reset("session_mismatch")
		e.withInMemory(func(m *model.InMemoryState) { m.Session = nil })
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.SessionState = nil })
	}

	if ss.Reglock.Kind == model.ReglockWaitingTimeout {
		if e.now().Before(ss.Reglock.Expiry) {
			return model.StepReglockTimeout{Expiry: ss.Reglock.Expiry, CanExit: e.mode.CanExit()}, nil
		}
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.Reglock = model.ReglockState{Kind: model.ReglockNone}
		})
	}

	if s.Verified {
		if ss.Reglock.Kind == model.ReglockLocked && e.mem.ReglockToken == "" {
			return e.resolveReglock(ctx, ss.Reglock)
		}
		return e.registerAccount(ctx, service.RegistrationMethod{SessionID: s.ID}, e.codeEntryStep(s, ss))
	}

	if e.mem.PendingCode != "" {
		return e.submitCode(ctx, s)
	}
	if e.mem.PendingCaptchaToken != "" {
		token := e.mem.PendingCaptchaToken
		e.withInMemory(func(m *model.InMemoryState) { m.PendingCaptchaToken = "" })
		return e.fulfillChallenge(ctx, s, service.ChallengeFulfillment{Captcha: token})
	}

	if len(s.RequestedInformation) > 0 {
		return e.handleChallenges(ctx, s, ss)
	}

	if e.mem.PendingTransport != "" {
		return e.requestCode(ctx, s)
	}

	// The first code is sent without waiting for the user; later ones are
	// user-initiated.
	if ss.InitialCodeRequest == model.CodeNeverRequested && s.AllowedToRequestCode {
		e.withInMemory(func(m *model.InMemoryState) { m.PendingTransport = model.TransportSMS })
		return nil, nil
	}

	if !s.CanVerify() && !s.CanRequestCode() {
		if s.HasUnknownChallenge {
			return model.StepAppUpdateRequired{}, nil
		}
		return e.invalidateSession(ctx)
	}

	return e.codeEntryStep(s, ss), nil
}

// handleChallenges picks how to satisfy the server's challenges, in order:
// a received push token, a short push wait, captcha, a long push wait,
// then update-required for unknown challenges, then reset.
func (e *Engine) handleChallenges(ctx context.Context, s *model.Session, ss *model.SessionState) (model.Step, error) {
	push := ss.PushChallenge
	wantsPush := s.Requests(model.ChallengePush)

	if wantsPush && push.Kind == model.PushUnfulfilled {
		return e.fulfillChallenge(ctx, s, service.ChallengeFulfillment{PushToken: push.Token})
	}

	if wantsPush && push.Kind == model.PushWaiting {
		if remaining := e.cfg.PushMinWait - e.now().Sub(push.RequestedAt); remaining > 0 {
			if token, ok := e.c.PushChallenges.WaitForChallenge(ctx, remaining); ok {
				return nil, e.receivePushToken(ctx, token)
			}
		}
	}

	if s.Requests(model.ChallengeCaptcha) {
		return model.StepCaptcha{}, nil
	}

	if wantsPush && push.Kind == model.PushWaiting {
		if remaining := e.cfg.PushMaxWait - e.now().Sub(push.RequestedAt); remaining > 0 {
			if token, ok := e.c.PushChallenges.WaitForChallenge(ctx, remaining); ok {
				return nil, e.receivePushToken(ctx, token)
			}
		}
		e.log.Info("push challenge never arrived")
		if err := e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.PushChallenge = model.PushChallengeState{Kind: model.PushRejected}
		}); err != nil {
			return nil, err
		}
		return e.invalidateSession(ctx)
	}

	if s.HasUnknownChallenge {
		return model.StepAppUpdateRequired{}, nil
	}
	return e.invalidateSession(ctx)
}

func (e *Engine) receivePushToken(ctx context.Context, token string) error {
	return e.updateSessionState(ctx, func(ss *model.SessionState) {
		ss.PushChallenge = model.PushChallengeState{Kind: model.PushUnfulfilled, Token: token}
	})
}

func (e *Engine) fulfillChallenge(ctx context.Context, s *model.Session, f service.ChallengeFulfillment) (model.Step, error) {
	res, err := callRemote(ctx, e, "fulfillChallenge", func(ctx context.Context) service.SessionResult {
		return e.c.Sessions.FulfillChallenge(ctx, s, f)
	}, classifySession)
	if err != nil {
		return nil, err
	}

	isPush := f.PushToken != ""
	switch res.Kind {
	case service.SessionSuccess, service.SessionRejected, service.SessionDisallowed:
		if isPush {
			kind := model.PushFulfilled
			if res.Kind != service.SessionSuccess {
				kind = model.PushRejected
			}
			if err := e.updateSessionState(ctx, func(ss *model.SessionState) {
				ss.PushChallenge = model.PushChallengeState{Kind: kind}
			}); err != nil {
				return nil, err
			}
		}
		e.adoptSession(res.Session)
		return nil, nil
	case service.SessionRateLimited:
		e.adoptSession(res.Session)
		until := e.now().Add(res.RetryAfter)
		return e.block(model.ErrorSheetRateLimited, &until, model.StepCaptcha{}), nil
	case service.SessionNotFound:
		return e.invalidateSession(ctx)
	default:
		if isPush {
			// Keep the token; dismissing the sheet retries it.
			return e.blockForOutcome(res.Kind == service.SessionNetworkError, e.codeEntryStep(s, e.persisted.SessionState)), nil
		}
		return e.blockForOutcome(res.Kind == service.SessionNetworkError, model.StepCaptcha{}), nil
	}
}

func (e *Engine) requestCode(ctx context.Context, s *model.Session) (model.Step, error) {
	transport := e.mem.PendingTransport
	e.withInMemory(func(m *model.InMemoryState) { m.PendingTransport = "" })

	res, err := callRemote(ctx, e, "requestCode", func(ctx context.Context) service.SessionResult {
		return e.c.Sessions.RequestCode(ctx, s, transport)
	}, classifySession)
	if err != nil {
		return nil, err
	}
	e.adoptSession(res.Session)

	failedFirst := func(ss *model.SessionState, state model.CodeRequestState) {
		if ss.InitialCodeRequest == model.CodeNeverRequested {
			ss.InitialCodeRequest = state
		}
	}

	switch res.Kind {
	case service.SessionSuccess:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.InitialCodeRequest = model.CodeRequested
			ss.LastCodeError = model.CodeEntryErrorNone
			ss.FailedTransport = ""
			ss.RateLimitUntil = nil
		})
	case service.SessionTransportFailure:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.FailedTransport = transport
			if res.ProviderFailure {
				ss.InitialCodeRequest = model.CodeProviderFailure
				ss.ProviderFailurePermanent = res.Permanent
				ss.LastCodeError = model.CodeEntryErrorProvider
			} else {
				ss.InitialCodeRequest = model.CodeTransportFailed
				ss.LastCodeError = model.CodeEntryErrorTransport
			}
		})
	case service.SessionRateLimited:
		until := e.now().Add(res.RetryAfter)
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			failedFirst(ss, model.CodeFailedToRequest)
			ss.RateLimitUntil = &until
			ss.LastCodeError = model.CodeEntryErrorRateLimited
		})
	case service.SessionRejected, service.SessionDisallowed:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			failedFirst(ss, model.CodeFailedToRequest)
			ss.LastCodeError = model.CodeEntryErrorRequestFailed
		})
	case service.SessionNotFound:
		return e.invalidateSession(ctx)
	default:
		if err := e.updateSessionState(ctx, func(ss *model.SessionState) {
			failedFirst(ss, model.CodeFailedToRequest)
		}); err != nil {
			return nil, err
		}
		return e.blockForOutcome(res.Kind == service.SessionNetworkError, e.codeEntryStep(s, e.persisted.SessionState)), nil
	}
}

func (e *Engine) submitCode(ctx context.Context, s *model.Session) (model.Step, error) {
	code := e.mem.PendingCode
	e.withInMemory(func(m *model.InMemoryState) { m.PendingCode = "" })
	if err := e.updateSessionState(ctx, func(ss *model.SessionState) { ss.VerificationSubmissions++ }); err != nil {
		return nil, err
	}

	res, err := callRemote(ctx, e, "submitCode", func(ctx context.Context) service.SessionResult {
		return e.c.Sessions.SubmitCode(ctx, s, code)
	}, classifySession)
	if err != nil {
		return nil, err
	}
	e.adoptSession(res.Session)

	switch res.Kind {
	case service.SessionSuccess:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.LastCodeError = model.CodeEntryErrorNone
		})
	case service.SessionRejected:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.LastCodeError = model.CodeEntryErrorWrongCode
		})
	case service.SessionDisallowed:
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.InitialCodeRequest = model.CodeExhaustedAttempts
			ss.LastCodeError = model.CodeEntryErrorTooManyAttempts
		})
	case service.SessionRateLimited:
		until := e.now().Add(res.RetryAfter)
		return nil, e.updateSessionState(ctx, func(ss *model.SessionState) {
			ss.RateLimitUntil = &until
			ss.LastCodeError = model.CodeEntryErrorRateLimited
		})
	case service.SessionNotFound:
		return e.invalidateSession(ctx)
	default:
		return e.blockForOutcome(res.Kind == service.SessionNetworkError, e.codeEntryStep(s, e.persisted.SessionState)), nil
	}
}

// resolveReglock proves PIN knowledge for a reglocked number by restoring
// the master key with the credential the server supplied.
func (e *Engine) resolveReglock(ctx context.Context, lock model.ReglockState) (model.Step, error) {
	if e.mem.PendingPin == "" || lock.Credential == nil {
		return e.pinStep(model.PinModeReglock, false), nil
	}
	pin := e.consumePin()
	cred := *lock.Credential

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
			return nil, e.startReglockTimeout(ctx, lock)
		}
		e.wrongPin(res.RemainingAttempts)
		return e.pinStep(model.PinModeReglock, false), nil
	case service.SVRRestoreBackupMissing:
		return nil, e.startReglockTimeout(ctx, lock)
	default:
		return e.blockForOutcome(res.Kind == service.SVRRestoreNetworkError, e.pinStep(model.PinModeReglock, false)), nil
	}
}

func (e *Engine) startReglockTimeout(ctx context.Context, lock model.ReglockState) error {
	e.withInMemory(func(m *model.InMemoryState) {
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})
	return e.updateSessionState(ctx, func(ss *model.SessionState) {
		ss.Reglock = model.ReglockState{Kind: model.ReglockWaitingTimeout, Expiry: lock.Expiry}
	})
}

// invalidateSession discards a session that can make no further progress.
func (e *Engine) invalidateSession(ctx context.Context) (model.Step, error) {
	e.log.Info("session invalidated")
	e.metrics.reset("session_invalidated")
	if err := e.discardSession(ctx); err != nil {
		return nil, err
	}
	return e.block(model.ErrorSheetSessionInvalidated, nil, e.phoneNumberStep()), nil
}

// adoptSession replaces the session handle with the server's latest view.
func (e *Engine) adoptSession(s *model.Session) {
	if s == nil {
		return
	}
	e.withInMemory(func(m *model.InMemoryState) { m.Session = s.Clone() })
}

func (e *Engine) updateSessionState(ctx context.Context, mutate func(*model.SessionState)) error {
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		if p.SessionState != nil {
			mutate(p.SessionState)
		}
	})
}

func (e *Engine) codeEntryStep(s *model.Session, ss *model.SessionState) model.Step {
	step := model.StepVerificationCodeEntry{
		E164:                    s.E164,
		NextSMS:                 s.NextSMS,
		NextCall:                s.NextCall,
		NextVerificationAttempt: s.NextVerificationAttempt,
		CanExit:                 e.mode.CanExit(),
	}
	if ss != nil {
		step.Error = ss.LastCodeError
	}
	return step
}
