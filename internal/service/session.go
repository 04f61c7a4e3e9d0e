package service

import (
	"context"
	"time"

	"github.com/roach88/registrar/internal/model"
)

// SessionResultKind classifies a session service response.
type SessionResultKind string

const (
	SessionSuccess SessionResultKind = "success"
	// SessionRejected means the input was invalid: a malformed number or
	// a wrong code. The session, when present, is the server's latest view.
	SessionRejected SessionResultKind = "rejected"
	// SessionDisallowed means the action is not permitted right now; the
	// session timers say when it will be.
	SessionDisallowed  SessionResultKind = "disallowed"
	SessionRateLimited SessionResultKind = "rateLimited"
	// SessionTransportFailure means the code could not be delivered.
	SessionTransportFailure SessionResultKind = "transportFailure"
	SessionNotFound         SessionResultKind = "notFound"
	SessionNetworkError     SessionResultKind = "networkError"
	SessionGenericError     SessionResultKind = "genericError"
)

// SessionResult is the closed response of every session call.
type SessionResult struct {
	Kind       SessionResultKind
	Session    *model.Session
	RetryAfter time.Duration

	// Transport failure details.
	ProviderFailure bool
	Permanent       bool
}

// ChallengeFulfillment carries exactly one challenge answer.
type ChallengeFulfillment struct {
	Captcha   string
	PushToken string
}

// SessionService begins and drives a phone-verification session.
type SessionService interface {
	BeginSession(ctx context.Context, e164, pushToken string) SessionResult
	RestoreSession(ctx context.Context, sessionID string) SessionResult
	RequestCode(ctx context.Context, session *model.Session, transport model.Transport) SessionResult
	FulfillChallenge(ctx context.Context, session *model.Session, f ChallengeFulfillment) SessionResult
	SubmitCode(ctx context.Context, session *model.Session, code string) SessionResult
}

// PushTokens provides the device push token, if one can be obtained.
type PushTokens interface {
	PushToken(ctx context.Context) (string, bool)
}

// PushChallenges delivers push-challenge tokens sent by the server.
type PushChallenges interface {
	// WaitForChallenge blocks up to d for a challenge token.
	WaitForChallenge(ctx context.Context, d time.Duration) (string, bool)
}

// Permissions tracks the system permissions registration needs.
type Permissions interface {
	Outstanding(ctx context.Context) bool
	Request(ctx context.Context)
}
