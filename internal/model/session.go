package model

import "time"

// Transport is the channel a verification code is delivered over.
type Transport string

const (
	TransportSMS   Transport = "sms"
	TransportVoice Transport = "voice"
)

// Challenge is a proof the server requires before sending a code.
type Challenge string

const (
	ChallengePush    Challenge = "pushChallenge"
	ChallengeCaptcha Challenge = "captcha"
)

// Session is the in-memory handle of a server-tracked verification session.
// Timer fields are absolute, computed when the server response arrived;
// nil means the action is unavailable.
type Session struct {
	ID                      string      `json:"id"`
	E164                    string      `json:"e164"`
	NextSMS                 *time.Time  `json:"next_sms,omitempty"`
	NextCall                *time.Time  `json:"next_call,omitempty"`
	NextVerificationAttempt *time.Time  `json:"next_verification_attempt,omitempty"`
	AllowedToRequestCode    bool        `json:"allowed_to_request_code"`
	RequestedInformation    []Challenge `json:"requested_information,omitempty"`
	HasUnknownChallenge     bool        `json:"has_unknown_challenge,omitempty"`
	Verified                bool        `json:"verified"`
}

// Requests reports whether the session currently asks for challenge c.
func (s *Session) Requests(c Challenge) bool {
	for _, r := range s.RequestedInformation {
		if r == c {
			return true
		}
	}
	return false
}

// CanVerify reports whether a code may still be submitted.
func (s *Session) CanVerify() bool {
	return s.NextVerificationAttempt != nil
}

// CanRequestCode reports whether a new code may be requested now or later.
func (s *Session) CanRequestCode() bool {
	return s.AllowedToRequestCode || s.NextSMS != nil || s.NextCall != nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.NextSMS = cloneTime(s.NextSMS)
	c.NextCall = cloneTime(s.NextCall)
	c.NextVerificationAttempt = cloneTime(s.NextVerificationAttempt)
	if s.RequestedInformation != nil {
		c.RequestedInformation = append([]Challenge(nil), s.RequestedInformation...)
	}
	return &c
}

// CodeRequestState tracks the first code request of a session.
type CodeRequestState string

const (
	CodeNeverRequested    CodeRequestState = "neverRequested"
	CodeRequested         CodeRequestState = "requested"
	CodeExhaustedAttempts CodeRequestState = "exhaustedCodeAttempts"
	CodeFailedToRequest   CodeRequestState = "failedToRequest"
	CodeTransportFailed   CodeRequestState = "transportFailed"
	CodeProviderFailure   CodeRequestState = "providerFailure"
)

// ReglockKind is the reglock sub-state of a session.
type ReglockKind string

const (
	ReglockNone           ReglockKind = "none"
	ReglockLocked         ReglockKind = "reglocked"
	ReglockWaitingTimeout ReglockKind = "waitingTimeout"
)

// ReglockState is orthogonal to the code request state.
type ReglockState struct {
	Kind       ReglockKind        `json:"kind"`
	Credential *SVRAuthCredential `json:"credential,omitempty"`
	Expiry     time.Time          `json:"expiry,omitempty"`
}

// PushChallengeKind is the push-challenge sub-state of a session.
type PushChallengeKind string

const (
	PushNotRequested PushChallengeKind = "notRequested"
	PushWaiting      PushChallengeKind = "waitingForPush"
	PushUnfulfilled  PushChallengeKind = "unfulfilledPush"
	PushFulfilled    PushChallengeKind = "fulfilled"
	PushRejected     PushChallengeKind = "rejected"
	PushIneligible   PushChallengeKind = "ineligible"
)

// PushChallengeState tracks the push token the server sends to prove
// device reachability.
type PushChallengeState struct {
	Kind        PushChallengeKind `json:"kind"`
	RequestedAt time.Time         `json:"requested_at,omitempty"`
	Token       string            `json:"token,omitempty"`
}

// SessionState is the durable record of the one tracked session.
type SessionState struct {
	SessionID                string             `json:"session_id"`
	InitialCodeRequest       CodeRequestState   `json:"initial_code_request"`
	FailedTransport          Transport          `json:"failed_transport,omitempty"`
	ProviderFailurePermanent bool               `json:"provider_failure_permanent,omitempty"`
	Reglock                  ReglockState       `json:"reglock"`
	PushChallenge            PushChallengeState `json:"push_challenge"`
	VerificationSubmissions  int                `json:"verification_submissions"`
	RateLimitUntil           *time.Time         `json:"rate_limit_until,omitempty"`
	LastCodeError            CodeEntryError     `json:"last_code_error,omitempty"`
}

// NewSessionState returns the initial state for a freshly begun session.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID:          sessionID,
		InitialCodeRequest: CodeNeverRequested,
		Reglock:            ReglockState{Kind: ReglockNone},
		PushChallenge:      PushChallengeState{Kind: PushNotRequested},
	}
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.RateLimitUntil = cloneTime(s.RateLimitUntil)
	if s.Reglock.Credential != nil {
		cred := *s.Reglock.Credential
		c.Reglock.Credential = &cred
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
