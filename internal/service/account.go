package service

import (
	"context"
	"time"

	"github.com/roach88/registrar/internal/model"
)

// RegistrationMethod proves number ownership. Exactly one field is set.
type RegistrationMethod struct {
	SessionID        string
	RecoveryPassword string
}

// TwoFAKind selects the reglock proof sent with a request.
type TwoFAKind string

const (
	TwoFANone TwoFAKind = "none"
	TwoFAV1   TwoFAKind = "v1"
	TwoFAV2   TwoFAKind = "v2"
)

// TwoFAMode is the reglock proof: a legacy PIN (v1) or a token (v2).
type TwoFAMode struct {
	Kind  TwoFAKind
	Pin   string
	Token string
}

// AccountRequest is a create-account or change-number request.
type AccountRequest struct {
	Method             RegistrationMethod
	E164               string
	AuthToken          string
	TwoFA              TwoFAMode
	SkipDeviceTransfer bool
	PNI                *model.PendingPNIState
}

// AccountResponseKind classifies account responses.
type AccountResponseKind string

const (
	AccountSuccess                    AccountResponseKind = "success"
	AccountReglockFailure             AccountResponseKind = "reglockFailure"
	AccountRejectedVerificationMethod AccountResponseKind = "rejectedVerificationMethod"
	AccountDeviceTransferPossible     AccountResponseKind = "deviceTransferPossible"
	AccountRetryAfter                 AccountResponseKind = "retryAfter"
	AccountNetworkError               AccountResponseKind = "networkError"
	AccountGenericError               AccountResponseKind = "genericError"
)

// ReglockFailure is returned when the number is reglocked.
type ReglockFailure struct {
	TimeRemaining time.Duration
	Credential    model.SVRAuthCredential
}

// AccountResponse is the closed response of CreateAccount and ChangeNumber.
// Identity.AuthToken is filled in by the engine, not the server.
type AccountResponse struct {
	Kind       AccountResponseKind
	Identity   *model.AccountIdentity
	Reglock    *ReglockFailure
	RetryAfter time.Duration
}

// CredentialCheckResult reports which stored credentials the server accepts.
type CredentialCheckResult struct {
	Kind    OutcomeKind
	Matched *model.SVRAuthCredential
	Invalid []model.SVRAuthCredential
}

// AccountAttributes is the attribute set updated after registration.
type AccountAttributes struct {
	Discoverable bool
	ReglockToken string
}

// WhoAmIResult identifies the account the auth belongs to.
type WhoAmIResult struct {
	Kind OutcomeKind
	ACI  string
	PNI  string
	E164 string
}

// AccountService is the account service client.
type AccountService interface {
	CheckAuthCredentials(ctx context.Context, e164 string, candidates []model.SVRAuthCredential) CredentialCheckResult
	CreateAccount(ctx context.Context, req AccountRequest) AccountResponse
	ChangeNumber(ctx context.Context, auth AccountAuth, req AccountRequest) AccountResponse
	UpdateAttributes(ctx context.Context, auth AccountAuth, attrs AccountAttributes) Outcome
	EnableReglock(ctx context.Context, auth AccountAuth, token string) Outcome
	WhoAmI(ctx context.Context, auth AccountAuth) WhoAmIResult
}
