package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// Call is one recorded collaborator call.
type Call struct {
	Name string
	Args any
}

// FakeServices implements every collaborator interface the engine uses.
//
// Remote results are scripted as FIFO queues per call. An empty queue
// yields a generic error for session, account and recovery calls, and
// success for best-effort finalization calls, so tests only script what
// they assert on. Every call is recorded.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeServices struct {
	mu    sync.Mutex
	calls []Call

	// Time, when set, is advanced by push-challenge waits.
	Time *FakeTime

	BeginSessionResults     []service.SessionResult
	RestoreSessionResults   []service.SessionResult
	RequestCodeResults      []service.SessionResult
	FulfillChallengeResults []service.SessionResult
	SubmitCodeResults       []service.SessionResult

	RestoreKeysResults []service.SVRRestoreResult
	BackupKeyResults   []service.Outcome

	CheckCredentialsResults []service.CredentialCheckResult
	CreateAccountResults    []service.AccountResponse
	ChangeNumberResults     []service.AccountResponse
	UpdateAttributesResults []service.Outcome
	EnableReglockResults    []service.Outcome
	WhoAmIResults           []service.WhoAmIResult

	PreKeyResults          []service.PreKeyResultKind
	StorageResults         []service.StorageRestoreResult
	StorageBackupResults   []service.Outcome
	SetProfileResults      []service.Outcome
	ReclaimUsernameResults []service.Outcome

	// PushTokenValue is the device push token; empty means none.
	PushTokenValue string
	// PushChallengeTokens are delivered, in order, by WaitForChallenge.
	PushChallengeTokens []string

	PermissionsOutstanding bool
	// GrantOnRequest clears PermissionsOutstanding when Request is called.
	GrantOnRequest bool

	MasterKeyValue    []byte
	LegacyPinValue    string
	LocalPin          string
	Credentials       []model.SVRAuthCredential
	ReglockOn         bool
	ConfirmedUsername bool
	PNIState          model.PendingPNIState
	GeneratePNIErr    error
	ApplyPNIErr       error
	ExportErr         error
	Exported          []service.ExportedAccount
}

// NewFakeServices creates fakes driven by clock.
func NewFakeServices(clock *FakeTime) *FakeServices {
	return &FakeServices{Time: clock, GrantOnRequest: true}
}

func (f *FakeServices) record(name string, args any) {
	f.calls = append(f.calls, Call{Name: name, Args: args})
}

// Calls returns every recorded call in order.
func (f *FakeServices) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallNames returns the names of recorded calls in order.
func (f *FakeServices) CallNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Name
	}
	return names
}

// Count returns how many times name was called.
func (f *FakeServices) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// AccountRequests returns the requests sent to CreateAccount and
// ChangeNumber, in order.
func (f *FakeServices) AccountRequests() []service.AccountRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []service.AccountRequest
	for _, c := range f.calls {
		if req, ok := c.Args.(service.AccountRequest); ok {
			out = append(out, req)
		}
	}
	return out
}

func pop[T any](q *[]T, fallback T) T {
	if len(*q) == 0 {
		return fallback
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

var (
	sessionFallback = service.SessionResult{Kind: service.SessionGenericError}
	accountFallback = service.AccountResponse{Kind: service.AccountGenericError}
	svrFallback     = service.SVRRestoreResult{Kind: service.SVRRestoreGenericError}
	success         = service.Outcome{Kind: service.OutcomeSuccess}
)

// SessionService

func (f *FakeServices) BeginSession(ctx context.Context, e164, pushToken string) service.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("beginSession", e164)
	return pop(&f.BeginSessionResults, sessionFallback)
}

func (f *FakeServices) RestoreSession(ctx context.Context, sessionID string) service.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restoreSession", sessionID)
	return pop(&f.RestoreSessionResults, sessionFallback)
}

func (f *FakeServices) RequestCode(ctx context.Context, s *model.Session, transport model.Transport) service.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("requestCode", transport)
	return pop(&f.RequestCodeResults, sessionFallback)
}

func (f *FakeServices) FulfillChallenge(ctx context.Context, s *model.Session, fulfillment service.ChallengeFulfillment) service.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fulfillChallenge", fulfillment)
	return pop(&f.FulfillChallengeResults, sessionFallback)
}

func (f *FakeServices) SubmitCode(ctx context.Context, s *model.Session, code string) service.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submitCode", code)
	return pop(&f.SubmitCodeResults, sessionFallback)
}

// SVR

func (f *FakeServices) RestoreKeys(ctx context.Context, pin string, auth service.SVRAuth) service.SVRRestoreResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restoreKeys", auth)
	return pop(&f.RestoreKeysResults, svrFallback)
}

func (f *FakeServices) BackupKey(ctx context.Context, pin string, masterKey []byte, auth service.SVRAuth) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("backupKey", auth)
	return pop(&f.BackupKeyResults, success)
}

func (f *FakeServices) ClearKeys(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clearKeys", nil)
	f.MasterKeyValue = nil
	f.Credentials = nil
}

// AccountService

func (f *FakeServices) CheckAuthCredentials(ctx context.Context, e164 string, candidates []model.SVRAuthCredential) service.CredentialCheckResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("checkAuthCredentials", len(candidates))
	return pop(&f.CheckCredentialsResults, service.CredentialCheckResult{Kind: service.OutcomeGenericError})
}

func (f *FakeServices) CreateAccount(ctx context.Context, req service.AccountRequest) service.AccountResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("createAccount", req)
	return pop(&f.CreateAccountResults, accountFallback)
}

func (f *FakeServices) ChangeNumber(ctx context.Context, auth service.AccountAuth, req service.AccountRequest) service.AccountResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("changeNumber", req)
	return pop(&f.ChangeNumberResults, accountFallback)
}

func (f *FakeServices) UpdateAttributes(ctx context.Context, auth service.AccountAuth, attrs service.AccountAttributes) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("updateAttributes", attrs)
	return pop(&f.UpdateAttributesResults, success)
}

func (f *FakeServices) EnableReglock(ctx context.Context, auth service.AccountAuth, token string) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("enableReglock", nil)
	return pop(&f.EnableReglockResults, success)
}

func (f *FakeServices) WhoAmI(ctx context.Context, auth service.AccountAuth) service.WhoAmIResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("whoAmI", auth.ACI)
	return pop(&f.WhoAmIResults, service.WhoAmIResult{Kind: service.OutcomeGenericError})
}

// Push and permissions

func (f *FakeServices) PushToken(ctx context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PushTokenValue, f.PushTokenValue != ""
}

// WaitForChallenge returns the next scripted token, or times out after
// advancing Time by d.
func (f *FakeServices) WaitForChallenge(ctx context.Context, d time.Duration) (string, bool) {
	f.mu.Lock()
	f.record("waitForChallenge", d)
	if len(f.PushChallengeTokens) > 0 {
		token := f.PushChallengeTokens[0]
		f.PushChallengeTokens = f.PushChallengeTokens[1:]
		f.mu.Unlock()
		return token, true
	}
	clock := f.Time
	f.mu.Unlock()
	if clock != nil {
		clock.Advance(d)
	}
	return "", false
}

func (f *FakeServices) Outstanding(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PermissionsOutstanding
}

func (f *FakeServices) Request(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("requestPermissions", nil)
	if f.GrantOnRequest {
		f.PermissionsOutstanding = false
	}
}

// Finalization collaborators

func (f *FakeServices) RefreshOneTimePreKeys(ctx context.Context, identity model.AccountIdentity) service.PreKeyResultKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("refreshPreKeys", identity.ACI)
	return pop(&f.PreKeyResults, service.PreKeySuccess)
}

func (f *FakeServices) RestoreAccountRecord(ctx context.Context, identity model.AccountIdentity, masterKey []byte) service.StorageRestoreResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restoreAccountRecord", identity.ACI)
	return pop(&f.StorageResults, service.StorageRestoreResult{Kind: service.OutcomeSuccess})
}

func (f *FakeServices) BackupAccountRecord(ctx context.Context, identity model.AccountIdentity, masterKey []byte) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("backupAccountRecord", identity.ACI)
	return pop(&f.StorageBackupResults, success)
}

func (f *FakeServices) SetProfile(ctx context.Context, identity model.AccountIdentity, info model.ProfileInfo) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setProfile", info)
	return pop(&f.SetProfileResults, success)
}

func (f *FakeServices) ReclaimUsername(ctx context.Context, identity model.AccountIdentity) service.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reclaimUsername", identity.ACI)
	return pop(&f.ReclaimUsernameResults, success)
}

func (f *FakeServices) GeneratePNI(ctx context.Context, newE164 string) (model.PendingPNIState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("generatePNI", newE164)
	if f.GeneratePNIErr != nil {
		return model.PendingPNIState{}, f.GeneratePNIErr
	}
	state := f.PNIState
	state.NewE164 = newE164
	return state, nil
}

func (f *FakeServices) ApplyPNI(ctx context.Context, state model.PendingPNIState, identity model.AccountIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("applyPNI", state.NewE164)
	return f.ApplyPNIErr
}

// LocalSecrets

func (f *FakeServices) MasterKey(ctx context.Context) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.MasterKeyValue
}

func (f *FakeServices) LegacyPin(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LegacyPinValue
}

func (f *FakeServices) VerifyPin(ctx context.Context, pin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("verifyPin", nil)
	return f.LocalPin != "" && pin == f.LocalPin
}

func (f *FakeServices) SVRAuthCredentials(ctx context.Context) []model.SVRAuthCredential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SVRAuthCredential(nil), f.Credentials...)
}

func (f *FakeServices) ReglockEnabled(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ReglockOn
}

func (f *FakeServices) HasConfirmedUsername(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConfirmedUsername
}

// AccountExporter

func (f *FakeServices) Export(ctx context.Context, account service.ExportedAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("export", account.Identity.ACI)
	if f.ExportErr != nil {
		return f.ExportErr
	}
	f.Exported = append(f.Exported, account)
	return nil
}

// Compile-time checks.
var (
	_ service.SessionService  = (*FakeServices)(nil)
	_ service.SVR             = (*FakeServices)(nil)
	_ service.AccountService  = (*FakeServices)(nil)
	_ service.PushTokens      = (*FakeServices)(nil)
	_ service.PushChallenges  = (*FakeServices)(nil)
	_ service.Permissions     = (*FakeServices)(nil)
	_ service.PreKeys         = (*FakeServices)(nil)
	_ service.StorageService  = (*FakeServices)(nil)
	_ service.Profiles        = (*FakeServices)(nil)
	_ service.Usernames       = (*FakeServices)(nil)
	_ service.PNIManager      = (*FakeServices)(nil)
	_ service.LocalSecrets    = (*FakeServices)(nil)
	_ service.AccountExporter = (*FakeServices)(nil)
)

// NewSession returns an unverified session that allows code requests and
// a verification attempt, with timers relative to now.
func NewSession(id, e164 string, now time.Time) *model.Session {
	sms := now.Add(time.Minute)
	verify := now
	return &model.Session{
		ID:                      id,
		E164:                    e164,
		NextSMS:                 &sms,
		NextVerificationAttempt: &verify,
		AllowedToRequestCode:    true,
	}
}

// VerifiedSession returns s marked verified.
func VerifiedSession(s *model.Session) *model.Session {
	v := s.Clone()
	v.Verified = true
	return v
}

// SessionOK wraps s in a successful session result.
func SessionOK(s *model.Session) service.SessionResult {
	return service.SessionResult{Kind: service.SessionSuccess, Session: s}
}

// Identity returns a registered identity for e164.
func Identity(aci, e164 string) *model.AccountIdentity {
	return &model.AccountIdentity{ACI: aci, PNI: "pni-" + aci, E164: e164, DeviceID: 1}
}
