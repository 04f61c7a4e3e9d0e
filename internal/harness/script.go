package harness

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
	"github.com/roach88/registrar/internal/testutil"
)

var (
	sessionKinds = kindSet(
		service.SessionSuccess, service.SessionRejected, service.SessionDisallowed,
		service.SessionRateLimited, service.SessionTransportFailure, service.SessionNotFound,
		service.SessionNetworkError, service.SessionGenericError,
	)
	outcomeKinds = kindSet(service.OutcomeSuccess, service.OutcomeNetworkError, service.OutcomeGenericError)
	svrKinds     = kindSet(
		service.SVRRestoreSuccess, service.SVRRestoreInvalidPin, service.SVRRestoreBackupMissing,
		service.SVRRestoreNetworkError, service.SVRRestoreGenericError,
	)
	accountKinds = kindSet(
		service.AccountSuccess, service.AccountReglockFailure, service.AccountRejectedVerificationMethod,
		service.AccountDeviceTransferPossible, service.AccountRetryAfter,
		service.AccountNetworkError, service.AccountGenericError,
	)
	preKeyKinds = kindSet(
		service.PreKeySuccess, service.PreKeyDeregistered, service.PreKeyNetworkError, service.PreKeyGenericError,
	)
	challengeKinds = kindSet(model.ChallengePush, model.ChallengeCaptcha)
)

func kindSet[K ~string](kinds ...K) map[string]K {
	set := make(map[string]K, len(kinds))
	for _, k := range kinds {
		set[string(k)] = k
	}
	return set
}

func lookupKind[K ~string](set map[string]K, what, s string) (K, error) {
	k, ok := set[s]
	if !ok {
		var zero K
		return zero, fmt.Errorf("unknown %s result %q", what, s)
	}
	return k, nil
}

// script is a ServerScript converted to service result values.
type script struct {
	beginSession     []service.SessionResult
	restoreSession   []service.SessionResult
	requestCode      []service.SessionResult
	fulfillChallenge []service.SessionResult
	submitCode       []service.SessionResult

	restoreKeys []service.SVRRestoreResult
	backupKey   []service.Outcome

	checkCredentials []service.CredentialCheckResult
	createAccount    []service.AccountResponse
	changeNumber     []service.AccountResponse
	updateAttributes []service.Outcome
	enableReglock    []service.Outcome
	whoAmI           []service.WhoAmIResult

	preKeys         []service.PreKeyResultKind
	storage         []service.StorageRestoreResult
	storageBackup   []service.Outcome
	setProfile      []service.Outcome
	reclaimUsername []service.Outcome
}

// build converts the script, anchoring session timers at now.
func (s ServerScript) build(now time.Time) (*script, error) {
	out := &script{}
	var err error

	sessions := []struct {
		name string
		in   []SessionResponse
		out  *[]service.SessionResult
	}{
		{"begin_session", s.BeginSession, &out.beginSession},
		{"restore_session", s.RestoreSession, &out.restoreSession},
		{"request_code", s.RequestCode, &out.requestCode},
		{"fulfill_challenge", s.FulfillChallenge, &out.fulfillChallenge},
		{"submit_code", s.SubmitCode, &out.submitCode},
	}
	for _, q := range sessions {
		for i, r := range q.in {
			res, err := r.result(now)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", q.name, i, err)
			}
			*q.out = append(*q.out, res)
		}
	}

	outcomes := []struct {
		name string
		in   []string
		out  *[]service.Outcome
	}{
		{"backup_key", s.BackupKey, &out.backupKey},
		{"update_attributes", s.UpdateAttributes, &out.updateAttributes},
		{"enable_reglock", s.EnableReglock, &out.enableReglock},
		{"set_profile", s.SetProfile, &out.setProfile},
		{"reclaim_username", s.ReclaimUsername, &out.reclaimUsername},
		{"storage_backup", s.StorageBackup, &out.storageBackup},
	}
	for _, q := range outcomes {
		for i, r := range q.in {
			kind, err := lookupKind(outcomeKinds, "outcome", r)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", q.name, i, err)
			}
			*q.out = append(*q.out, service.Outcome{Kind: kind})
		}
	}

	for i, r := range s.RestoreKeys {
		res := service.SVRRestoreResult{RemainingAttempts: r.RemainingAttempts}
		if res.Kind, err = lookupKind(svrKinds, "restore keys", r.Result); err != nil {
			return nil, fmt.Errorf("restore_keys[%d]: %w", i, err)
		}
		if res.MasterKey, err = decodeKey(r.MasterKey); err != nil {
			return nil, fmt.Errorf("restore_keys[%d]: %w", i, err)
		}
		out.restoreKeys = append(out.restoreKeys, res)
	}

	for i, r := range s.CheckCredentials {
		res := service.CredentialCheckResult{Matched: r.Matched.model()}
		if res.Kind, err = lookupKind(outcomeKinds, "credential check", r.Result); err != nil {
			return nil, fmt.Errorf("check_credentials[%d]: %w", i, err)
		}
		for _, c := range r.Invalid {
			res.Invalid = append(res.Invalid, *c.model())
		}
		out.checkCredentials = append(out.checkCredentials, res)
	}

	accounts := []struct {
		name string
		in   []AccountResponse
		out  *[]service.AccountResponse
	}{
		{"create_account", s.CreateAccount, &out.createAccount},
		{"change_number", s.ChangeNumber, &out.changeNumber},
	}
	for _, q := range accounts {
		for i, r := range q.in {
			res, err := r.response()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", q.name, i, err)
			}
			*q.out = append(*q.out, res)
		}
	}

	for i, r := range s.WhoAmI {
		res := service.WhoAmIResult{ACI: r.ACI, PNI: r.PNI, E164: r.E164}
		if res.Kind, err = lookupKind(outcomeKinds, "whoami", r.Result); err != nil {
			return nil, fmt.Errorf("who_am_i[%d]: %w", i, err)
		}
		out.whoAmI = append(out.whoAmI, res)
	}

	for i, r := range s.PreKeys {
		kind, err := lookupKind(preKeyKinds, "prekey", r)
		if err != nil {
			return nil, fmt.Errorf("pre_keys[%d]: %w", i, err)
		}
		out.preKeys = append(out.preKeys, kind)
	}

	for i, r := range s.Storage {
		res := service.StorageRestoreResult{Found: r.Found, Discoverable: r.Discoverable}
		if res.Kind, err = lookupKind(outcomeKinds, "storage", r.Result); err != nil {
			return nil, fmt.Errorf("storage[%d]: %w", i, err)
		}
		if r.Profile != nil {
			res.Profile = &model.ProfileInfo{GivenName: r.Profile.GivenName, FamilyName: r.Profile.FamilyName}
		}
		out.storage = append(out.storage, res)
	}

	return out, nil
}

// install loads the script into f.
func (s *script) install(f *testutil.FakeServices) {
	f.BeginSessionResults = s.beginSession
	f.RestoreSessionResults = s.restoreSession
	f.RequestCodeResults = s.requestCode
	f.FulfillChallengeResults = s.fulfillChallenge
	f.SubmitCodeResults = s.submitCode
	f.RestoreKeysResults = s.restoreKeys
	f.BackupKeyResults = s.backupKey
	f.CheckCredentialsResults = s.checkCredentials
	f.CreateAccountResults = s.createAccount
	f.ChangeNumberResults = s.changeNumber
	f.UpdateAttributesResults = s.updateAttributes
	f.EnableReglockResults = s.enableReglock
	f.WhoAmIResults = s.whoAmI
	f.PreKeyResults = s.preKeys
	f.StorageResults = s.storage
	f.StorageBackupResults = s.storageBackup
	f.SetProfileResults = s.setProfile
	f.ReclaimUsernameResults = s.reclaimUsername
}

func (r SessionResponse) result(now time.Time) (service.SessionResult, error) {
	kind, err := lookupKind(sessionKinds, "session", r.Result)
	if err != nil {
		return service.SessionResult{}, err
	}
	res := service.SessionResult{
		Kind:            kind,
		RetryAfter:      r.RetryAfter,
		ProviderFailure: r.ProviderFailure,
		Permanent:       r.Permanent,
	}
	if r.Session != nil {
		if res.Session, err = r.Session.model(now); err != nil {
			return service.SessionResult{}, err
		}
	}
	return res, nil
}

func (s SessionSpec) model(now time.Time) (*model.Session, error) {
	if s.ID == "" || s.E164 == "" {
		return nil, fmt.Errorf("session requires id and e164")
	}
	session := testutil.NewSession(s.ID, s.E164, now)
	session.Verified = s.Verified
	session.HasUnknownChallenge = s.UnknownChallenge
	for _, c := range s.RequestedInformation {
		challenge, err := lookupKind(challengeKinds, "challenge", c)
		if err != nil {
			return nil, err
		}
		session.RequestedInformation = append(session.RequestedInformation, challenge)
	}
	if s.Exhausted {
		session.NextSMS = nil
		session.NextCall = nil
		session.NextVerificationAttempt = nil
		session.AllowedToRequestCode = false
	}
	return session, nil
}

func (r AccountResponse) response() (service.AccountResponse, error) {
	kind, err := lookupKind(accountKinds, "account", r.Result)
	if err != nil {
		return service.AccountResponse{}, err
	}
	res := service.AccountResponse{Kind: kind, RetryAfter: r.RetryAfter}
	if id := r.Identity; id != nil {
		res.Identity = &model.AccountIdentity{
			ACI:                  id.ACI,
			PNI:                  id.PNI,
			E164:                 id.E164,
			DeviceID:             id.DeviceID,
			HasPreviouslyUsedSVR: id.HasPreviouslyUsedSVR,
			ReglockEnabled:       id.ReglockEnabled,
		}
		if res.Identity.DeviceID == 0 {
			res.Identity.DeviceID = 1
		}
	}
	if kind == service.AccountSuccess && res.Identity == nil {
		return service.AccountResponse{}, fmt.Errorf("success requires identity")
	}
	if r.Reglock != nil {
		res.Reglock = &service.ReglockFailure{
			TimeRemaining: r.Reglock.TimeRemaining,
			Credential:    *r.Reglock.Credential.model(),
		}
	}
	if kind == service.AccountReglockFailure && res.Reglock == nil {
		return service.AccountResponse{}, fmt.Errorf("reglockFailure requires reglock")
	}
	return res, nil
}

func (c *CredentialSpec) model() *model.SVRAuthCredential {
	if c == nil {
		return nil
	}
	return &model.SVRAuthCredential{Username: c.Username, Password: c.Password}
}

// install loads the device state into f.
func (d DeviceSpec) install(f *testutil.FakeServices) error {
	key, err := d.masterKey()
	if err != nil {
		return err
	}
	f.MasterKeyValue = key
	f.LocalPin = d.Pin
	f.LegacyPinValue = d.LegacyPin
	f.PushTokenValue = d.PushToken
	f.PushChallengeTokens = append([]string(nil), d.PushChallenges...)
	f.PermissionsOutstanding = d.PermissionsOutstanding
	f.GrantOnRequest = !d.DenyPermissions
	f.ReglockOn = d.ReglockEnabled
	f.ConfirmedUsername = d.ConfirmedUsername
	for _, c := range d.Credentials {
		f.Credentials = append(f.Credentials, *c.model())
	}
	return nil
}

func (d DeviceSpec) masterKey() ([]byte, error) {
	key, err := decodeKey(d.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master_key: %w", err)
	}
	return key, nil
}

// decodeKey decodes a hex master key; empty means none.
func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(key) != keys.MasterKeyLength {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keys.MasterKeyLength, len(key))
	}
	return key, nil
}
