package model

// PersistedStateVersion is the schema version of PersistedState records.
const PersistedStateVersion = 1

// PersistedState is the durable orchestration record. It is written only
// through the store's transactional read-modify-write.
type PersistedState struct {
	Version  int    `json:"version"`
	Revision string `json:"revision,omitempty"`

	E164           string `json:"e164,omitempty"`
	HasShownSplash bool   `json:"has_shown_splash"`

	// PIN / secret recovery
	NumLocalPinGuesses     int         `json:"num_local_pin_guesses"`
	HasSkippedPinEntry     bool        `json:"has_skipped_pin_entry"`
	HasGivenUpOnSVRRestore bool        `json:"has_given_up_on_svr_restore"`
	ShowPinExhaustedNotice bool        `json:"show_pin_exhausted_notice,omitempty"`
	RecoveredSVRMasterKey  []byte      `json:"recovered_svr_master_key,omitempty"`
	RestoredFromSVR        bool        `json:"restored_from_svr"`
	ReglockKnownEnabled    bool        `json:"reglock_known_enabled,omitempty"`
	RestoreMode            RestoreMode `json:"restore_mode,omitempty"`
	SkipDeviceTransfer     bool        `json:"skip_device_transfer,omitempty"`

	SessionState    *SessionState    `json:"session_state,omitempty"`
	AccountIdentity *AccountIdentity `json:"account_identity,omitempty"`

	// Finalization progress
	DidRefreshOneTimePreKeys           bool `json:"did_refresh_one_time_pre_keys"`
	RestoredFromStorageService         bool `json:"restored_from_storage_service"`
	HasSkippedStorageRestore           bool `json:"has_skipped_storage_restore"`
	DidBackUpToSVR                     bool `json:"did_back_up_to_svr"`
	DidAttemptUsernameReclamation      bool `json:"did_attempt_username_reclamation"`
	HasProfile                         bool `json:"has_profile"`
	HasSetUpPhoneNumberDiscoverability bool `json:"has_set_up_phone_number_discoverability"`
	IsDiscoverableByPhoneNumber        bool `json:"is_discoverable_by_phone_number"`
	DidBackUpToStorageService          bool `json:"did_back_up_to_storage_service"`
}

// NewPersistedState returns a blank record.
func NewPersistedState() PersistedState {
	return PersistedState{Version: PersistedStateVersion}
}

// Clone returns a deep copy.
func (p PersistedState) Clone() PersistedState {
	p.RecoveredSVRMasterKey = cloneBytes(p.RecoveredSVRMasterKey)
	p.SessionState = p.SessionState.Clone()
	if p.AccountIdentity != nil {
		id := *p.AccountIdentity
		p.AccountIdentity = &id
	}
	return p
}
