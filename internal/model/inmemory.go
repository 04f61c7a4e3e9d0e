package model

import "time"

// ErrorSheetKind classifies user-visible failures.
type ErrorSheetKind string

const (
	ErrorSheetNetwork            ErrorSheetKind = "network"
	ErrorSheetGeneric            ErrorSheetKind = "generic"
	ErrorSheetRateLimited        ErrorSheetKind = "rateLimited"
	ErrorSheetSessionInvalidated ErrorSheetKind = "sessionInvalidated"
	ErrorSheetBecameDeregistered ErrorSheetKind = "becameDeregistered"
)

// ErrorSheet is a pending user-visible failure layered over a step.
type ErrorSheet struct {
	Kind  ErrorSheetKind `json:"kind"`
	Until *time.Time     `json:"until,omitempty"`
	// Behind is the step shown once the sheet is dismissed.
	Behind Step `json:"behind,omitempty"`
}

// InMemoryState is rebuilt once per launch and never persisted. Facts
// captured at launch (the registration-recovery password and reglock
// token) stay fixed for the rest of the flow unless a recovery in this
// flow produces a new master key.
type InMemoryState struct {
	HasRestoredState bool `json:"has_restored_state"`

	// Launch snapshot
	PermissionsOutstanding bool   `json:"permissions_outstanding"`
	LegacyPin              string `json:"-"`
	HasConfirmedUsername   bool   `json:"has_confirmed_username"`
	NeedsPNIReconciliation bool   `json:"needs_pni_reconciliation"`
	SessionRestorePending  bool   `json:"session_restore_pending"`

	Session *Session `json:"session,omitempty"`

	SVRAuthCredentialCandidates []SVRAuthCredential `json:"-"`
	SVRAuthCredential           *SVRAuthCredential  `json:"-"`
	RegRecoveryPassword         string              `json:"-"`
	ReglockToken                string              `json:"-"`

	// Inputs entered this launch
	PendingPin           string           `json:"-"`
	PinVerifiedLocally   bool             `json:"pin_verified_locally"`
	VerifiedPin          string           `json:"-"`
	LastPinError         PinError         `json:"last_pin_error,omitempty"`
	RemainingPinAttempts *int             `json:"remaining_pin_attempts,omitempty"`
	PendingCode          string           `json:"-"`
	PendingCaptchaToken  string           `json:"-"`
	PendingTransport     Transport        `json:"pending_transport,omitempty"`
	RestoreMethod        RestoreMethod    `json:"restore_method,omitempty"`
	HasRootKey           bool             `json:"has_root_key"`
	PendingProfile       *ProfileInfo     `json:"pending_profile,omitempty"`
	PendingDiscoverable  *bool            `json:"pending_discoverable,omitempty"`
	PhoneNumberError     PhoneNumberError `json:"phone_number_error,omitempty"`

	// Per-launch attempt tracking
	AuthToken string `json:"-"`

	// Failure presentation
	ErrorSheet        *ErrorSheet `json:"error_sheet,omitempty"`
	AwaitingUserRetry bool        `json:"awaiting_user_retry"`
	Completed         bool        `json:"completed"`
	Exited            bool        `json:"exited"`
}

// Clone returns a deep copy.
func (s InMemoryState) Clone() InMemoryState {
	s.Session = s.Session.Clone()
	if s.SVRAuthCredentialCandidates != nil {
		s.SVRAuthCredentialCandidates = append([]SVRAuthCredential(nil), s.SVRAuthCredentialCandidates...)
	}
	if s.SVRAuthCredential != nil {
		c := *s.SVRAuthCredential
		s.SVRAuthCredential = &c
	}
	if s.RemainingPinAttempts != nil {
		n := *s.RemainingPinAttempts
		s.RemainingPinAttempts = &n
	}
	if s.PendingProfile != nil {
		p := *s.PendingProfile
		s.PendingProfile = &p
	}
	if s.PendingDiscoverable != nil {
		b := *s.PendingDiscoverable
		s.PendingDiscoverable = &b
	}
	if s.ErrorSheet != nil {
		e := *s.ErrorSheet
		e.Until = cloneTime(e.Until)
		s.ErrorSheet = &e
	}
	return s
}

// ClearUserRetry removes any pending error sheet and retry block.
func (s *InMemoryState) ClearUserRetry() {
	s.ErrorSheet = nil
	s.AwaitingUserRetry = false
}
