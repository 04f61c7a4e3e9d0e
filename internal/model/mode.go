package model

import "fmt"

// ModeKind identifies which registration flavour an orchestration runs.
type ModeKind string

const (
	ModeRegistering    ModeKind = "registering"
	ModeReRegistering  ModeKind = "reRegistering"
	ModeChangingNumber ModeKind = "changingNumber"
)

// Mode is immutable for the lifetime of one orchestration instance.
//
// Only the fields for Kind are meaningful:
//   - ReRegistering: E164, AccountID
//   - ChangingNumber: OldE164, OldAuthToken, LocalAccountID, PendingPNI
type Mode struct {
	Kind ModeKind `json:"kind"`

	E164      string `json:"e164,omitempty"`
	AccountID string `json:"account_id,omitempty"`

	OldE164        string           `json:"old_e164,omitempty"`
	OldAuthToken   string           `json:"old_auth_token,omitempty"`
	LocalAccountID string           `json:"local_account_id,omitempty"`
	PendingPNI     *PendingPNIState `json:"pending_pni,omitempty"`
}

// PendingPNIState is the secondary-identity bundle generated before a
// change-number request is sent. It is persisted first so an interrupted
// request can be reconciled on the next launch.
type PendingPNIState struct {
	NewE164        string `json:"new_e164"`
	PNIIdentityKey []byte `json:"pni_identity_key"`
	SignedPreKey   []byte `json:"signed_pre_key"`
	RegistrationID uint32 `json:"registration_id"`
}

// Registering returns the mode for a fresh registration.
func Registering() Mode {
	return Mode{Kind: ModeRegistering}
}

// ReRegistering returns the mode for re-registering a known account.
func ReRegistering(e164, accountID string) Mode {
	return Mode{Kind: ModeReRegistering, E164: e164, AccountID: accountID}
}

// ChangingNumber returns the mode for moving an account to a new number.
func ChangingNumber(oldE164, oldAuthToken, localAccountID string) Mode {
	return Mode{
		Kind:           ModeChangingNumber,
		OldE164:        oldE164,
		OldAuthToken:   oldAuthToken,
		LocalAccountID: localAccountID,
	}
}

// Validate checks that the fields required by Kind are present.
func (m Mode) Validate() error {
	switch m.Kind {
	case ModeRegistering:
		return nil
	case ModeReRegistering:
		if m.E164 == "" || m.AccountID == "" {
			return fmt.Errorf("re-registering mode requires e164 and account id")
		}
		return nil
	case ModeChangingNumber:
		if m.OldE164 == "" || m.OldAuthToken == "" || m.LocalAccountID == "" {
			return fmt.Errorf("changing-number mode requires old e164, auth token and local account id")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode kind %q", m.Kind)
	}
}

// CanExit reports whether the user may abandon the flow in this mode.
// A fresh registration has nowhere to go back to, and a change-number
// with a pending PNI bundle must reconcile before it can be abandoned.
func (m Mode) CanExit() bool {
	switch m.Kind {
	case ModeReRegistering:
		return true
	case ModeChangingNumber:
		return m.PendingPNI == nil
	default:
		return false
	}
}

// Clone returns a deep copy.
func (m Mode) Clone() Mode {
	if m.PendingPNI != nil {
		p := *m.PendingPNI
		p.PNIIdentityKey = cloneBytes(p.PNIIdentityKey)
		p.SignedPreKey = cloneBytes(p.SignedPreKey)
		m.PendingPNI = &p
	}
	return m
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
