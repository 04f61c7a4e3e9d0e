package service

import (
	"context"

	"github.com/roach88/registrar/internal/model"
)

// PreKeyResultKind classifies a one-time prekey upload.
type PreKeyResultKind string

const (
	PreKeySuccess      PreKeyResultKind = "success"
	PreKeyDeregistered PreKeyResultKind = "deregistered"
	PreKeyNetworkError PreKeyResultKind = "networkError"
	PreKeyGenericError PreKeyResultKind = "genericError"
)

// PreKeys uploads one-time prekeys for a new identity.
type PreKeys interface {
	RefreshOneTimePreKeys(ctx context.Context, identity model.AccountIdentity) PreKeyResultKind
}

// StorageRestoreResult is the account record found in the storage service.
type StorageRestoreResult struct {
	Kind         OutcomeKind
	Found        bool
	Profile      *model.ProfileInfo
	Discoverable *bool
}

// StorageService restores the remote account record and backs up local
// account state once registration is finished.
type StorageService interface {
	RestoreAccountRecord(ctx context.Context, identity model.AccountIdentity, masterKey []byte) StorageRestoreResult
	BackupAccountRecord(ctx context.Context, identity model.AccountIdentity, masterKey []byte) Outcome
}

// Profiles uploads the user's profile.
type Profiles interface {
	SetProfile(ctx context.Context, identity model.AccountIdentity, info model.ProfileInfo) Outcome
}

// Usernames reclaims a previously confirmed username.
type Usernames interface {
	ReclaimUsername(ctx context.Context, identity model.AccountIdentity) Outcome
}

// PNIManager generates and applies the secondary identity bundle of a
// number change.
type PNIManager interface {
	GeneratePNI(ctx context.Context, newE164 string) (model.PendingPNIState, error)
	ApplyPNI(ctx context.Context, state model.PendingPNIState, identity model.AccountIdentity) error
}

// LocalSecrets is the device's long-term secret storage. The engine
// reads it once per launch.
type LocalSecrets interface {
	MasterKey(ctx context.Context) []byte
	LegacyPin(ctx context.Context) string
	// VerifyPin checks a PIN against the locally stored hash.
	VerifyPin(ctx context.Context, pin string) bool
	SVRAuthCredentials(ctx context.Context) []model.SVRAuthCredential
	ReglockEnabled(ctx context.Context) bool
	HasConfirmedUsername(ctx context.Context) bool
}

// ExportedAccount is the long-term account state written on completion.
type ExportedAccount struct {
	Identity                    model.AccountIdentity `json:"identity"`
	MasterKey                   []byte                `json:"master_key,omitempty"`
	ReglockEnabled              bool                  `json:"reglock_enabled"`
	IsDiscoverableByPhoneNumber bool                  `json:"is_discoverable_by_phone_number"`
	Profile                     *model.ProfileInfo    `json:"profile,omitempty"`
	RestoredFromStorageService  bool                  `json:"restored_from_storage_service"`
}

// AccountExporter persists the completed account outside the engine's store.
type AccountExporter interface {
	Export(ctx context.Context, account ExportedAccount) error
}
