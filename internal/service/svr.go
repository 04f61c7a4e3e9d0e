package service

import (
	"context"

	"github.com/roach88/registrar/internal/model"
)

// SVRAuth selects how a secret-recovery request authenticates. Exactly
// one of Credential or Account is set.
type SVRAuth struct {
	Credential *model.SVRAuthCredential
	Account    *AccountAuth
}

// SVRRestoreKind classifies a key restore.
type SVRRestoreKind string

const (
	SVRRestoreSuccess       SVRRestoreKind = "success"
	SVRRestoreInvalidPin    SVRRestoreKind = "invalidPin"
	SVRRestoreBackupMissing SVRRestoreKind = "backupMissing"
	SVRRestoreNetworkError  SVRRestoreKind = "networkError"
	SVRRestoreGenericError  SVRRestoreKind = "genericError"
)

// SVRRestoreResult is the closed response of RestoreKeys.
type SVRRestoreResult struct {
	Kind              SVRRestoreKind
	MasterKey         []byte
	RemainingAttempts int
}

// SVR is the secret-recovery service client.
type SVR interface {
	RestoreKeys(ctx context.Context, pin string, auth SVRAuth) SVRRestoreResult
	BackupKey(ctx context.Context, pin string, masterKey []byte, auth SVRAuth) Outcome
	// ClearKeys drops locally cached recovery linkage.
	ClearKeys(ctx context.Context)
}
