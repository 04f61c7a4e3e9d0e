package engine

import "github.com/roach88/registrar/internal/model"

// Resolve selects the active pathway. It reads only its arguments, so the
// same triple always yields the same pathway.
//
// Priority, highest first:
//  1. permissions outstanding → Opening (the splash introduces them, so a
//     device with nothing outstanding never sees it)
//  2. registering with an unsatisfied restore mode → QuickRestore/ManualRestore
//  3. active session → Session
//  4. account identity obtained → ProfileSetup
//  5. unless PIN entry was skipped: recovery password, then a validated
//     credential, then candidate credentials
//  6. Opening
func Resolve(mode model.Mode, p model.PersistedState, mem model.InMemoryState) model.Pathway {
	if mode.Kind == model.ModeRegistering {
		if mem.PermissionsOutstanding {
			return model.PathOpening{}
		}
		if !restoreSatisfied(mem) {
			switch p.RestoreMode {
			case model.RestoreModeQuick:
				return model.PathQuickRestore{}
			case model.RestoreModeManual:
				return model.PathManualRestore{}
			}
		}
	}

	if mem.Session != nil {
		return model.PathSession{Session: mem.Session}
	}

	if p.AccountIdentity != nil {
		return model.PathProfileSetup{Identity: *p.AccountIdentity}
	}

	if !p.HasSkippedPinEntry {
		switch {
		case mem.RegRecoveryPassword != "":
			return model.PathRegistrationRecoveryPassword{Password: mem.RegRecoveryPassword}
		case mem.SVRAuthCredential != nil:
			return model.PathSVRAuthCredential{Credential: *mem.SVRAuthCredential}
		case len(mem.SVRAuthCredentialCandidates) > 0:
			return model.PathSVRAuthCredentialCandidates{Candidates: mem.SVRAuthCredentialCandidates}
		}
	}

	return model.PathOpening{}
}

// restoreSatisfied reports whether the chosen restore method lets
// registration proceed. A device transfer is carried out externally and
// never satisfies the restore step from here.
func restoreSatisfied(mem model.InMemoryState) bool {
	return mem.RestoreMethod.RequiresRootKey() && mem.HasRootKey
}
