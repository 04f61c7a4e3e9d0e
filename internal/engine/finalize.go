package engine

import (
	"context"

	"github.com/roach88/registrar/internal/keys"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

// handleProfileSetup runs the finalization sequence for an obtained
// identity. Each stage is gated by a persisted flag so an interrupted
// finalization resumes where it stopped.
//
// Prekeys, profile and attributes must succeed. Storage restore and
// backup, the recovery backup and username reclamation are best-effort and
// marked done whatever their outcome.
func (e *Engine) handleProfileSetup(ctx context.Context, identity model.AccountIdentity) (model.Step, error) {
	auth := service.AccountAuth{ACI: identity.ACI, DeviceID: identity.DeviceID, AuthToken: identity.AuthToken}

	if !e.persisted.DidRefreshOneTimePreKeys {
		res, err := callRemote(ctx, e, "refreshPreKeys", func(ctx context.Context) service.PreKeyResultKind {
			return e.c.PreKeys.RefreshOneTimePreKeys(ctx, identity)
		}, classifyPreKeys)
		if err != nil {
			return nil, err
		}
		switch res {
		case service.PreKeySuccess:
			return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.DidRefreshOneTimePreKeys = true })
		case service.PreKeyDeregistered:
			return e.becomeDeregistered(ctx, identity)
		default:
			return e.blockForOutcome(res == service.PreKeyNetworkError, model.StepProfileSetup{}), nil
		}
	}

	if e.mode.Kind == model.ModeChangingNumber {
		return e.finishNumberChange(ctx, identity)
	}

	if !e.persisted.RestoredFromStorageService && !e.persisted.HasSkippedStorageRestore {
		return nil, e.restoreFromStorageService(ctx, identity)
	}

	if !e.persisted.DidBackUpToSVR {
		return e.handleRecoveryBackup(ctx, identity, auth)
	}

	if e.mem.HasConfirmedUsername && !e.persisted.DidAttemptUsernameReclamation {
		res, err := callRemote(ctx, e, "reclaimUsername", func(ctx context.Context) service.Outcome {
			return e.c.Usernames.ReclaimUsername(ctx, identity)
		}, classifyOutcome(outcomeKind))
		if err != nil {
			return nil, err
		}
		if !res.Succeeded() {
			e.log.Warn("username reclamation failed", "outcome", res.Kind)
		}
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.DidAttemptUsernameReclamation = true })
	}

	if !e.persisted.HasProfile {
		if e.mem.PendingProfile == nil {
			return model.StepProfileSetup{}, nil
		}
		info := *e.mem.PendingProfile
		res, err := callRemote(ctx, e, "setProfile", func(ctx context.Context) service.Outcome {
			return e.c.Profiles.SetProfile(ctx, identity, info)
		}, classifyOutcome(outcomeKind))
		if err != nil {
			return nil, err
		}
		if !res.Succeeded() {
			return e.blockForOutcome(res.Retryable(), model.StepProfileSetup{}), nil
		}
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) { p.HasProfile = true })
	}

	if !e.persisted.HasSetUpPhoneNumberDiscoverability {
		prompt := model.StepPhoneNumberDiscoverability{E164: identity.E164}
		if e.mem.PendingDiscoverable == nil {
			return prompt, nil
		}
		attrs := service.AccountAttributes{Discoverable: *e.mem.PendingDiscoverable}
		if e.persisted.ReglockKnownEnabled {
			attrs.ReglockToken = e.mem.ReglockToken
		}
		res, err := callRemote(ctx, e, "updateAttributes", func(ctx context.Context) service.Outcome {
			return e.c.Accounts.UpdateAttributes(ctx, auth, attrs)
		}, classifyOutcome(outcomeKind))
		if err != nil {
			return nil, err
		}
		if !res.Succeeded() {
			return e.blockForOutcome(res.Retryable(), prompt), nil
		}
		return nil, e.withPersisted(ctx, func(p *model.PersistedState) {
			p.HasSetUpPhoneNumberDiscoverability = true
			p.IsDiscoverableByPhoneNumber = attrs.Discoverable
		})
	}

	if !e.persisted.DidBackUpToStorageService {
		return nil, e.backUpToStorageService(ctx, identity)
	}

	return e.complete(ctx, identity)
}

func (e *Engine) restoreFromStorageService(ctx context.Context, identity model.AccountIdentity) error {
	key := e.currentMasterKey()
	if key == nil {
		e.log.Info("no master key, skipping storage service restore")
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasSkippedStorageRestore = true })
	}

	res, err := callRemote(ctx, e, "restoreAccountRecord", func(ctx context.Context) service.StorageRestoreResult {
		return e.c.Storage.RestoreAccountRecord(ctx, identity, key)
	}, classifyOutcome(func(r service.StorageRestoreResult) service.OutcomeKind { return r.Kind }))
	if err != nil {
		return err
	}
	if res.Kind != service.OutcomeSuccess || !res.Found {
		e.log.Info("storage service restore skipped", "outcome", res.Kind, "found", res.Found)
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasSkippedStorageRestore = true })
	}

	if res.Profile != nil {
		profile := *res.Profile
		e.withInMemory(func(m *model.InMemoryState) { m.PendingProfile = &profile })
	}
	return e.withPersisted(ctx, func(p *model.PersistedState) {
		p.RestoredFromStorageService = true
		if res.Profile != nil {
			p.HasProfile = true
		}
		if res.Discoverable != nil {
			p.HasSetUpPhoneNumberDiscoverability = true
			p.IsDiscoverableByPhoneNumber = *res.Discoverable
		}
	})
}

func (e *Engine) backUpToStorageService(ctx context.Context, identity model.AccountIdentity) error {
	markDone := func(p *model.PersistedState) { p.DidBackUpToStorageService = true }

	key := e.currentMasterKey()
	if key == nil {
		e.log.Info("no master key, skipping storage service backup")
		return e.withPersisted(ctx, markDone)
	}
	res, err := callRemote(ctx, e, "backupAccountRecord", func(ctx context.Context) service.Outcome {
		return e.c.Storage.BackupAccountRecord(ctx, identity, key)
	}, classifyOutcome(outcomeKind))
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		e.log.Warn("storage service backup failed", "outcome", res.Kind)
	}
	return e.withPersisted(ctx, markDone)
}

// handleRecoveryBackup restores the master key after registration when the
// account used the recovery service before, otherwise backs the key up
// under a PIN, creating both if needed.
func (e *Engine) handleRecoveryBackup(ctx context.Context, identity model.AccountIdentity, auth service.AccountAuth) (model.Step, error) {
	key := e.currentMasterKey()

	if key == nil && identity.HasPreviouslyUsedSVR && !e.persisted.HasGivenUpOnSVRRestore {
		return e.restoreAfterRegistration(ctx, auth)
	}

	if key != nil && e.mem.VerifiedPin != "" {
		return nil, e.backUpMasterKey(ctx, key, auth)
	}

	if e.mem.PendingPin == "" {
		return e.pinStep(model.PinModeCreate, true), nil
	}
	pin := e.consumePin()
	if key == nil {
		generated, err := keys.NewMasterKey()
		if err != nil {
			return nil, err
		}
		if err := e.withPersisted(ctx, func(p *model.PersistedState) { p.RecoveredSVRMasterKey = generated }); err != nil {
			return nil, err
		}
		key = generated
	}
	e.withInMemory(func(m *model.InMemoryState) {
		e.deriveFromMasterKey(m, key)
		m.VerifiedPin = pin
	})
	return nil, nil
}

func (e *Engine) restoreAfterRegistration(ctx context.Context, auth service.AccountAuth) (model.Step, error) {
	if e.mem.PendingPin == "" {
		return e.pinStep(model.PinModePostRegistrationRestore, true), nil
	}
	pin := e.consumePin()

	res, err := callRemote(ctx, e, "restoreKeys", func(ctx context.Context) service.SVRRestoreResult {
		return e.c.SVR.RestoreKeys(ctx, pin, service.SVRAuth{Account: &auth})
	}, classifySVR)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case service.SVRRestoreSuccess:
		return nil, e.adoptMasterKey(ctx, res.MasterKey, pin)
	case service.SVRRestoreInvalidPin:
		if res.RemainingAttempts > 0 {
			e.wrongPin(res.RemainingAttempts)
			return e.pinStep(model.PinModePostRegistrationRestore, true), nil
		}
		return nil, e.giveUpOnSVRRestore(ctx)
	case service.SVRRestoreBackupMissing:
		return nil, e.giveUpOnSVRRestore(ctx)
	default:
		return e.blockForOutcome(res.Kind == service.SVRRestoreNetworkError, e.pinStep(model.PinModePostRegistrationRestore, true)), nil
	}
}

func (e *Engine) giveUpOnSVRRestore(ctx context.Context) error {
	e.log.Info("giving up on post-registration restore")
	e.withInMemory(func(m *model.InMemoryState) {
		m.RemainingPinAttempts = nil
		m.LastPinError = model.PinErrorNone
	})
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.HasGivenUpOnSVRRestore = true })
}

// backUpMasterKey stores the key under the verified PIN and, when reglock
// is on, re-enables it with the token for this key. Both are best-effort.
func (e *Engine) backUpMasterKey(ctx context.Context, key []byte, auth service.AccountAuth) error {
	pin := e.mem.VerifiedPin
	res, err := callRemote(ctx, e, "backupKey", func(ctx context.Context) service.Outcome {
		return e.c.SVR.BackupKey(ctx, pin, key, service.SVRAuth{Account: &auth})
	}, classifyOutcome(outcomeKind))
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		e.log.Warn("master key backup failed", "outcome", res.Kind)
		return e.withPersisted(ctx, func(p *model.PersistedState) { p.DidBackUpToSVR = true })
	}

	if e.persisted.ReglockKnownEnabled {
		token, err := keys.ReglockToken(key)
		if err != nil {
			return err
		}
		out, err := callRemote(ctx, e, "enableReglock", func(ctx context.Context) service.Outcome {
			return e.c.Accounts.EnableReglock(ctx, auth, token)
		}, classifyOutcome(outcomeKind))
		if err != nil {
			return err
		}
		if !out.Succeeded() {
			e.log.Warn("enable reglock failed", "outcome", out.Kind)
		}
	}
	return e.withPersisted(ctx, func(p *model.PersistedState) { p.DidBackUpToSVR = true })
}

// becomeDeregistered restarts the flow as a re-registration of the
// identity the server just dropped.
func (e *Engine) becomeDeregistered(ctx context.Context, identity model.AccountIdentity) (model.Step, error) {
	e.log.Warn("account deregistered during finalization", "aci", identity.ACI)
	e.metrics.reset("deregistered")

	if err := e.saveMode(ctx, model.ReRegistering(identity.E164, identity.ACI)); err != nil {
		return nil, err
	}
	if err := e.withPersisted(ctx, func(p *model.PersistedState) {
		splash := p.HasShownSplash
		*p = model.NewPersistedState()
		p.E164 = identity.E164
		p.HasShownSplash = splash
	}); err != nil {
		return nil, err
	}
	e.snapshot(ctx)
	return e.block(model.ErrorSheetBecameDeregistered, nil, e.phoneNumberStep()), nil
}

func (e *Engine) finishNumberChange(ctx context.Context, identity model.AccountIdentity) (model.Step, error) {
	if pending := e.mode.PendingPNI; pending != nil {
		if err := e.c.PNI.ApplyPNI(ctx, *pending, identity); err != nil {
			e.log.Error("apply pni", "error", err)
			return e.block(model.ErrorSheetGeneric, nil, model.StepProfileSetup{}), nil
		}
		if err := e.discardPendingPNI(ctx); err != nil {
			return nil, err
		}
	}
	return e.complete(ctx, identity)
}

// complete exports the account and wipes every orchestration record.
func (e *Engine) complete(ctx context.Context, identity model.AccountIdentity) (model.Step, error) {
	account := service.ExportedAccount{
		Identity:                    identity,
		MasterKey:                   e.currentMasterKey(),
		ReglockEnabled:              e.persisted.ReglockKnownEnabled || identity.ReglockEnabled,
		IsDiscoverableByPhoneNumber: e.persisted.IsDiscoverableByPhoneNumber,
		Profile:                     e.mem.PendingProfile,
		RestoredFromStorageService:  e.persisted.RestoredFromStorageService,
	}
	if err := e.c.Exporter.Export(ctx, account); err != nil {
		e.log.Error("export account", "error", err)
		return e.block(model.ErrorSheetGeneric, nil, model.StepProfileSetup{}), nil
	}

	if err := e.resetAll(ctx); err != nil {
		return nil, err
	}
	e.withInMemory(func(m *model.InMemoryState) { m.Completed = true })
	e.log.Info("registration complete", "aci", identity.ACI)
	return model.StepDone{}, nil
}
