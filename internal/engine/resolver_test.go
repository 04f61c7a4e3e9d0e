package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/registrar/internal/model"
)

func TestResolve_Priority(t *testing.T) {
	session := &model.Session{ID: "s1"}
	identity := &model.AccountIdentity{ACI: "aci"}
	cred := &model.SVRAuthCredential{Username: "u", Password: "p"}
	candidates := []model.SVRAuthCredential{{Username: "u", Password: "p"}}

	tests := []struct {
		name string
		mode model.Mode
		p    model.PersistedState
		mem  model.InMemoryState
		want string
	}{
		{
			name: "blank state opens",
			mode: model.Registering(),
			want: "opening",
		},
		{
			name: "outstanding permissions beat a session",
			mode: model.Registering(),
			mem:  model.InMemoryState{PermissionsOutstanding: true, Session: session},
			want: "opening",
		},
		{
			name: "permissions ignored outside registration",
			mode: model.ReRegistering("+15551234567", "aci"),
			mem:  model.InMemoryState{PermissionsOutstanding: true, Session: session},
			want: "session",
		},
		{
			name: "quick restore before session",
			mode: model.Registering(),
			p:    model.PersistedState{RestoreMode: model.RestoreModeQuick},
			mem:  model.InMemoryState{Session: session},
			want: "quickRestore",
		},
		{
			name: "manual restore",
			mode: model.Registering(),
			p:    model.PersistedState{RestoreMode: model.RestoreModeManual},
			want: "manualRestore",
		},
		{
			name: "root key satisfies restore",
			mode: model.Registering(),
			p:    model.PersistedState{RestoreMode: model.RestoreModeQuick},
			mem:  model.InMemoryState{RestoreMethod: model.RestoreMethodRemoteBackup, HasRootKey: true, RegRecoveryPassword: "pw"},
			want: "registrationRecoveryPassword",
		},
		{
			name: "device transfer never satisfies restore",
			mode: model.Registering(),
			p:    model.PersistedState{RestoreMode: model.RestoreModeQuick},
			mem:  model.InMemoryState{RestoreMethod: model.RestoreMethodDeviceTransfer},
			want: "quickRestore",
		},
		{
			name: "session beats identity",
			mode: model.Registering(),
			p:    model.PersistedState{AccountIdentity: identity},
			mem:  model.InMemoryState{Session: session},
			want: "session",
		},
		{
			name: "identity beats recovery password",
			mode: model.Registering(),
			p:    model.PersistedState{AccountIdentity: identity},
			mem:  model.InMemoryState{RegRecoveryPassword: "pw"},
			want: "profileSetup",
		},
		{
			name: "recovery password beats credential",
			mode: model.Registering(),
			mem:  model.InMemoryState{RegRecoveryPassword: "pw", SVRAuthCredential: cred, SVRAuthCredentialCandidates: candidates},
			want: "registrationRecoveryPassword",
		},
		{
			name: "credential beats candidates",
			mode: model.Registering(),
			mem:  model.InMemoryState{SVRAuthCredential: cred, SVRAuthCredentialCandidates: candidates},
			want: "svrAuthCredential",
		},
		{
			name: "candidates",
			mode: model.Registering(),
			mem:  model.InMemoryState{SVRAuthCredentialCandidates: candidates},
			want: "svrAuthCredentialCandidates",
		},
		{
			name: "skipped pin entry ignores recovery material",
			mode: model.Registering(),
			p:    model.PersistedState{HasSkippedPinEntry: true},
			mem:  model.InMemoryState{RegRecoveryPassword: "pw", SVRAuthCredential: cred},
			want: "opening",
		},
		{
			name: "restore mode ignored when changing number",
			mode: model.ChangingNumber("+15550000001", "tok", "aci"),
			p:    model.PersistedState{RestoreMode: model.RestoreModeQuick},
			want: "opening",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.mode, tt.p, tt.mem)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	mode := model.Registering()
	p := model.PersistedState{AccountIdentity: &model.AccountIdentity{ACI: "aci"}}
	mem := model.InMemoryState{SVRAuthCredentialCandidates: []model.SVRAuthCredential{{Username: "u"}}}

	first := Resolve(mode, p, mem)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Resolve(mode, p, mem))
	}
}

func TestResolve_CarriesPayload(t *testing.T) {
	cred := model.SVRAuthCredential{Username: "u", Password: "p"}
	got := Resolve(model.Registering(), model.PersistedState{}, model.InMemoryState{SVRAuthCredential: &cred})

	path, ok := got.(model.PathSVRAuthCredential)
	if assert.True(t, ok) {
		assert.Equal(t, cred, path.Credential)
	}
}
