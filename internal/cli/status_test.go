package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/account"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

func TestStatus_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(NewStatusCommand(env.opts))
	require.NoError(t, err)

	assert.Contains(t, out, "Store: sqlite")
	assert.Contains(t, out, "Mode: none")
	assert.Contains(t, out, "State: none")
	assert.Contains(t, out, "Account: not exported")
}

func TestStatus_InProgress(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.ReRegistering("+15551234567", "aci-0001"), func(p *model.PersistedState) {
		p.E164 = "+15551234567"
		p.HasShownSplash = true
		p.SessionState = model.NewSessionState("session-1")
		p.NumLocalPinGuesses = 2
	})

	out, err := execute(NewStatusCommand(env.opts))
	require.NoError(t, err)

	assert.Contains(t, out, "Mode: reRegistering")
	assert.Contains(t, out, "account: aci-0001")
	assert.Contains(t, out, "session: session-1")
	assert.Contains(t, out, "local pin guesses: 2")
	assert.Contains(t, out, "progress: splashShown")
}

func TestStatus_JSONOmitsSecrets(t *testing.T) {
	env := newTestEnv(t)
	env.opts.Format = "json"
	env.seed(t, model.ChangingNumber("+15550000000", "old-token-secret", "local-1"), func(p *model.PersistedState) {
		p.E164 = "+15551234567"
		p.RecoveredSVRMasterKey = make([]byte, 32)
	})

	exported := service.ExportedAccount{
		Identity: model.AccountIdentity{
			ACI:       "aci-0001",
			PNI:       "pni-0001",
			E164:      "+15551234567",
			DeviceID:  1,
			AuthToken: "auth-token-secret",
		},
		MasterKey:                   []byte("master-key-secret-0123456789abcd"),
		IsDiscoverableByPhoneNumber: true,
	}
	require.NoError(t, account.NewFileStore(env.opts.Fs, env.accountDir).Export(context.Background(), exported))

	out, err := execute(NewStatusCommand(env.opts))
	require.NoError(t, err)

	assert.NotContains(t, out, "old-token-secret")
	assert.NotContains(t, out, "auth-token-secret")
	assert.NotContains(t, out, "master_key")

	var resp struct {
		Status string       `json:"status"`
		Data   StatusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	require.NotNil(t, resp.Data.Mode)
	assert.Equal(t, model.ModeChangingNumber, resp.Data.Mode.Kind)
	assert.Equal(t, "+15550000000", resp.Data.Mode.OldE164)

	require.NotNil(t, resp.Data.State)
	assert.Equal(t, "+15551234567", resp.Data.State.E164)
	assert.NotEmpty(t, resp.Data.State.Revision)

	require.NotNil(t, resp.Data.Account)
	assert.Equal(t, "aci-0001", resp.Data.Account.ACI)
	assert.True(t, resp.Data.Account.Discoverable)
}

func TestStatus_BadConfig(t *testing.T) {
	env := newTestEnv(t)
	env.opts.ConfigPath = "/nonexistent/config.toml"

	_, err := execute(NewStatusCommand(env.opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
