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
	"github.com/roach88/registrar/internal/store"
)

func seedAccount(t *testing.T, env *testEnv) *account.FileStore {
	t.Helper()
	fs := account.NewFileStore(env.opts.Fs, env.accountDir)
	require.NoError(t, fs.Export(context.Background(), service.ExportedAccount{
		Identity: model.AccountIdentity{ACI: "aci-0001", E164: "+15551234567"},
	}))
	return fs
}

func TestReset_ClearsModeAndState(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, model.Registering(), func(p *model.PersistedState) { p.E164 = "+15551234567" })
	accounts := seedAccount(t, env)

	out, err := execute(NewResetCommand(env.opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Registration state cleared")
	assert.NotContains(t, out, "Exported account removed")

	ctx := context.Background()
	st := env.openStore(t)
	_, err = st.LoadMode(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Load(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = accounts.Load(ctx)
	assert.NoError(t, err, "account is kept without --account")
}

func TestReset_Account(t *testing.T) {
	env := newTestEnv(t)
	env.opts.Format = "json"
	accounts := seedAccount(t, env)

	out, err := execute(NewResetCommand(env.opts), "--account")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   ResetResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.StateCleared)
	assert.True(t, resp.Data.AccountRemoved)

	_, err = accounts.Load(context.Background())
	assert.ErrorIs(t, err, account.ErrNoAccount)
}

func TestReset_EmptyStore(t *testing.T) {
	env := newTestEnv(t)

	_, err := execute(NewResetCommand(env.opts))
	require.NoError(t, err)
}
