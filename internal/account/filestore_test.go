package account

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

func testAccount() service.ExportedAccount {
	return service.ExportedAccount{
		Identity: model.AccountIdentity{
			ACI:       "aci-0001",
			PNI:       "pni-0001",
			E164:      "+15551234567",
			DeviceID:  1,
			AuthToken: "token",
		},
		MasterKey:                   []byte("0123456789abcdef0123456789abcdef"),
		ReglockEnabled:              true,
		IsDiscoverableByPhoneNumber: true,
		Profile:                     &model.ProfileInfo{GivenName: "Ada"},
	}
}

func TestFileStore_ExportAndLoad(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/var/registrar")

	require.NoError(t, s.Export(ctx, testAccount()))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAccount(), got)

	exists, err := afero.Exists(fs, "/var/registrar/account.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStore_ExportReplaces(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/data")

	require.NoError(t, s.Export(ctx, testAccount()))
	second := testAccount()
	second.Identity.E164 = "+15559876543"
	require.NoError(t, s.Export(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+15559876543", got.Identity.E164)

	entries, err := afero.ReadDir(fs, "/data")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "/empty")

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/account.json", []byte("{nope"), 0o600))
	s := NewFileStore(fs, "/data")

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoAccount)
}

func TestFileStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(afero.NewMemMapFs(), "/data")

	require.NoError(t, s.Remove(ctx), "removing nothing is fine")
	require.NoError(t, s.Export(ctx, testAccount()))
	require.NoError(t, s.Remove(ctx))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestFileStore_ExportHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFileStore(afero.NewMemMapFs(), "/data")

	assert.ErrorIs(t, s.Export(ctx, testAccount()), context.Canceled)
}
