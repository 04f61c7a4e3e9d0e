package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// testEnv is an isolated configuration: a SQLite store and an account
// directory under a temp dir, and an in-memory filesystem for exports.
type testEnv struct {
	dir        string
	dbPath     string
	accountDir string
	opts       *RootOptions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("REGISTRAR_CONFIG", "")

	env := &testEnv{
		dir:        dir,
		dbPath:     filepath.Join(dir, "data", "registrar.db"),
		accountDir: filepath.Join(dir, "account"),
	}
	configPath := filepath.Join(dir, "config.toml")
	body := "[store]\nbackend = \"sqlite\"\npath = \"" + filepath.ToSlash(env.dbPath) + "\"\n\n" +
		"[account]\ndir = \"" + filepath.ToSlash(env.accountDir) + "\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))

	env.opts = &RootOptions{Format: "text", ConfigPath: configPath, Fs: afero.NewMemMapFs()}
	return env
}

// seed writes a mode and state into the env's SQLite store.
func (e *testEnv) seed(t *testing.T, mode model.Mode, mutate func(*model.PersistedState)) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(e.dbPath), 0o755))
	st, err := store.OpenSQLite(e.dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.SaveMode(ctx, &mode))
	_, err = st.Update(ctx, func(p *model.PersistedState) error {
		mutate(p)
		return nil
	})
	require.NoError(t, err)
}

func (e *testEnv) openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.OpenSQLite(e.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
