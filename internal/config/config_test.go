package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/engine"
)

// isolate points HOME at an empty directory and clears REGISTRAR_ vars.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigPath, "")
	return home
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultConfig(), c.EngineConfig())
	assert.Equal(t, "sqlite", c.Store.Backend)
	assert.Equal(t, filepath.Join(home, ".local", "share", "registrar", "registrar.db"), c.Store.Path)
	assert.Equal(t, filepath.Join(home, ".local", "share", "registrar"), c.Account.Dir)
}

func TestLoad_HomeConfigFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "registrar", "config.toml"), `
[engine]
max_network_retries = 5
push_max_wait = "45s"

[store]
backend = "memory"
`)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, c.Engine.MaxNetworkRetries)
	assert.Equal(t, 45*time.Second, c.Engine.PushMaxWait)
	assert.Equal(t, 3*time.Second, c.Engine.PushMinWait, "unset keys keep defaults")
	assert.Equal(t, "memory", c.Store.Backend)
}

func TestLoad_ExplicitPathAndEnvOverride(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, `
[engine]
max_local_pin_guesses = 4
`)
	t.Setenv("REGISTRAR_ENGINE_MAX_LOCAL_PIN_GUESSES", "7")
	t.Setenv("REGISTRAR_STORE_BACKEND", "redis")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, c.Engine.MaxLocalPinGuesses, "env beats file")
	assert.Equal(t, "redis", c.Store.Backend)
}

func TestLoad_EnvConfigPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "env.toml")
	writeConfig(t, path, `
[account]
dir = "/srv/registrar"
`)
	t.Setenv(EnvConfigPath, path)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/registrar", c.Account.Dir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeConfig(t, path, `
[engine]
push_min_wait = "10s"
push_max_wait = "5s"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "push max below min",
			mutate:  func(c *Config) { c.Engine.PushMaxWait = time.Second },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Engine.MaxNetworkRetries = -1 },
			wantErr: true,
		},
		{
			name:    "zero pin guesses",
			mutate:  func(c *Config) { c.Engine.MaxLocalPinGuesses = 0 },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: true,
		},
		{
			name:    "sqlite needs a path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
		},
		{
			name: "memory needs no path",
			mutate: func(c *Config) {
				c.Store.Backend = "memory"
				c.Store.Path = ""
			},
		},
		{
			name: "redis needs an address",
			mutate: func(c *Config) {
				c.Store.Backend = "redis"
				c.Store.RedisAddr = ""
			},
			wantErr: true,
		},
		{
			name:    "account dir required",
			mutate:  func(c *Config) { c.Account.Dir = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			c := Default()
			tt.mutate(&c)

			err := Validate(c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
