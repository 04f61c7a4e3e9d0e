package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/roach88/registrar/internal/account"
	"github.com/roach88/registrar/internal/config"
	"github.com/roach88/registrar/internal/store"
)

// loadConfig reads and validates the configuration named by --config.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openStore opens the configured durable state store. The SQLite
// directory is created on demand.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Store.Backend == "" || cfg.Store.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create store directory", err)
		}
	}

	slog.Debug("opening store", "backend", cfg.Store.Backend, "path", cfg.Store.Path, "redis_addr", cfg.Store.RedisAddr)
	st, err := store.New(store.Options{
		Backend:     cfg.Store.Backend,
		Path:        cfg.Store.Path,
		RedisAddr:   cfg.Store.RedisAddr,
		RedisPrefix: cfg.Store.RedisPrefix,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s store", cfg.Store.Backend), err)
	}
	return st, nil
}

func closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}

func accountStore(opts *RootOptions, cfg config.Config) *account.FileStore {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return account.NewFileStore(fs, cfg.Account.Dir)
}
