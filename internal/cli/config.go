package cli

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and
REGISTRAR_* environment overrides are applied and the result has passed
schema validation.

Text output is TOML and can be used as a config file.

Example:
  registrar config
  registrar config --config ./registrar.toml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, cmd)
		},
	}
}

func runConfig(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	settings := effectiveSettings(cfg)

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(settings)
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to render configuration", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// effectiveSettings lays cfg out by config key. Durations are rendered in
// the form the config file accepts.
func effectiveSettings(cfg config.Config) map[string]map[string]any {
	return map[string]map[string]any{
		"engine": {
			"max_network_retries":   cfg.Engine.MaxNetworkRetries,
			"auto_retry_threshold":  cfg.Engine.AutoRetryThreshold.String(),
			"push_min_wait":         cfg.Engine.PushMinWait.String(),
			"push_max_wait":         cfg.Engine.PushMaxWait.String(),
			"max_local_pin_guesses": cfg.Engine.MaxLocalPinGuesses,
			"max_resolutions":       cfg.Engine.MaxResolutions,
			"retry_base_delay":      cfg.Engine.RetryBaseDelay.String(),
		},
		"store": {
			"backend":      cfg.Store.Backend,
			"path":         cfg.Store.Path,
			"redis_addr":   cfg.Store.RedisAddr,
			"redis_prefix": cfg.Store.RedisPrefix,
		},
		"account": {
			"dir": cfg.Account.Dir,
		},
	}
}
