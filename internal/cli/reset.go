package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Account bool // also remove the exported account
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the stored registration state",
		Long: `Delete the stored orchestration mode and persisted registration
record, so the next run starts from a blank state.

The exported account is kept unless --account is given.

Example:
  registrar reset
  registrar reset --account`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Account, "account", false, "also remove the exported account")

	return cmd
}

// ResetResult reports what the reset command removed.
type ResetResult struct {
	StateCleared   bool `json:"state_cleared"`
	AccountRemoved bool `json:"account_removed"`
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := st.Clear(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear state", err)
	}
	if err := st.SaveMode(ctx, nil); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear mode", err)
	}
	slog.Info("registration state cleared", "backend", cfg.Store.Backend)

	result := ResetResult{StateCleared: true}
	if opts.Account {
		accounts := accountStore(opts.RootOptions, cfg)
		if err := accounts.Remove(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to remove exported account", err)
		}
		slog.Info("exported account removed", "path", accounts.Path())
		result.AccountRemoved = true
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(result)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Registration state cleared")
	if result.AccountRemoved {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Exported account removed")
	}
	return nil
}
