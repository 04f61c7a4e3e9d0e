package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/account"
	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
	"github.com/roach88/registrar/internal/store"
)

// StatusReport is what the status command prints. Secrets (auth tokens,
// master keys, reglock credentials) are never included.
type StatusReport struct {
	Backend string          `json:"backend"`
	Mode    *ModeSummary    `json:"mode,omitempty"`
	State   *StateSummary   `json:"state,omitempty"`
	Account *AccountSummary `json:"account,omitempty"`
}

// ModeSummary describes the stored orchestration mode.
type ModeSummary struct {
	Kind           model.ModeKind `json:"kind"`
	E164           string         `json:"e164,omitempty"`
	AccountID      string         `json:"account_id,omitempty"`
	OldE164        string         `json:"old_e164,omitempty"`
	LocalAccountID string         `json:"local_account_id,omitempty"`
	PendingNewE164 string         `json:"pending_new_e164,omitempty"`
}

// StateSummary describes the persisted orchestration record.
type StateSummary struct {
	Revision        string            `json:"revision,omitempty"`
	E164            string            `json:"e164,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	ReglockKind     model.ReglockKind `json:"reglock_kind,omitempty"`
	ACI             string            `json:"aci,omitempty"`
	RestoreMode     model.RestoreMode `json:"restore_mode,omitempty"`
	LocalPinGuesses int               `json:"local_pin_guesses"`
	Progress        []string          `json:"progress"`
}

// AccountSummary describes the exported long-term account state.
type AccountSummary struct {
	Path         string `json:"path"`
	ACI          string `json:"aci"`
	PNI          string `json:"pni,omitempty"`
	E164         string `json:"e164"`
	DeviceID     uint32 `json:"device_id"`
	Discoverable bool   `json:"discoverable"`
	Reglock      bool   `json:"reglock"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored registration state",
		Long: `Show the stored orchestration mode, the persisted registration
record and the exported account, if any.

Example:
  registrar status
  registrar status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
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

	report := StatusReport{Backend: cfg.Store.Backend}

	mode, err := st.LoadMode(ctx)
	switch {
	case err == nil:
		report.Mode = summarizeMode(mode)
	case !errors.Is(err, store.ErrNotFound):
		return WrapExitError(ExitCommandError, "failed to load mode", err)
	}

	state, err := st.Load(ctx)
	switch {
	case err == nil:
		report.State = summarizeState(state)
	case !errors.Is(err, store.ErrNotFound):
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}

	accounts := accountStore(opts, cfg)
	exported, err := accounts.Load(ctx)
	switch {
	case err == nil:
		report.Account = summarizeAccount(accounts.Path(), exported)
	case !errors.Is(err, account.ErrNoAccount):
		return WrapExitError(ExitCommandError, "failed to load exported account", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(report)
	}
	writeStatusText(cmd.OutOrStdout(), report)
	return nil
}

func summarizeMode(m model.Mode) *ModeSummary {
	s := &ModeSummary{
		Kind:           m.Kind,
		E164:           m.E164,
		AccountID:      m.AccountID,
		OldE164:        m.OldE164,
		LocalAccountID: m.LocalAccountID,
	}
	if m.PendingPNI != nil {
		s.PendingNewE164 = m.PendingPNI.NewE164
	}
	return s
}

func summarizeState(p model.PersistedState) *StateSummary {
	s := &StateSummary{
		Revision:        p.Revision,
		E164:            p.E164,
		RestoreMode:     p.RestoreMode,
		LocalPinGuesses: p.NumLocalPinGuesses,
		Progress:        []string{},
	}
	if p.SessionState != nil {
		s.SessionID = p.SessionState.SessionID
		s.ReglockKind = p.SessionState.Reglock.Kind
	}
	if p.AccountIdentity != nil {
		s.ACI = p.AccountIdentity.ACI
	}

	flags := []struct {
		set  bool
		name string
	}{
		{p.HasShownSplash, "splashShown"},
		{p.HasSkippedPinEntry, "pinSkipped"},
		{p.RestoredFromSVR, "restoredFromSVR"},
		{p.DidRefreshOneTimePreKeys, "preKeysRefreshed"},
		{p.RestoredFromStorageService, "restoredFromStorage"},
		{p.HasSkippedStorageRestore, "storageRestoreSkipped"},
		{p.DidBackUpToSVR, "backedUpToSVR"},
		{p.DidAttemptUsernameReclamation, "usernameReclaimed"},
		{p.HasProfile, "profileSet"},
		{p.HasSetUpPhoneNumberDiscoverability, "discoverabilitySet"},
		{p.DidBackUpToStorageService, "backedUpToStorage"},
	}
	for _, f := range flags {
		if f.set {
			s.Progress = append(s.Progress, f.name)
		}
	}
	return s
}

func summarizeAccount(path string, a service.ExportedAccount) *AccountSummary {
	return &AccountSummary{
		Path:         path,
		ACI:          a.Identity.ACI,
		PNI:          a.Identity.PNI,
		E164:         a.Identity.E164,
		DeviceID:     a.Identity.DeviceID,
		Discoverable: a.IsDiscoverableByPhoneNumber,
		Reglock:      a.ReglockEnabled,
	}
}

func writeStatusText(w io.Writer, r StatusReport) {
	fmt.Fprintf(w, "Store: %s\n", r.Backend)

	if r.Mode == nil {
		fmt.Fprintln(w, "Mode: none")
	} else {
		fmt.Fprintf(w, "Mode: %s\n", r.Mode.Kind)
		writeField(w, "e164", r.Mode.E164)
		writeField(w, "account", r.Mode.AccountID)
		writeField(w, "old e164", r.Mode.OldE164)
		writeField(w, "pending e164", r.Mode.PendingNewE164)
	}

	if r.State == nil {
		fmt.Fprintln(w, "State: none")
	} else {
		fmt.Fprintf(w, "State: revision %s\n", r.State.Revision)
		writeField(w, "e164", r.State.E164)
		writeField(w, "session", r.State.SessionID)
		writeField(w, "reglock", string(r.State.ReglockKind))
		writeField(w, "aci", r.State.ACI)
		writeField(w, "restore", string(r.State.RestoreMode))
		if r.State.LocalPinGuesses > 0 {
			fmt.Fprintf(w, "  local pin guesses: %d\n", r.State.LocalPinGuesses)
		}
		if len(r.State.Progress) > 0 {
			fmt.Fprintf(w, "  progress: %s\n", strings.Join(r.State.Progress, ", "))
		}
	}

	if r.Account == nil {
		fmt.Fprintln(w, "Account: not exported")
		return
	}
	fmt.Fprintf(w, "Account: %s (%s)\n", r.Account.ACI, r.Account.Path)
	writeField(w, "e164", r.Account.E164)
	fmt.Fprintf(w, "  device: %d\n", r.Account.DeviceID)
	fmt.Fprintf(w, "  discoverable: %t\n", r.Account.Discoverable)
}

func writeField(w io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(w, "  %s: %s\n", label, value)
	}
}
