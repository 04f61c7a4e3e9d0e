package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "registrar", cmd.Use)
	assert.Contains(t, cmd.Long, "registration")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"status", "reset", "test", "config"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	for _, name := range []string{"update", "filter", "golden-dir"} {
		assert.NotNil(t, testCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestResetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	resetCmd, _, err := cmd.Find([]string{"reset"})
	require.NoError(t, err)

	accountFlag := resetCmd.Flags().Lookup("account")
	require.NotNil(t, accountFlag)
	assert.Equal(t, "false", accountFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	env := newTestEnv(t)
	cmd := NewRootCommand()
	_, err := execute(cmd, "--format", "xml", "--config", env.opts.ConfigPath, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExecute_ExitCodes(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		code := Execute([]string{"--config", env.opts.ConfigPath, "config"}, stdout, stderr)
		assert.Equal(t, ExitSuccess, code)
		assert.Contains(t, stdout.String(), "[engine]")
	})

	t.Run("command error in text", func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		code := Execute([]string{"test", "/nonexistent/scenarios"}, stdout, stderr)
		assert.Equal(t, ExitCommandError, code)
		assert.Contains(t, stderr.String(), "Error [E_COMMAND]")
		assert.Contains(t, stderr.String(), "scenario path not found")
	})

	t.Run("command error in json", func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		code := Execute([]string{"--format", "json", "--config", "/nonexistent/config.toml", "status"}, stdout, stderr)
		assert.Equal(t, ExitCommandError, code)

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E_COMMAND", resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "failed to load configuration")
	})
}
