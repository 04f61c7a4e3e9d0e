package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sharedScenarios = "../../testdata/scenarios"
	sharedGoldens   = "../harness/testdata/golden"
)

const passingScenario = `
name: opening
description: "First evaluation asks for a phone number"
mode: { kind: registering }
flow:
  - input: nextStep
    expect: phoneNumberEntry(mode=initialRegistration)
assertions:
  - type: final_step
    step: phoneNumberEntry(mode=initialRegistration)
`

const failingScenario = `
name: wrong_expectation
description: "Expects a step the engine never returns"
mode: { kind: registering }
flow:
  - input: nextStep
    expect: done
assertions:
  - type: final_step
    step: done
`

func writeScenario(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newTestCmd(format string) (*bytes.Buffer, func(args ...string) error) {
	buf := &bytes.Buffer{}
	return buf, func(args ...string) error {
		cmd := NewTestCommand(&RootOptions{Format: format})
		cmd.SetOut(buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, run := newTestCmd("text")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, run := newTestCmd("text")
	err := run("/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario path not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	buf, run := newTestCmd("text")
	require.NoError(t, run(t.TempDir()))
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	buf, run := newTestCmd("json")
	require.NoError(t, run(t.TempDir()))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.NotNil(t, resp.Data.Scenarios)
}

func TestTestCommandSharedScenarios(t *testing.T) {
	buf, run := newTestCmd("text")
	err := run(sharedScenarios, "--golden-dir", sharedGoldens)
	require.NoError(t, err, buf.String())

	out := buf.String()
	assert.Contains(t, out, "✓ sms_registration")
	assert.Contains(t, out, "✓ network_error_sheet")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	buf, run := newTestCmd("json")
	require.NoError(t, run(sharedScenarios, "--golden-dir", sharedGoldens, "--filter", "sms_*"))

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "sms_registration", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, run := newTestCmd("text")
	err := run(sharedScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", passingScenario)
	writeScenario(t, dir, "b.yaml", failingScenario)

	buf, run := newTestCmd("text")
	err := run(dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✓ opening")
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "expected step done")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", failingScenario)

	buf, run := newTestCmd("json")
	err := run(dir)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.Reported)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: [unterminated")

	buf, run := newTestCmd("text")
	require.Error(t, run(dir))
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "opening.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "opening.golden")

	buf, run := newTestCmd("text")
	require.NoError(t, run(path, "--update"))
	assert.Contains(t, buf.String(), "golden updated")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"opening","trace":[{"name":"nextStep","seq":1,"type":"input"},{"name":"phoneNumberEntry(mode=initialRegistration)","seq":2,"type":"step"}]}`,
		string(golden))

	buf.Reset()
	require.NoError(t, run(path))
	assert.Contains(t, buf.String(), "✓ opening")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"opening","trace":[]}`), 0644))
	buf.Reset()
	require.Error(t, run(path))
	assert.Contains(t, buf.String(), "trace does not match golden file")
}
