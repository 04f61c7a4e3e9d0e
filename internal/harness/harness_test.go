package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir holds the shared scenarios, relative to this package.
const scenarioDir = "../../testdata/scenarios"

func loadShared(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return scenario
}

// TestScenarios runs every shared scenario and compares its trace with
// the golden file of the same name.
func TestScenarios(t *testing.T) {
	files, err := ResolveScenarios([]string{scenarioDir})
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "failed to load scenario from %s", path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err, "scenario execution failed")
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadShared(t, "sms_registration")

	result1, err := Run(scenario)
	require.NoError(t, err)
	result2, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, result1.Trace, result2.Trace, "replay should produce identical traces")

	snap1, err := Snapshot(scenario.Name, result1)
	require.NoError(t, err)
	snap2, err := Snapshot(scenario.Name, result2)
	require.NoError(t, err)
	assert.Equal(t, snap1, snap2)
}

func TestRun_ExportedAccount(t *testing.T) {
	result, err := Run(loadShared(t, "recovery_password_registration"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors=%v", result.Errors)

	require.Len(t, result.Exported, 1)
	exported := result.Exported[0]
	assert.Equal(t, "aci-0001", exported.Identity.ACI)
	assert.NotEmpty(t, exported.Identity.AuthToken)
	assert.Len(t, exported.MasterKey, 32)
	assert.True(t, result.StoreCleared)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: "Expect clause that cannot hold"
mode: { kind: registering }
flow:
  - input: nextStep
    expect: done
assertions:
  - type: final_step
    step: done
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0] nextStep: expected step done, got phoneNumberEntry(mode=initialRegistration)")
	assert.Contains(t, result.Errors[1], "final_step assertion failed")
}

func TestRun_InvalidPhoneNumberIsInline(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: invalid_number
description: "A malformed number never reaches the server"
mode: { kind: registering }
flow:
  - input: submitPhoneNumber
    args: { e164: "555" }
    expect: phoneNumberEntry(mode=initialRegistration,error=invalidNumber)
assertions:
  - type: call_count
    call: beginSession
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors=%v", result.Errors)
	assert.Equal(t, []TraceEvent{
		{Type: EventInput, Name: "submitPhoneNumber", Seq: 1},
		{Type: EventStep, Name: "phoneNumberEntry(mode=initialRegistration,error=invalidNumber)", Seq: 2},
	}, result.Trace)
}

func TestRun_SplashAndPermissions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: permissions
description: "Outstanding permissions are introduced by the splash"
mode: { kind: registering }
device: { permissions_outstanding: true }
flow:
  - input: nextStep
    expect: splash
  - input: completeSplash
    expect: permissions
  - input: requestPermissions
    expect: phoneNumberEntry(mode=initialRegistration)
assertions:
  - type: calls_contain
    call: requestPermissions
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors=%v", result.Errors)
}
