// Package harness runs scripted registration scenarios against the engine.
//
// A scenario scripts every collaborator, applies a list of inputs and
// records a trace of inputs, collaborator calls and returned steps. The
// trace is compared against golden files and checked by assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: sms_registration
//	description: "What this scenario validates"
//	mode:
//	  kind: registering
//	device:
//	  pin: "1234"
//	server:
//	  begin_session:
//	    - result: success
//	      session: { id: s1, e164: "+15551234567" }
//	  create_account:
//	    - result: success
//	      identity: { aci: aci-0001, e164: "+15551234567" }
//	flow:
//	  - input: submitPhoneNumber
//	    args: { e164: "+15551234567" }
//	    expect: verificationCodeEntry(e164=+15551234567)
//	assertions:
//	  - type: calls_order
//	    calls: [beginSession, requestCode]
//	  - type: exported
//	    expect: { identity: { aci: aci-0001 } }
//
// Calls with nothing scripted get the fake's default: a generic error for
// session, account and recovery calls, success for finalization calls.
// Permission requests are granted unless the device sets deny_permissions.
//
// # Assertion Types
//
//   - calls_contain: a collaborator call was made
//   - calls_order: calls were first made in the given order
//   - call_count: a call was made exactly N times
//   - final_step: the step returned for the last input
//   - exported: subset match on the exported account
//   - store_cleared: no mode or state is left in the store
//
// # Deterministic Testing
//
// Every run uses a fake clock stopped at testutil.Epoch, a fixed attempt
// id and a fresh in-memory store. Sleeps and push waits advance the fake
// clock instantly, so the same scenario always yields the same trace.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/sms_registration.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
