package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/service"
)

func resultWithCalls(calls ...string) *Result {
	r := NewResult()
	r.AddTrace(EventInput, "submitPhoneNumber")
	for _, c := range calls {
		r.AddTrace(EventCall, c)
	}
	r.AddTrace(EventStep, "done")
	r.FinalStep = "done"
	return r
}

func TestAddTrace_Sequences(t *testing.T) {
	r := resultWithCalls("beginSession")

	require.Len(t, r.Trace, 3)
	for i, e := range r.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, []string{"beginSession"}, r.Calls())
}

func TestAssertCallsContain(t *testing.T) {
	r := resultWithCalls("beginSession", "requestCode")

	assert.NoError(t, assertCallsContain(r.Calls(), Assertion{Type: AssertCallsContain, Call: "requestCode"}))

	err := assertCallsContain(r.Calls(), Assertion{Type: AssertCallsContain, Call: "submitCode"})
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertCallsContain, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "submitCode")
	assert.Equal(t, []string{"beginSession", "requestCode"}, assertErr.Calls)
}

func TestAssertCallsOrder(t *testing.T) {
	calls := resultWithCalls("beginSession", "requestCode", "submitCode", "requestCode").Calls()

	tests := []struct {
		name    string
		order   []string
		wantErr string
	}{
		{name: "in order", order: []string{"beginSession", "requestCode", "submitCode"}},
		{name: "interleaved calls allowed", order: []string{"beginSession", "submitCode"}},
		{name: "reversed", order: []string{"submitCode", "beginSession"}, wantErr: "should be before"},
		{name: "missing", order: []string{"beginSession", "createAccount"}, wantErr: "missing call: createAccount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertCallsOrder(calls, Assertion{Type: AssertCallsOrder, Calls: tt.order})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertCallCount(t *testing.T) {
	calls := resultWithCalls("beginSession", "beginSession", "requestCode").Calls()

	assert.NoError(t, assertCallCount(calls, Assertion{Call: "beginSession", Count: 2}))
	assert.NoError(t, assertCallCount(calls, Assertion{Call: "submitCode", Count: 0}))

	err := assertCallCount(calls, Assertion{Call: "requestCode", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 calls")
}

func TestAssertFinalStep(t *testing.T) {
	r := resultWithCalls()

	assert.NoError(t, assertFinalStep(r, Assertion{Step: "done"}))
	err := assertFinalStep(r, Assertion{Step: "exited"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected: exited")
}

func TestAssertExported(t *testing.T) {
	r := resultWithCalls("export")
	r.Exported = []service.ExportedAccount{{
		Identity:                    model.AccountIdentity{ACI: "aci-0001", E164: "+15551234567", DeviceID: 1},
		IsDiscoverableByPhoneNumber: true,
		Profile:                     &model.ProfileInfo{GivenName: "Ada", FamilyName: "Lovelace"},
	}}

	tests := []struct {
		name    string
		expect  map[string]interface{}
		wantErr string
	}{
		{
			name: "nested subset",
			expect: map[string]interface{}{
				"identity": map[string]interface{}{"aci": "aci-0001", "device_id": 1},
				"profile":  map[string]interface{}{"given_name": "Ada"},
			},
		},
		{
			name:   "bool field",
			expect: map[string]interface{}{"is_discoverable_by_phone_number": true},
		},
		{
			name:    "mismatch",
			expect:  map[string]interface{}{"identity": map[string]interface{}{"aci": "aci-0002"}},
			wantErr: `field "identity"`,
		},
		{
			name:    "absent field",
			expect:  map[string]interface{}{"master_key": "AAAA"},
			wantErr: `field "master_key" not present`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertExported(r, Assertion{Type: AssertExported, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertExported_NothingExported(t *testing.T) {
	err := assertExported(resultWithCalls(), Assertion{Expect: map[string]interface{}{"reglock_enabled": false}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing exported")
}

func TestEvaluateAssertions(t *testing.T) {
	r := resultWithCalls("beginSession")
	r.StoreCleared = false

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertCallsContain, Call: "beginSession"},
		{Type: AssertStoreCleared},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "store_cleared assertion failed")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
