package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		wantErr bool
	}{
		{"registering", Registering(), false},
		{"reregistering", ReRegistering("+15551234567", "aci-1"), false},
		{"reregistering missing account", ReRegistering("+15551234567", ""), true},
		{"changing number", ChangingNumber("+15550000000", "tok", "aci-1"), false},
		{"changing number missing token", ChangingNumber("+15550000000", "", "aci-1"), true},
		{"unknown", Mode{Kind: "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mode.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModeCanExit(t *testing.T) {
	assert.False(t, Registering().CanExit())
	assert.True(t, ReRegistering("+1", "a").CanExit())

	m := ChangingNumber("+1", "t", "a")
	assert.True(t, m.CanExit())
	m.PendingPNI = &PendingPNIState{NewE164: "+2"}
	assert.False(t, m.CanExit())
}

func TestModeCloneIsDeep(t *testing.T) {
	m := ChangingNumber("+1", "t", "a")
	m.PendingPNI = &PendingPNIState{NewE164: "+2", PNIIdentityKey: []byte{1, 2}}
	c := m.Clone()
	c.PendingPNI.PNIIdentityKey[0] = 9
	assert.Equal(t, byte(1), m.PendingPNI.PNIIdentityKey[0])
}

func TestSessionPredicates(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := &Session{ID: "s1", RequestedInformation: []Challenge{ChallengeCaptcha}}
	assert.True(t, s.Requests(ChallengeCaptcha))
	assert.False(t, s.Requests(ChallengePush))
	assert.False(t, s.CanVerify())
	assert.False(t, s.CanRequestCode())

	s.NextSMS = &now
	assert.True(t, s.CanRequestCode())
	s.NextVerificationAttempt = &now
	assert.True(t, s.CanVerify())
}

func TestDescribe(t *testing.T) {
	two := 2
	tests := []struct {
		step Step
		want string
	}{
		{StepSplash{}, "splash"},
		{StepPhoneNumberEntry{Mode: PhoneNumberInitial}, "phoneNumberEntry(mode=initialRegistration)"},
		{StepPinEntry{Mode: PinModeReglock, RemainingAttempts: &two, Error: PinErrorWrongPin}, "pinEntry(mode=reglock,remaining=2,error=wrongPin)"},
		{StepShowErrorSheet{Kind: ErrorSheetNetwork, Behind: StepCaptcha{}}, "showErrorSheet(kind=network,behind=captcha)"},
		{nil, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.step))
		})
	}
}

func TestDiffOmitsSecrets(t *testing.T) {
	before := InMemoryState{}
	after := before.Clone()
	after.PendingPin = "1234"
	after.PinVerifiedLocally = true

	assert.Equal(t, []string{"pin_verified_locally"}, Diff(before, after))
	assert.Empty(t, Diff(before, before.Clone()))
}

func TestMarshalCanonical(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b":    1,
		"a":    "<x>",
		"skip": nil,
		"c":    []any{true, "é"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1,"c":[true,"`+"é"+`"]}`, string(got))

	_, err = MarshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err)
}

func TestFingerprintTracksSecrets(t *testing.T) {
	p := NewPersistedState()
	mem := InMemoryState{}

	a, err := Fingerprint(Registering(), p, mem)
	require.NoError(t, err)
	b, err := Fingerprint(Registering(), p, mem.Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	mem.PendingPin = "1234"
	c, err := Fingerprint(Registering(), p, mem)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	p.Revision = "01HXYZ"
	d, err := Fingerprint(Registering(), p, mem)
	require.NoError(t, err)
	assert.Equal(t, c, d, "revision stamps do not change the fingerprint")
}
