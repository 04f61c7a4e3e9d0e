package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivationsAreStable(t *testing.T) {
	k := bytes.Repeat([]byte{0x42}, MasterKeyLength)

	p1, err := RegistrationRecoveryPassword(k)
	require.NoError(t, err)
	p2, err := RegistrationRecoveryPassword(append([]byte(nil), k...))
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	t1, err := ReglockToken(k)
	require.NoError(t, err)
	t2, err := ReglockToken(k)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.Len(t, t1, 64)
}

func TestDerivationsDifferByPurposeAndKey(t *testing.T) {
	a := bytes.Repeat([]byte{1}, MasterKeyLength)
	b := bytes.Repeat([]byte{2}, MasterKeyLength)

	pa, err := RegistrationRecoveryPassword(a)
	require.NoError(t, err)
	pb, err := RegistrationRecoveryPassword(b)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb)

	ta, err := ReglockToken(a)
	require.NoError(t, err)
	assert.NotContains(t, ta, pa)
}

func TestDeriveRejectsEmptyKey(t *testing.T) {
	_, err := RegistrationRecoveryPassword(nil)
	assert.Error(t, err)
	_, err = ReglockToken([]byte{})
	assert.Error(t, err)
}

func TestMasterKeyFromRootKey(t *testing.T) {
	a, err := MasterKeyFromRootKey("abcd efgh")
	require.NoError(t, err)
	b, err := MasterKeyFromRootKey("ABCDEFGH")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, MasterKeyLength)

	_, err = MasterKeyFromRootKey("   ")
	assert.Error(t, err)
}

func TestNormalizePin(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" 1234 ", "1234"},
		{"١٢٣٤", "1234"}, // Arabic-Indic digits
		{"１２３４", "1234"}, // fullwidth digits decompose under NFKD
		{"pass word", "pass word"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePin(tt.in))
		})
	}
}

func TestRandomValues(t *testing.T) {
	a, err := NewAuthToken()
	require.NoError(t, err)
	b, err := NewAuthToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	k, err := NewMasterKey()
	require.NoError(t, err)
	assert.Len(t, k, MasterKeyLength)
}
