// Package keys derives registration secrets from a recovered master key.
//
// Both the registration-recovery password and the reglock token are pure
// functions of the master key. Recovering the same key twice yields the
// same password and token, which is what lets a reglock-rejected attempt
// be retried with a token instead of re-prompting for the PIN.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

// MasterKeyLength is the byte length of a master key.
const MasterKeyLength = 32

const (
	infoRecoveryPassword = "Registration Recovery"
	infoReglockToken     = "Registration Lock"
	infoMasterKey        = "Backup Root Key Master"
)

// RegistrationRecoveryPassword derives the password that proves account
// ownership without a verified session.
func RegistrationRecoveryPassword(masterKey []byte) (string, error) {
	b, err := derive(masterKey, infoRecoveryPassword, 32)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ReglockToken derives the token that satisfies a server-side reglock.
func ReglockToken(masterKey []byte) (string, error) {
	b, err := derive(masterKey, infoReglockToken, 32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MasterKeyFromRootKey derives a master key from a backup root key the
// user typed in. Whitespace and case are ignored.
func MasterKeyFromRootKey(rootKey string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(rootKey), ""))
	if cleaned == "" {
		return nil, fmt.Errorf("empty root key")
	}
	return derive([]byte(cleaned), infoMasterKey, MasterKeyLength)
}

func derive(secret []byte, info string, n int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("derive %q: empty secret", info)
	}
	out := make([]byte, n)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive %q: %w", info, err)
	}
	return out, nil
}

// NormalizePin trims surrounding whitespace, applies NFKD and maps any
// Unicode decimal digits to ASCII so the same PIN typed on different
// keyboards hashes identically.
func NormalizePin(pin string) string {
	pin = norm.NFKD.String(strings.TrimSpace(pin))
	var b strings.Builder
	b.Grow(len(pin))
	for _, r := range pin {
		if unicode.IsDigit(r) && (r < '0' || r > '9') {
			if d, ok := digitValue(r); ok {
				b.WriteRune('0' + d)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// digitValue finds the value of a Unicode decimal digit by scanning back
// to the zero of its block; decimal digits are contiguous runs of ten.
func digitValue(r rune) (rune, bool) {
	for d := rune(0); d <= 9; d++ {
		zero := r - d
		if !unicode.IsDigit(zero) {
			return 0, false
		}
		if zero == 0 || !unicode.IsDigit(zero-1) {
			return d, true
		}
	}
	return 0, false
}

// NewAuthToken returns a fresh random account auth token. The token is
// generated locally once per registration attempt.
func NewAuthToken() (string, error) {
	return randomHex(18)
}

// NewMasterKey returns a fresh random master key for a new PIN.
func NewMasterKey() ([]byte, error) {
	b := make([]byte, MasterKeyLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	return b, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
