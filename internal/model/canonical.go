package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders v as canonical JSON: object keys sorted by
// UTF-16 code units, strings NFC-normalized, no HTML escaping, no floats.
// Object members whose value is null are omitted.
//
// v is first encoded with encoding/json, so struct tags apply and fields
// tagged `json:"-"` never contribute.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return fmt.Errorf("floats are forbidden in canonical JSON: %s", val)
		}
		buf.WriteString(val.String())
	case string:
		return writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k, elem := range val {
			if elem != nil {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			return lessUTF16(keys[i], keys[j])
		})
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	// encoding/json escapes U+2028 and U+2029; canonical form keeps them literal.
	out = bytes.ReplaceAll(out, []byte(`\u2028`), []byte("\u2028"))
	out = bytes.ReplaceAll(out, []byte(`\u2029`), []byte("\u2029"))
	buf.Write(out)
	return nil
}

// lessUTF16 orders strings by UTF-16 code units.
func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

// Domain separators for content hashes. Each hash kind gets its own prefix
// so a fingerprint can never collide with a secret digest.
const (
	domainFingerprint = "registrar/fingerprint/v1"
	domainSecret      = "registrar/secret/v1"
)

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies an evaluation state. Secret in-memory fields are
// excluded from JSON, so they are folded in as digests instead.
func Fingerprint(mode Mode, persisted PersistedState, mem InMemoryState) (string, error) {
	secrets := map[string]string{}
	addSecret := func(name, value string) {
		if value != "" {
			secrets[name] = hashWithDomain(domainSecret, []byte(value))
		}
	}
	addSecret("legacy_pin", mem.LegacyPin)
	addSecret("reg_recovery_password", mem.RegRecoveryPassword)
	addSecret("reglock_token", mem.ReglockToken)
	addSecret("pending_pin", mem.PendingPin)
	addSecret("verified_pin", mem.VerifiedPin)
	addSecret("pending_code", mem.PendingCode)
	addSecret("pending_captcha_token", mem.PendingCaptchaToken)
	addSecret("auth_token", mem.AuthToken)
	if mem.SVRAuthCredential != nil {
		addSecret("svr_auth_credential", mem.SVRAuthCredential.Username+"\x00"+mem.SVRAuthCredential.Password)
	}
	for i, c := range mem.SVRAuthCredentialCandidates {
		addSecret(fmt.Sprintf("svr_candidate_%d", i), c.Username+"\x00"+c.Password)
	}

	persisted.Revision = ""
	data, err := MarshalCanonical(struct {
		Mode      Mode              `json:"mode"`
		Persisted PersistedState    `json:"persisted"`
		InMemory  InMemoryState     `json:"in_memory"`
		Secrets   map[string]string `json:"secrets"`
	}{mode, persisted, mem, secrets})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domainFingerprint, data), nil
}
