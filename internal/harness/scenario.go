package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/registrar/internal/model"
)

// Scenario defines one scripted registration run.
// The server and device sections script every collaborator; the flow is
// the ordered list of inputs a user would give.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode is the mode the engine starts in.
	Mode ModeSpec `yaml:"mode"`

	// Device scripts local secrets, push delivery and permissions.
	Device DeviceSpec `yaml:"device,omitempty"`

	// Server scripts remote responses, consumed in order per call.
	// A call with nothing scripted gets the fake's default.
	Server ServerScript `yaml:"server,omitempty"`

	// Flow contains the inputs, applied in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`

	// AttemptID fixes the attempt id. Defaults to "scenario-attempt".
	AttemptID string `yaml:"attempt_id,omitempty"`
}

// ModeSpec is the starting mode.
type ModeSpec struct {
	Kind           string `yaml:"kind"`
	E164           string `yaml:"e164,omitempty"`
	AccountID      string `yaml:"account_id,omitempty"`
	OldE164        string `yaml:"old_e164,omitempty"`
	OldAuthToken   string `yaml:"old_auth_token,omitempty"`
	LocalAccountID string `yaml:"local_account_id,omitempty"`
}

// DeviceSpec is the state of the device before the flow starts.
type DeviceSpec struct {
	// MasterKey is hex encoded.
	MasterKey              string           `yaml:"master_key,omitempty"`
	Pin                    string           `yaml:"pin,omitempty"`
	LegacyPin              string           `yaml:"legacy_pin,omitempty"`
	PushToken              string           `yaml:"push_token,omitempty"`
	PushChallenges         []string         `yaml:"push_challenges,omitempty"`
	PermissionsOutstanding bool             `yaml:"permissions_outstanding,omitempty"`
	DenyPermissions        bool             `yaml:"deny_permissions,omitempty"`
	Credentials            []CredentialSpec `yaml:"credentials,omitempty"`
	ReglockEnabled         bool             `yaml:"reglock_enabled,omitempty"`
	ConfirmedUsername      bool             `yaml:"confirmed_username,omitempty"`
}

// CredentialSpec is a recovery service credential.
type CredentialSpec struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ServerScript holds the scripted responses of every remote call.
type ServerScript struct {
	BeginSession     []SessionResponse `yaml:"begin_session,omitempty"`
	RestoreSession   []SessionResponse `yaml:"restore_session,omitempty"`
	RequestCode      []SessionResponse `yaml:"request_code,omitempty"`
	FulfillChallenge []SessionResponse `yaml:"fulfill_challenge,omitempty"`
	SubmitCode       []SessionResponse `yaml:"submit_code,omitempty"`

	RestoreKeys []SVRResponse `yaml:"restore_keys,omitempty"`
	BackupKey   []string      `yaml:"backup_key,omitempty"`

	CheckCredentials []CredentialCheckResponse `yaml:"check_credentials,omitempty"`
	CreateAccount    []AccountResponse         `yaml:"create_account,omitempty"`
	ChangeNumber     []AccountResponse         `yaml:"change_number,omitempty"`
	UpdateAttributes []string                  `yaml:"update_attributes,omitempty"`
	EnableReglock    []string                  `yaml:"enable_reglock,omitempty"`
	WhoAmI           []WhoAmIResponse          `yaml:"who_am_i,omitempty"`

	PreKeys         []string          `yaml:"pre_keys,omitempty"`
	Storage         []StorageResponse `yaml:"storage,omitempty"`
	StorageBackup   []string          `yaml:"storage_backup,omitempty"`
	SetProfile      []string          `yaml:"set_profile,omitempty"`
	ReclaimUsername []string          `yaml:"reclaim_username,omitempty"`
}

// SessionResponse is one session service response.
type SessionResponse struct {
	Result          string        `yaml:"result"`
	Session         *SessionSpec  `yaml:"session,omitempty"`
	RetryAfter      time.Duration `yaml:"retry_after,omitempty"`
	ProviderFailure bool          `yaml:"provider_failure,omitempty"`
	Permanent       bool          `yaml:"permanent,omitempty"`
}

// SessionSpec describes a server session. Timers are set relative to the
// scenario start: a code may be requested after a minute and verified at
// once, unless Exhausted is set.
type SessionSpec struct {
	ID                   string   `yaml:"id"`
	E164                 string   `yaml:"e164"`
	Verified             bool     `yaml:"verified,omitempty"`
	RequestedInformation []string `yaml:"requested_information,omitempty"`
	UnknownChallenge     bool     `yaml:"unknown_challenge,omitempty"`
	Exhausted            bool     `yaml:"exhausted,omitempty"`
}

// SVRResponse is one key restore response.
type SVRResponse struct {
	Result            string `yaml:"result"`
	MasterKey         string `yaml:"master_key,omitempty"`
	RemainingAttempts int    `yaml:"remaining_attempts,omitempty"`
}

// CredentialCheckResponse is one credential check response.
type CredentialCheckResponse struct {
	Result  string           `yaml:"result"`
	Matched *CredentialSpec  `yaml:"matched,omitempty"`
	Invalid []CredentialSpec `yaml:"invalid,omitempty"`
}

// AccountResponse is one create-account or change-number response.
type AccountResponse struct {
	Result     string        `yaml:"result"`
	Identity   *IdentitySpec `yaml:"identity,omitempty"`
	Reglock    *ReglockSpec  `yaml:"reglock,omitempty"`
	RetryAfter time.Duration `yaml:"retry_after,omitempty"`
}

// IdentitySpec is the identity the server assigns.
type IdentitySpec struct {
	ACI                  string `yaml:"aci"`
	PNI                  string `yaml:"pni,omitempty"`
	E164                 string `yaml:"e164"`
	DeviceID             uint32 `yaml:"device_id,omitempty"`
	HasPreviouslyUsedSVR bool   `yaml:"has_previously_used_svr,omitempty"`
	ReglockEnabled       bool   `yaml:"reglock_enabled,omitempty"`
}

// ReglockSpec is the detail of a reglock failure.
type ReglockSpec struct {
	TimeRemaining time.Duration  `yaml:"time_remaining"`
	Credential    CredentialSpec `yaml:"credential"`
}

// WhoAmIResponse is one whoami response.
type WhoAmIResponse struct {
	Result string `yaml:"result"`
	ACI    string `yaml:"aci,omitempty"`
	PNI    string `yaml:"pni,omitempty"`
	E164   string `yaml:"e164,omitempty"`
}

// StorageResponse is one storage service restore response.
type StorageResponse struct {
	Result       string       `yaml:"result"`
	Found        bool         `yaml:"found,omitempty"`
	Profile      *ProfileSpec `yaml:"profile,omitempty"`
	Discoverable *bool        `yaml:"discoverable,omitempty"`
}

// ProfileSpec is a profile name.
type ProfileSpec struct {
	GivenName  string `yaml:"given_name"`
	FamilyName string `yaml:"family_name,omitempty"`
}

// FlowStep is one input.
type FlowStep struct {
	// Input is the input name, e.g. "submitPhoneNumber".
	Input string `yaml:"input"`

	// Args are the input's arguments.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect, when set, must equal the description of the returned step.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "calls_contain": Check a collaborator call was made
	// - "calls_order": Check calls were made in order
	// - "call_count": Check a call was made exactly N times
	// - "final_step": Check the last returned step
	// - "exported": Check fields of the exported account
	// - "store_cleared": Check no orchestration state is left
	Type string `yaml:"type"`

	// Call is the collaborator call name (calls_contain, call_count).
	Call string `yaml:"call,omitempty"`

	// Calls is the expected call order (calls_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of calls (call_count).
	Count int `yaml:"count,omitempty"`

	// Step is the expected step description (final_step).
	Step string `yaml:"step,omitempty"`

	// Expect contains expected field values (exported).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCallsContain = "calls_contain"
	AssertCallsOrder   = "calls_order"
	AssertCallCount    = "call_count"
	AssertFinalStep    = "final_step"
	AssertExported     = "exported"
	AssertStoreCleared = "store_cleared"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := s.Mode.model().Validate(); err != nil {
		return fmt.Errorf("mode: %w", err)
	}

	if _, err := s.Device.masterKey(); err != nil {
		return fmt.Errorf("device: %w", err)
	}

	if _, err := s.Server.build(time.Time{}); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Input == "" {
			return fmt.Errorf("flow[%d]: input is required", i)
		}
		if _, err := buildInput(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCallsContain:
		if a.Call == "" {
			return fmt.Errorf("calls_contain requires call")
		}
	case AssertCallsOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("calls_order requires at least 2 calls")
		}
	case AssertCallCount:
		if a.Call == "" {
			return fmt.Errorf("call_count requires call")
		}
		if a.Count < 0 {
			return fmt.Errorf("call_count requires a non-negative count")
		}
	case AssertFinalStep:
		if a.Step == "" {
			return fmt.Errorf("final_step requires step")
		}
	case AssertExported:
		if len(a.Expect) == 0 {
			return fmt.Errorf("exported requires expect")
		}
	case AssertStoreCleared:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (m ModeSpec) model() model.Mode {
	return model.Mode{
		Kind:           model.ModeKind(m.Kind),
		E164:           m.E164,
		AccountID:      m.AccountID,
		OldE164:        m.OldE164,
		OldAuthToken:   m.OldAuthToken,
		LocalAccountID: m.LocalAccountID,
	}
}
