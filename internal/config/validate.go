package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// document is the shape the schema checks. Durations are whole
// milliseconds so the schema can compare them.
type document struct {
	Engine struct {
		MaxNetworkRetries    int   `json:"max_network_retries"`
		AutoRetryThresholdMs int64 `json:"auto_retry_threshold_ms"`
		PushMinWaitMs        int64 `json:"push_min_wait_ms"`
		PushMaxWaitMs        int64 `json:"push_max_wait_ms"`
		MaxLocalPinGuesses   int   `json:"max_local_pin_guesses"`
		MaxResolutions       int   `json:"max_resolutions"`
		RetryBaseDelayMs     int64 `json:"retry_base_delay_ms"`
	} `json:"engine"`
	Store   StoreConfig   `json:"store"`
	Account AccountConfig `json:"account"`
}

func newDocument(c Config) document {
	var d document
	d.Engine.MaxNetworkRetries = c.Engine.MaxNetworkRetries
	d.Engine.AutoRetryThresholdMs = c.Engine.AutoRetryThreshold.Milliseconds()
	d.Engine.PushMinWaitMs = c.Engine.PushMinWait.Milliseconds()
	d.Engine.PushMaxWaitMs = c.Engine.PushMaxWait.Milliseconds()
	d.Engine.MaxLocalPinGuesses = c.Engine.MaxLocalPinGuesses
	d.Engine.MaxResolutions = c.Engine.MaxResolutions
	d.Engine.RetryBaseDelayMs = c.Engine.RetryBaseDelay.Milliseconds()
	d.Store = c.Store
	d.Account = c.Account
	return d
}

// Validate checks c against the embedded schema.
func Validate(c Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(newDocument(c)))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %s", cueerrors.Details(err, nil))
	}
	return nil
}
