package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an engine failure that is not a remote outcome.
//
// Remote call results never become RuntimeErrors; they are matched into
// steps. RuntimeErrors cover:
//   - Resolution limit: one evaluation re-resolved too many times
//   - Pathway cycle: a pathway re-entered with identical state
//   - Store failure: the durable store could not be read or written
//   - Runner stopped: the request arrived after Stop
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// AttemptID identifies the orchestration attempt.
	AttemptID string

	// Pathway names the active pathway, when one was resolved.
	Pathway string

	// Details contains additional context.
	Details map[string]string

	cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeResolutionLimit RuntimeErrorCode = "RESOLUTION_LIMIT"
	ErrCodePathwayCycle    RuntimeErrorCode = "PATHWAY_CYCLE"
	ErrCodeStoreFailure    RuntimeErrorCode = "STORE_FAILURE"
	ErrCodeRunnerStopped   RuntimeErrorCode = "RUNNER_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Pathway != "" {
		msg += fmt.Sprintf(" (pathway=%s)", e.Pathway)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsResolutionLimitError reports whether err is a resolution limit error.
func IsResolutionLimitError(err error) bool { return hasCode(err, ErrCodeResolutionLimit) }

// IsCycleError reports whether err is a pathway cycle error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodePathwayCycle) }

// IsStoreError reports whether err is a store failure.
func IsStoreError(err error) bool { return hasCode(err, ErrCodeStoreFailure) }

// IsRunnerStoppedError reports whether err came from a stopped runner.
func IsRunnerStoppedError(err error) bool { return hasCode(err, ErrCodeRunnerStopped) }

// NewResolutionLimitError creates a RuntimeError for an exceeded trampoline bound.
func NewResolutionLimitError(attemptID string, resolutions, limit int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeResolutionLimit,
		Message:   fmt.Sprintf("evaluation exceeded max resolutions (%d > %d)", resolutions, limit),
		AttemptID: attemptID,
		Details: map[string]string{
			"resolutions":     fmt.Sprintf("%d", resolutions),
			"max_resolutions": fmt.Sprintf("%d", limit),
		},
	}
}

// NewCycleError creates a RuntimeError for a pathway re-entered without progress.
func NewCycleError(attemptID, pathway, fingerprint string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodePathwayCycle,
		Message:   "pathway re-entered with unchanged state",
		AttemptID: attemptID,
		Pathway:   pathway,
		Details:   map[string]string{"fingerprint": fingerprint},
	}
}

// NewStoreError wraps a durable store failure.
func NewStoreError(attemptID, op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStoreFailure,
		Message:   op,
		AttemptID: attemptID,
		cause:     err,
	}
}

// ErrRunnerStopped is returned for requests made after the runner stopped.
var ErrRunnerStopped = &RuntimeError{Code: ErrCodeRunnerStopped, Message: "runner stopped"}
