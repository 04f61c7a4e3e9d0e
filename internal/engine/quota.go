package engine

// QuotaEnforcer bounds how many times one evaluation may re-resolve a
// pathway.
//
// Each handler that mutates state without producing a step hands control
// back to the resolver. The quota catches linear explosions (A → B → C →
// ... never settling) while the CycleDetector catches a pathway re-entered
// with no progress. Together they guarantee every evaluation terminates.
type QuotaEnforcer struct {
	maxResolutions int
	current        int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxResolutions int) *QuotaEnforcer {
	return &QuotaEnforcer{maxResolutions: maxResolutions}
}

// Check increments the counter and returns a RESOLUTION_LIMIT error once
// the limit is exceeded.
func (q *QuotaEnforcer) Check(attemptID string) error {
	q.current++
	if q.current > q.maxResolutions {
		return NewResolutionLimitError(attemptID, q.current, q.maxResolutions)
	}
	return nil
}

// Current returns the current resolution count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxResolutions returns the limit.
func (q *QuotaEnforcer) MaxResolutions() int {
	return q.maxResolutions
}
