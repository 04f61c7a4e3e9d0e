package engine

// CycleDetector tracks (pathway, state fingerprint) pairs seen during one
// evaluation.
//
// A handler that returns without a step must have changed state. If the
// same pathway is resolved again with an identical fingerprint, the
// handler made no progress and would loop forever:
//
//	session: pending code consumed → re-resolve → session (state changed) ok
//	session: no mutation           → re-resolve → session (same state)   ← CYCLE
//
// A detector lives for a single evaluation and is not shared, so it needs
// no locking.
type CycleDetector struct {
	seen map[string]bool
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{seen: make(map[string]bool)}
}

// WouldCycle reports whether the pair was already recorded.
func (c *CycleDetector) WouldCycle(pathway, fingerprint string) bool {
	return c.seen[pathway+":"+fingerprint]
}

// Record marks the pair as visited.
func (c *CycleDetector) Record(pathway, fingerprint string) {
	c.seen[pathway+":"+fingerprint] = true
}

// Size returns the number of recorded pairs.
func (c *CycleDetector) Size() int {
	return len(c.seen)
}
