package testutil

// FixedAttemptGenerator generates the same attempt id every time.
//
// This keeps log output of a scenario identical across runs. Unlike
// engine.FixedGenerator, which returns ids in sequence and panics when
// exhausted, this generator never runs out.
//
// Thread-safety: FixedAttemptGenerator is stateless and safe for concurrent use.
type FixedAttemptGenerator struct {
	id string
}

// NewFixedAttemptGenerator creates a fixed generator.
//
// If id is empty, Generate() returns "test-attempt-default".
func NewFixedAttemptGenerator(id string) *FixedAttemptGenerator {
	if id == "" {
		id = "test-attempt-default"
	}
	return &FixedAttemptGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedAttemptGenerator) Generate() string {
	return g.id
}
