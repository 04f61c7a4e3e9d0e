package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedAttemptGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedAttemptGenerator("attempt-123")

	// Multiple calls return same id
	assert.Equal(t, "attempt-123", gen.Generate())
	assert.Equal(t, "attempt-123", gen.Generate())
	assert.Equal(t, "attempt-123", gen.Generate())
}

func TestFixedAttemptGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedAttemptGenerator("")

	// Empty id uses default
	assert.Equal(t, "test-attempt-default", gen.Generate())
}

func TestFixedAttemptGenerator_CustomID(t *testing.T) {
	gen := NewFixedAttemptGenerator("01234567-89ab-cdef-0123-456789abcdef")

	// Returns custom id
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", gen.Generate())
}

func TestFixedAttemptGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedAttemptGenerator("thread-safe-id")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				token := gen.Generate()
				assert.Equal(t, "thread-safe-id", token)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
