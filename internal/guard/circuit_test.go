package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	assert.True(t, cb.Check("registry").Allowed)
	cb.RecordFailure("registry")
	cb.RecordFailure("registry")
	assert.True(t, cb.Check("registry").Allowed)

	cb.RecordFailure("registry")
	res := cb.Check("registry")
	assert.False(t, res.Allowed)
	assert.NotEmpty(t, res.Reason)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.Check("registry")
	cb.RecordFailure("registry")
	assert.False(t, cb.Check("registry").Allowed)

	time.Sleep(100 * time.Millisecond)

	// Timeout elapsed: one trial call is allowed.
	assert.True(t, cb.Check("registry").Allowed)
	cb.RecordSuccess("registry")
	assert.True(t, cb.Check("registry").Allowed)
}

func TestCircuitBreakerKeysAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.Check("a")
	cb.RecordFailure("a")

	assert.False(t, cb.Check("a").Allowed)
	assert.True(t, cb.Check("b").Allowed)
}
