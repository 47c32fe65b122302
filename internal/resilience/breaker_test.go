package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		CoolDown:         20 * time.Millisecond,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(testConfig())
	assert.Equal(t, BreakerClosed, b.State())

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(testConfig())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	// Never three in a row, so the circuit stays closed.
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Two probe successes close the circuit.
	b.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(testConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.Allow())
	require.Equal(t, BreakerHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerDefaultsApplied(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
}
