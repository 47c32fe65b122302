// Package resilience provides the circuit breaker guarding the venue
// transport. Business errnos never trip it; only transport failures and
// 5xx responses count, so a geo-blocked market cannot blind the engine
// to a healthy venue.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// ErrBreakerOpen is returned while the circuit is open.
var ErrBreakerOpen = errors.New("venue circuit breaker is open")

// BreakerConfig holds breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	CoolDown         time.Duration // open duration before probing
}

// DefaultBreakerConfig returns the venue defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
	}
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: BreakerClosed}
}

// Allow reports whether a request may proceed. An open breaker past its
// cool-down moves to half-open and lets one probe through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailure) > b.cfg.CoolDown {
			b.transition(BreakerHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

// RecordSuccess notes a healthy transport round trip.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure notes a transport failure. A half-open failure reopens
// immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(state BreakerState) {
	b.state = state
	b.failures = 0
	b.successes = 0
}
