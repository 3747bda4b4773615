// ============================================================================
// clusterqueue Job Processor — Lock-Acquire Timeout Strategy
// ============================================================================
//
// Package: internal/processor
// File: timeout.go
// Purpose: TimeoutStrategy is the Peek/Next iterator of lock-acquire
// timeouts an opcode's executor is given on successive attempts. Peek
// never consumes, so the processor can decide whether to raise
// priority before actually spending the next timeout; Next consumes and
// advances. A (_, false) return from either means "the next attempt should
// block without a deadline" — the processor's cue to consider a priority
// increase instead of trying forever at the same priority.
//
// ============================================================================

package processor

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// TimeoutStrategy yields successive lock-acquire timeouts for one opcode
// attempt sequence.
type TimeoutStrategy interface {
	Peek() (time.Duration, bool)
	Next() (time.Duration, bool)
	Reset()
}

// DefaultMaxBoundedAttempts is how many exponentially-growing bounded
// timeouts a strategy yields before switching to unbounded (Ganeti's own
// LockAttemptTimeoutStrategy caps at a handful of attempts before giving
// up and blocking indefinitely).
const DefaultMaxBoundedAttempts = 4

// backoffStrategy wraps backoff.ExponentialBackOff with the Peek/Next
// split _TimeoutStrategyWrapper implements in the original source: the
// underlying backoff only exposes a consume-only NextBackOff, so one
// pending value is cached between Peek calls until something consumes it.
type backoffStrategy struct {
	b           *backoff.ExponentialBackOff
	maxAttempts int
	attempts    int

	havePending bool
	pending     time.Duration
	pendingOK   bool
}

// NewStrategy creates the default exponential lock-acquire timeout
// strategy: 100ms, 200ms, 400ms, 800ms (capped at 2s), then unbounded.
// maxAttempts <= 0 uses DefaultMaxBoundedAttempts.
func NewStrategy(maxAttempts int) TimeoutStrategy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxBoundedAttempts
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Second
	b.RandomizationFactor = 0
	return &backoffStrategy{b: b, maxAttempts: maxAttempts}
}

func (s *backoffStrategy) advance() {
	if s.havePending {
		return
	}
	if s.attempts >= s.maxAttempts {
		s.pendingOK = false
	} else {
		s.pending = s.b.NextBackOff()
		s.pendingOK = true
	}
	s.havePending = true
}

// Peek returns the next timeout without consuming it.
func (s *backoffStrategy) Peek() (time.Duration, bool) {
	s.advance()
	return s.pending, s.pendingOK
}

// Next returns the next timeout and advances past it.
func (s *backoffStrategy) Next() (time.Duration, bool) {
	s.advance()
	d, ok := s.pending, s.pendingOK
	s.havePending = false
	s.attempts++
	return d, ok
}

// Reset restarts the backoff sequence from its first interval, used after
// a priority increase so the newly-reprioritized attempt gets a fresh
// bounded run before going unbounded again.
func (s *backoffStrategy) Reset() {
	s.b.Reset()
	s.attempts = 0
	s.havePending = false
}
