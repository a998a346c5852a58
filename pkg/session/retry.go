package session

import "math"

// RetryState bounds the write-wait-verify cycle of one verified write.
// It allows the first attempt plus MaxRetries repetitions, never more.
type RetryState struct {
	// Attempts counts started attempts.
	Attempts int

	MaxRetries int

	// Target is the value written.
	Target float64

	// LastObserved is the most recent read-back value.
	LastObserved float64

	// Tolerance is the largest accepted difference from Target.
	Tolerance float64

	observed bool
}

// NewRetryState creates the state for a write of target.
func NewRetryState(target, tolerance float64, maxRetries int) *RetryState {
	return &RetryState{
		MaxRetries: max(maxRetries, 0),
		Target:     target,
		Tolerance:  tolerance,
	}
}

// Next starts another attempt. It returns false once the first attempt
// and all retries have been used.
func (s *RetryState) Next() bool {
	if s.Attempts > s.MaxRetries {
		return false
	}
	s.Attempts++
	return true
}

// Retried reports whether more than one attempt was started.
func (s *RetryState) Retried() bool {
	return s.Attempts > 1
}

// Observe records a read-back value and reports whether it matches.
func (s *RetryState) Observe(v float64) bool {
	s.LastObserved = v
	s.observed = true
	return s.Matches()
}

// Matches reports whether the last read-back value matches the target.
func (s *RetryState) Matches() bool {
	if !s.observed {
		return false
	}
	// A small epsilon absorbs float noise at the tolerance boundary.
	return math.Abs(s.LastObserved-s.Target) <= s.Tolerance+1e-9
}
