package session

import (
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
)

// Status is the terminal state of a session.
type Status uint8

const (
	// Success means the command completed as requested.
	Success Status = iota

	// SuccessWithWarning means the command presumably applied, but a wait
	// timed out or a read-back did not match.
	SuccessWithWarning

	// Failure means the command did not complete.
	Failure
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case SuccessWithWarning:
		return "SUCCESS_WITH_WARNING"
	case Failure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one session.
type Result struct {
	Status Status
	Op     policy.Operation

	// Address is the device address used, empty when resolution failed.
	Address string

	// Err is set when Status is Failure.
	Err error

	// Warnings explain a SuccessWithWarning status.
	Warnings []error

	// Summary is a human-readable description of what was done.
	Summary string

	// Value is the value read, for read operations.
	Value any

	// Ping is set for ping operations with at least one reply.
	Ping *PingStats

	// Waited is the total time spent in readiness waits.
	Waited time.Duration
}

// OK reports whether the session did not fail.
func (r Result) OK() bool {
	return r.Status != Failure
}

// PingStats summarizes a ping run.
type PingStats struct {
	Sent     int
	Received int

	Min time.Duration
	Max time.Duration
	Avg time.Duration
}

// Lost returns the number of pings without reply.
func (p *PingStats) Lost() int {
	return p.Sent - p.Received
}

// LossPercent returns the loss rate, rounded down.
func (p *PingStats) LossPercent() int {
	if p.Sent == 0 {
		return 0
	}
	return p.Lost() * 100 / p.Sent
}

func (p *PingStats) add(rtt time.Duration) {
	if p.Received == 0 || rtt < p.Min {
		p.Min = rtt
	}
	if rtt > p.Max {
		p.Max = rtt
	}
	total := p.Avg*time.Duration(p.Received) + rtt
	p.Received++
	p.Avg = total / time.Duration(p.Received)
}
