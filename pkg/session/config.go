package session

import (
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
)

// AutoTarget asks the orchestrator to find the device.
const AutoTarget = "auto"

// Defaults.
const (
	DefaultTimeout = 5 * time.Second

	// PingInterval separates consecutive pings.
	PingInterval = 100 * time.Millisecond

	// BrightnessTolerance is the largest read-back difference accepted as
	// a match.
	BrightnessTolerance = 0.02
)

// Config is fixed for one invocation. It is passed by value and never
// modified after construction.
type Config struct {
	// Target is an address or AutoTarget.
	Target string

	// Timeout bounds connecting and each acknowledgment or read wait.
	Timeout time.Duration

	// SettleDelay follows fire-and-forget writes.
	SettleDelay time.Duration

	// Verify enables settle delays and read-back verification.
	Verify bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Target:      AutoTarget,
		Timeout:     DefaultTimeout,
		SettleDelay: policy.DefaultSettleDelay,
		Verify:      true,
	}
}

// IsAuto reports whether the target must be resolved.
func (c Config) IsAuto() bool {
	return c.Target == "" || c.Target == AutoTarget
}
