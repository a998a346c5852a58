package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Finder locates a single device.
type Finder interface {
	Find(ctx context.Context) (*Device, error)
}

// FinderFunc adapts a function to the Finder interface.
type FinderFunc func(ctx context.Context) (*Device, error)

// Find calls f.
func (f FinderFunc) Find(ctx context.Context) (*Device, error) {
	return f(ctx)
}

// Chain runs several finders concurrently and returns the first device any
// of them reports.
type Chain struct {
	finders []Finder
	timeout time.Duration
	logger  *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTimeout bounds the whole chain. Zero uses DefaultTimeout.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithLogger sets the logger for per-finder debug output.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a Chain over finders.
func NewChain(finders []Finder, opts ...ChainOption) *Chain {
	c := &Chain{
		finders: finders,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Find starts every finder and returns the first device found.
// Finder errors are logged and otherwise ignored; ErrNotFound is returned
// when all finders come back empty or the chain timeout expires.
func (c *Chain) Find(ctx context.Context) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		index int
		dev   *Device
		err   error
	}
	results := make(chan result, len(c.finders))
	for i, f := range c.finders {
		go func() {
			dev, err := f.Find(ctx)
			results <- result{index: i, dev: dev, err: err}
		}()
	}

	for range c.finders {
		r := <-results
		if r.err == nil && r.dev != nil {
			c.logger.Debug("device found", "finder", r.index, "address", r.dev.Address, "source", r.dev.Source)
			return r.dev, nil
		}
		c.logger.Debug("finder returned nothing", "finder", r.index, "error", r.err)
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return nil, ErrNotFound
}

// DiscoverFirst returns the address of the first device found.
func (c *Chain) DiscoverFirst(ctx context.Context) (string, error) {
	dev, err := c.Find(ctx)
	if err != nil {
		return "", fmt.Errorf("discover: %w", err)
	}
	return dev.Address, nil
}
