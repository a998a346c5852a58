package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/device"
	"github.com/pixelblaze-tools/pb-go/pkg/discovery"
	pblog "github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/pixelblaze-tools/pb-go/pkg/readiness"
)

// Address sources recorded in the address cache.
const (
	SourceExplicit  = "explicit"
	SourceCache     = "cache"
	SourceAdHoc     = "ad-hoc"
	SourceDiscovery = "discovery"
)

// Session states as they appear in protocol captures.
const (
	stateResolving = "RESOLVING"
	stateConnected = "CONNECTED"
	stateExecuting = "EXECUTING"
	stateVerifying = "VERIFYING"
)

// Orchestrator runs sessions with a fixed configuration.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	deps = deps.withDefaults()
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// run is the state of one session.
type run struct {
	o      *Orchestrator
	req    Request
	waiter *readiness.Waiter

	dev    Device
	addr   string
	connID string
	state  string

	warnings []error
	waited   time.Duration
}

// Run executes req and returns its result. It never panics on device
// errors and always closes the connection it opened.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	r := &run{
		o:      o,
		req:    req,
		waiter: readiness.NewWaiter(readiness.Config{Verify: o.cfg.Verify, Clock: o.deps.Clock}),
	}

	if err := req.Validate(); err != nil {
		return r.finish(Result{}, err)
	}
	if req.Op == policy.OpPatternRender && !o.deps.CanCompile {
		return r.finish(Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, device.ErrNoCompiler))
	}

	r.setState(stateResolving, req.Op.String())
	addr, source, err := r.resolve(ctx)
	if err != nil {
		return r.finish(Result{}, err)
	}
	r.addr = addr

	if err := r.connect(ctx); err != nil {
		return r.finish(Result{}, err)
	}
	defer r.dev.Close()
	r.remember(source)

	rule := policy.Classify(req.Op)
	o.logger.Debug("executing", "op", req.Op, "policy", rule.Policy, "addr", addr)
	r.setState(stateExecuting, rule.Policy.String())

	res, err := r.execute(ctx, rule)
	return r.finish(res, err)
}

// resolve returns the device address and where it came from.
func (r *run) resolve(ctx context.Context) (string, string, error) {
	cfg, deps := r.o.cfg, r.o.deps
	if !cfg.IsAuto() {
		return cfg.Target, SourceExplicit, nil
	}
	if deps.Prober == nil || deps.Discoverer == nil {
		return "", "", fmt.Errorf("%w: discovery is not available", ErrNoDeviceFound)
	}

	if deps.Cache != nil {
		if addr, err := deps.Cache.LastAddress(); err == nil && addr != "" {
			if err := deps.Prober.Probe(ctx, addr); err == nil {
				r.o.logger.Debug("using cached address", "addr", addr)
				return addr, SourceCache, nil
			}
			r.o.logger.Debug("cached address unreachable", "addr", addr)
		}
	}

	adhoc := deps.AdHocAddress
	if adhoc == "" {
		adhoc = discovery.AdHocAddress
	}
	r.o.deps.Progress.Progressf("Checking ad-hoc address %s...", adhoc)
	if err := deps.Prober.Probe(ctx, adhoc); err == nil {
		return adhoc, SourceAdHoc, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", translate(err)
	}

	r.o.deps.Progress.Progressf("Discovering devices...")
	addr, err := deps.Discoverer.DiscoverFirst(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", "", ErrCancelled
		}
		return "", "", fmt.Errorf("%w: %v", ErrNoDeviceFound, err)
	}
	r.o.deps.Progress.Progressf("Found device at %s", addr)
	return addr, SourceDiscovery, nil
}

// connect opens the device connection within the configured timeout.
func (r *run) connect(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, r.o.cfg.Timeout)
	defer cancel()

	if err := cctx.Err(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailed, r.addr, err)
	}

	dev, err := r.o.deps.Dialer.Dial(cctx, r.addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrCancelled
		}
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailed, r.addr, err)
	}
	r.dev = dev
	if d, ok := dev.(interface{ ID() string }); ok {
		r.connID = d.ID()
	}
	r.setState(stateConnected, r.addr)
	return nil
}

func (r *run) remember(source string) {
	cache := r.o.deps.Cache
	if cache == nil || source == SourceCache {
		return
	}
	if err := cache.Remember(r.addr, source); err != nil {
		r.o.logger.Debug("address cache update failed", "error", err)
	}
}

// finish folds the session's error and warnings into res.
func (r *run) finish(res Result, err error) Result {
	res.Op = r.req.Op
	res.Address = r.addr
	res.Warnings = r.warnings
	res.Waited = r.waited

	switch {
	case err != nil:
		res.Status = Failure
		res.Err = err
		res.Summary = ""
		res.Value = nil
	case len(r.warnings) > 0:
		res.Status = SuccessWithWarning
	default:
		res.Status = Success
	}

	reason := ""
	if err != nil {
		reason = err.Error()
		r.logError(err)
	}
	r.setState(res.Status.String(), reason)
	r.o.logger.Debug("session finished", "op", r.req.Op, "status", res.Status, "waited", r.waited)
	return res
}

func (r *run) warn(err error) {
	r.o.logger.Debug("warning", "op", r.req.Op, "error", err)
	r.warnings = append(r.warnings, err)
}

func (r *run) progressf(format string, args ...any) {
	r.o.deps.Progress.Progressf(format, args...)
}

// translate maps device and context errors to session errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimedOut
	case errors.Is(err, device.ErrCompileFailed):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, device.ErrNoCompiler):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
}

func (r *run) setState(state, reason string) {
	old := r.state
	r.state = state
	r.emit(pblog.Event{
		Layer:    pblog.LayerSession,
		Category: pblog.CategoryState,
		StateChange: &pblog.StateChangeEvent{
			Entity:   pblog.StateEntitySession,
			OldState: old,
			NewState: state,
			Reason:   reason,
		},
	})
}

func (r *run) logError(err error) {
	r.emit(pblog.Event{
		Layer:    pblog.LayerSession,
		Category: pblog.CategoryError,
		Error: &pblog.ErrorEventData{
			Layer:   pblog.LayerSession,
			Message: err.Error(),
			Context: r.req.Op.String(),
		},
	})
}

func (r *run) emit(e pblog.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = r.connID
	e.RemoteAddr = r.addr
	r.o.deps.ProtocolLogger.Log(e)
}
