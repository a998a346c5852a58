package session

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/pixelblaze-tools/pb-go/pkg/device"
	pblog "github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/readiness"
)

// Device is an open connection to one device.
// *device.Conn implements it.
type Device interface {
	SendPing(ctx context.Context) error
	WriteFireAndForget(fields map[string]any) error
	WriteAcknowledged(ctx context.Context, fields map[string]any) error
	Request(ctx context.Context, fields map[string]any, expectKey string) (map[string]any, error)
	ReadSettings(ctx context.Context) (*device.Settings, error)
	ReadSequencer(ctx context.Context) (*device.Sequencer, error)
	ReadPlaylist(ctx context.Context, id string) (*device.Playlist, error)
	ListPatterns(ctx context.Context) (map[string]string, error)
	UploadPattern(ctx context.Context, source string) error
	Close() error
}

// Dialer opens Devices.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Device, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string) (Device, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, addr string) (Device, error) {
	return f(ctx, addr)
}

// DeviceDialer dials real devices with opts.
func DeviceDialer(opts device.Options) Dialer {
	return DialerFunc(func(ctx context.Context, addr string) (Device, error) {
		conn, err := device.Dial(ctx, addr, opts)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Discoverer finds a device on the network.
type Discoverer interface {
	DiscoverFirst(ctx context.Context) (string, error)
}

// Prober checks that an address answers.
type Prober interface {
	Probe(ctx context.Context, addr string) error
}

// AddressCache remembers the last address used.
type AddressCache interface {
	LastAddress() (string, error)
	Remember(addr, source string) error
}

// Progress receives human-readable progress lines.
type Progress interface {
	Progressf(format string, args ...any)
}

type discardProgress struct{}

func (discardProgress) Progressf(string, ...any) {}

// Deps are the collaborators of an Orchestrator. Dialer is required;
// Discoverer and Prober are required for auto targets.
type Deps struct {
	Dialer     Dialer
	Discoverer Discoverer
	Prober     Prober

	// Cache is optional.
	Cache AddressCache

	// AdHocAddress overrides the device's access point address.
	AdHocAddress string

	// CanCompile reports whether pattern rendering is possible.
	CanCompile bool

	Progress       Progress
	Logger         *slog.Logger
	ProtocolLogger pblog.Logger

	// Clock measures waits and round trips. Nil means the wall clock.
	Clock readiness.Clock

	// Intn picks a random index in [0, n). Nil uses math/rand/v2.
	Intn func(n int) int
}

func (d Deps) withDefaults() Deps {
	if d.Progress == nil {
		d.Progress = discardProgress{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.ProtocolLogger == nil {
		d.ProtocolLogger = pblog.NoopLogger{}
	}
	if d.Clock == nil {
		d.Clock = readiness.SystemClock
	}
	if d.Intn == nil {
		d.Intn = rand.IntN
	}
	return d
}
