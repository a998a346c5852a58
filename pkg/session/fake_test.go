package session_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/device"
	"github.com/pixelblaze-tools/pb-go/pkg/session"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// call is one request seen by fakeDevice.
type call struct {
	Kind   string
	Fields map[string]any
}

// fakeDevice is an in-memory Device. It records every request and counts
// requests issued while another one was still running.
type fakeDevice struct {
	mu    sync.Mutex
	calls []call

	inFlight atomic.Int32
	overlaps atomic.Int32

	brightness    float64
	pixelCount    int
	maxBrightness float64
	dropWrites    int
	patterns      map[string]string
	playlist      *device.Playlist
	uploaded      []string

	// silent makes acknowledged requests block until their context ends.
	silent bool

	// lose makes requests of this kind fail with a lost connection.
	lose string

	// clock and latency model the round trip of acknowledged requests.
	clock   *fakeClock
	latency time.Duration

	closed atomic.Int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		brightness: 1,
		pixelCount: 100,
		patterns: map[string]string{
			"p-rainbow": "Rainbow melt",
			"p-fire":    "Fire",
			"p-glitter": "Glitter",
		},
		playlist: &device.Playlist{
			Playlist: wire.Playlist{
				ID: wire.DefaultPlaylistID,
				Items: []wire.PlaylistItem{
					{ID: "p-rainbow", MS: 30000},
					{ID: "p-fire", MS: 30000},
				},
			},
			Raw: map[string]any{
				"id":       wire.DefaultPlaylistID,
				"position": float64(0),
				"items": []any{
					map[string]any{"id": "p-rainbow", "ms": float64(30000)},
					map[string]any{"id": "p-fire", "ms": float64(30000)},
				},
			},
		},
	}
}

func (d *fakeDevice) enter(kind string, fields map[string]any) func() {
	if d.inFlight.Add(1) > 1 {
		d.overlaps.Add(1)
	}
	d.mu.Lock()
	d.calls = append(d.calls, call{Kind: kind, Fields: maps.Clone(fields)})
	d.mu.Unlock()
	return func() { d.inFlight.Add(-1) }
}

func (d *fakeDevice) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.Kind)
	}
	return out
}

func (d *fakeDevice) callsOf(kind string) []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []call
	for _, c := range d.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// respond models the device's answer to an acknowledged request.
func (d *fakeDevice) respond(ctx context.Context, kind string) error {
	if d.lose == kind {
		return fmt.Errorf("%w: broken pipe", device.ErrConnectionLost)
	}
	if d.silent {
		<-ctx.Done()
		return ctx.Err()
	}
	if d.clock != nil {
		d.clock.Advance(d.latency)
	}
	return nil
}

func (d *fakeDevice) SendPing(ctx context.Context) error {
	defer d.enter("ping", nil)()
	return d.respond(ctx, "ping")
}

func (d *fakeDevice) WriteFireAndForget(fields map[string]any) error {
	defer d.enter("fire", fields)()
	if d.lose == "fire" {
		return fmt.Errorf("%w: broken pipe", device.ErrConnectionLost)
	}
	if v, ok := fields[wire.KeyBrightness].(float64); ok {
		d.mu.Lock()
		if d.dropWrites > 0 {
			d.dropWrites--
		} else {
			if d.maxBrightness > 0 {
				v = min(v, d.maxBrightness)
			}
			d.brightness = v
		}
		d.mu.Unlock()
	}
	return nil
}

func (d *fakeDevice) WriteAcknowledged(ctx context.Context, fields map[string]any) error {
	defer d.enter("ack", fields)()
	if n, ok := fields[wire.KeyPixelCount].(int); ok {
		d.mu.Lock()
		d.pixelCount = n
		d.mu.Unlock()
	}
	return d.respond(ctx, "ack")
}

func (d *fakeDevice) Request(ctx context.Context, fields map[string]any, expectKey string) (map[string]any, error) {
	defer d.enter("request", fields)()
	if err := d.respond(ctx, "request"); err != nil {
		return nil, err
	}
	if expectKey == "" {
		return map[string]any{wire.KeyAck: float64(1)}, nil
	}
	return map[string]any{expectKey: true}, nil
}

func (d *fakeDevice) ReadSettings(ctx context.Context) (*device.Settings, error) {
	defer d.enter("settings", nil)()
	if err := d.respond(ctx, "settings"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &device.Settings{Raw: map[string]any{"brightness": d.brightness, "pixelCount": d.pixelCount}}
	s.Brightness = d.brightness
	s.PixelCount = d.pixelCount
	return s, nil
}

func (d *fakeDevice) ReadSequencer(ctx context.Context) (*device.Sequencer, error) {
	defer d.enter("sequencer", nil)()
	if err := d.respond(ctx, "sequencer"); err != nil {
		return nil, err
	}
	return &device.Sequencer{Raw: map[string]any{"sequencerMode": float64(1)}}, nil
}

func (d *fakeDevice) ReadPlaylist(ctx context.Context, id string) (*device.Playlist, error) {
	defer d.enter("playlist", map[string]any{"id": id})()
	if err := d.respond(ctx, "playlist"); err != nil {
		return nil, err
	}
	return d.playlist, nil
}

func (d *fakeDevice) ListPatterns(ctx context.Context) (map[string]string, error) {
	defer d.enter("patterns", nil)()
	if err := d.respond(ctx, "patterns"); err != nil {
		return nil, err
	}
	return maps.Clone(d.patterns), nil
}

func (d *fakeDevice) UploadPattern(ctx context.Context, source string) error {
	defer d.enter("upload", map[string]any{"source": source})()
	d.mu.Lock()
	d.uploaded = append(d.uploaded, source)
	d.mu.Unlock()
	return d.respond(ctx, "upload")
}

func (d *fakeDevice) Close() error {
	d.closed.Add(1)
	return nil
}

// fakeDialer hands out one fakeDevice and counts dials.
type fakeDialer struct {
	dev   *fakeDevice
	err   error
	dials atomic.Int32
	addrs []string
	mu    sync.Mutex
}

func (f *fakeDialer) Dial(ctx context.Context, addr string) (session.Device, error) {
	f.dials.Add(1)
	f.mu.Lock()
	f.addrs = append(f.addrs, addr)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.dev, nil
}

// fakeClock only moves when told to. After fires at once and advances the
// clock by the requested duration.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	afters []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.afters = append(c.afters, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Afters() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.afters)
}

// progressLog collects progress lines.
type progressLog struct {
	mu    sync.Mutex
	lines []string
}

func (p *progressLog) Progressf(format string, args ...any) {
	p.mu.Lock()
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *progressLog) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.lines)
}

// memoryCache is an in-memory AddressCache.
type memoryCache struct {
	addr       string
	remembered []string
}

func (c *memoryCache) LastAddress() (string, error) {
	if c.addr == "" {
		return "", errors.New("empty")
	}
	return c.addr, nil
}

func (c *memoryCache) Remember(addr, source string) error {
	c.remembered = append(c.remembered, addr+"/"+source)
	c.addr = addr
	return nil
}
