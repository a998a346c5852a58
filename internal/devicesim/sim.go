package devicesim

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// UploadKey is the request key recorded for bytecode uploads. Add it to
// Config.Silent to suppress the upload acknowledgment.
const UploadKey = "binary:BYTE_CODE"

// Pattern is a stored program.
type Pattern struct {
	ID   string
	Name string
}

// Config configures a simulated device.
type Config struct {
	Name       string
	Version    string
	Brightness float64
	PixelCount int
	Patterns   []Pattern

	// Playlist holds the default playlist items. Nil means one item per
	// pattern at 30 seconds.
	Playlist []wire.PlaylistItem

	// Latency delays every reply.
	Latency time.Duration

	// Silent lists request keys that never get a reply. The request is
	// still applied.
	Silent []string

	// MaxBrightness clamps stored brightness when positive.
	MaxBrightness float64

	// IgnoreBrightnessWrites drops this many brightness writes before
	// applying any.
	IgnoreBrightnessWrites int

	// DisconnectOn closes the connection when a request with this key
	// arrives, before replying.
	DisconnectOn string

	// StatsInterval sends periodic status messages when positive.
	StatsInterval time.Duration

	// ListChunkSize splits the program list into frames of this size.
	// Zero means wire.ChunkSize.
	ListChunkSize int

	// OnMessage is called with the key of every request received
	// ("binary:<type>" for binary frames).
	OnMessage func(key string)

	Logger *slog.Logger
}

// DefaultConfig returns a device with a few patterns.
func DefaultConfig() Config {
	return Config{
		Name:       "sim",
		Version:    "3.51",
		Brightness: 1,
		PixelCount: 100,
		Patterns: []Pattern{
			{ID: "p-rainbow", Name: "Rainbow melt"},
			{ID: "p-fire", Name: "Fire"},
			{ID: "p-glitter", Name: "Glitter"},
			{ID: "p-sound", Name: "Sound - spectrum react"},
		},
	}
}

// Sim is a simulated device.
type Sim struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu         sync.Mutex
	brightness float64
	pixelCount int
	running    bool
	active     string
	playlist   wire.Playlist
	vars       map[string]any
	bytecode   []byte
	ignored    int
	saves      int
	counts     map[string]int
	order      []string
	violations int

	server *httptest.Server
}

// New creates a simulator.
func New(cfg Config) *Sim {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Sim{
		cfg:        cfg,
		logger:     logger,
		brightness: cfg.Brightness,
		pixelCount: cfg.PixelCount,
		running:    true,
		vars:       make(map[string]any),
		counts:     make(map[string]int),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if len(cfg.Patterns) > 0 {
		s.active = cfg.Patterns[0].ID
	}

	items := cfg.Playlist
	if items == nil {
		for _, p := range cfg.Patterns {
			items = append(items, wire.PlaylistItem{ID: p.ID, MS: 30000})
		}
	}
	s.playlist = wire.Playlist{ID: wire.DefaultPlaylistID, Items: slices.Clone(items)}
	return s
}

// Start serves the simulator on a loopback test server.
func Start(cfg Config) *Sim {
	s := New(cfg)
	s.server = httptest.NewServer(s)
	return s
}

// Addr returns host:port of the test server.
func (s *Sim) Addr() string {
	return strings.TrimPrefix(s.server.URL, "http://")
}

// Close stops the test server.
func (s *Sim) Close() {
	if s.server != nil {
		s.server.CloseClientConnections()
		s.server.Close()
	}
}

// ServeHTTP upgrades the request and serves one device connection.
func (s *Sim) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := &session{sim: s, ws: ws, done: make(chan struct{})}
	c.serve()
}

// Snapshot is a copy of the device state.
type Snapshot struct {
	Brightness float64
	PixelCount int
	Running    bool
	ActiveID   string
	Playlist   wire.Playlist
	Vars       map[string]any
	ByteCode   []byte
	Saves      int
}

// State returns the current device state.
func (s *Sim) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pl := s.playlist
	pl.Items = slices.Clone(pl.Items)
	vars := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return Snapshot{
		Brightness: s.brightness,
		PixelCount: s.pixelCount,
		Running:    s.running,
		ActiveID:   s.active,
		Playlist:   pl,
		Vars:       vars,
		ByteCode:   slices.Clone(s.bytecode),
		Saves:      s.saves,
	}
}

// Count returns how many requests with key were received.
func (s *Sim) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Received returns request keys in arrival order.
func (s *Sim) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Violations counts requests that arrived while an acknowledgment was
// still outstanding on the same connection.
func (s *Sim) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

func (s *Sim) silent(key string) bool {
	return slices.Contains(s.cfg.Silent, key)
}

func (s *Sim) record(key string) {
	s.mu.Lock()
	s.counts[key]++
	s.order = append(s.order, key)
	s.mu.Unlock()

	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(key)
	}
}

func (s *Sim) programList() []byte {
	ids := make([]string, 0, len(s.cfg.Patterns))
	names := make(map[string]string, len(s.cfg.Patterns))
	for _, p := range s.cfg.Patterns {
		ids = append(ids, p.ID)
		names[p.ID] = p.Name
	}
	return wire.FormatProgramList(ids, names)
}

func (s *Sim) hasPattern(id string) bool {
	for _, p := range s.cfg.Patterns {
		if p.ID == id {
			return true
		}
	}
	return false
}

func saveFlag(f wire.Fields) bool {
	v, ok := f[wire.KeySave].(bool)
	return ok && v
}

func toJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
