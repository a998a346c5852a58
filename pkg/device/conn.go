package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	pblog "github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// DefaultPort is the device's WebSocket port.
const DefaultPort = 81

const (
	inboxSize         = 64
	closeWriteTimeout = 500 * time.Millisecond
)

// Options configures a Conn.
type Options struct {
	// Port overrides DefaultPort. Ignored when the address has a port.
	Port int

	// ProtocolLogger receives every frame. Nil disables capture.
	ProtocolLogger pblog.Logger

	// Compiler turns pattern source into bytecode for UploadPattern.
	Compiler Compiler

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger
}

// message is one decoded frame from the device.
type message struct {
	fields wire.Fields
	frame  *wire.Frame
	raw    []byte
}

// Conn is an open connection to one device.
type Conn struct {
	ws     *websocket.Conn
	id     string
	remote string
	opts   Options
	logger *slog.Logger
	plog   pblog.Logger

	writeMu sync.Mutex
	inbox   chan message

	// owedAcks counts acks still due for exchanges that timed out.
	owedAcks atomic.Int32

	lost     chan struct{}
	lostErr  error
	readDone chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// Dial opens a WebSocket to the device at addr. addr is a host or
// host:port; a bare host gets the device port.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	host := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		host = net.JoinHostPort(addr, strconv.Itoa(port))
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/"}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	plog := opts.ProtocolLogger
	if plog == nil {
		plog = pblog.NoopLogger{}
	}

	c := &Conn{
		id:       uuid.New().String(),
		remote:   host,
		opts:     opts,
		logger:   logger,
		plog:     plog,
		inbox:    make(chan message, inboxSize),
		lost:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	c.logState("", "CONNECTING", "")

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.logState("CONNECTING", "FAILED", err.Error())
		return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, u.String(), err)
	}
	c.ws = ws
	c.logState("CONNECTING", "CONNECTED", "")
	logger.Debug("connected", "url", u.String(), "conn_id", c.id)

	go c.readLoop()
	return c, nil
}

// ID returns the connection ID used in protocol captures.
func (c *Conn) ID() string {
	return c.id
}

// SendPing sends a ping and waits for its acknowledgment.
func (c *Conn) SendPing(ctx context.Context) error {
	return c.exchangeAck(ctx, wire.Fields{wire.KeyPing: true})
}

// WriteFireAndForget sends a message the device does not answer.
func (c *Conn) WriteFireAndForget(fields map[string]any) error {
	return c.writeJSON(wire.Fields(fields))
}

// WriteAcknowledged sends a message and waits for the device's ack.
func (c *Conn) WriteAcknowledged(ctx context.Context, fields map[string]any) error {
	return c.exchangeAck(ctx, wire.Fields(fields))
}

// Request sends a message and returns the first reply carrying expectKey.
// An empty expectKey accepts any JSON reply.
func (c *Conn) Request(ctx context.Context, fields map[string]any, expectKey string) (map[string]any, error) {
	m, err := c.exchange(ctx, wire.Fields(fields), func(m message) bool {
		return m.fields != nil && (expectKey == "" || m.fields.Has(expectKey))
	})
	if err != nil {
		return nil, err
	}
	return m.fields, nil
}

// ReadSettings fetches the device settings.
func (c *Conn) ReadSettings(ctx context.Context) (*Settings, error) {
	m, err := c.exchange(ctx, wire.Fields{wire.KeyGetConfig: true}, hasKey(wire.KeyPixelCount))
	if err != nil {
		return nil, err
	}
	s := &Settings{Raw: m.fields}
	if err := json.Unmarshal(m.raw, &s.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// ReadSequencer fetches the sequencer state.
func (c *Conn) ReadSequencer(ctx context.Context) (*Sequencer, error) {
	m, err := c.exchange(ctx, wire.Fields{wire.KeyGetConfig: true}, hasKey(wire.KeySequencerMode))
	if err != nil {
		return nil, err
	}
	s := &Sequencer{Raw: m.fields}
	if err := json.Unmarshal(m.raw, &s.Sequencer); err != nil {
		return nil, fmt.Errorf("decode sequencer: %w", err)
	}
	return s, nil
}

// ReadPlaylist fetches a playlist by ID.
func (c *Conn) ReadPlaylist(ctx context.Context, id string) (*Playlist, error) {
	m, err := c.exchange(ctx, wire.Fields{wire.KeyGetPlaylist: id}, hasKey(wire.KeyPlaylist))
	if err != nil {
		return nil, err
	}
	var reply wire.PlaylistReply
	if err := json.Unmarshal(m.raw, &reply); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	raw, _ := m.fields[wire.KeyPlaylist].(map[string]any)
	return &Playlist{Playlist: reply.Playlist, Raw: raw}, nil
}

// ListPatterns returns stored patterns keyed by ID.
func (c *Conn) ListPatterns(ctx context.Context) (map[string]string, error) {
	asm := wire.Assembler{Type: wire.FrameProgramList}
	_, err := c.exchange(ctx, wire.Fields{wire.KeyListPrograms: true}, func(m message) bool {
		return m.frame != nil && asm.Add(*m.frame)
	})
	if err != nil {
		return nil, err
	}
	return wire.ParseProgramList(asm.Bytes()), nil
}

// UploadPattern compiles source, sends the bytecode to the renderer and
// waits for the device's ack. Compilation counts against ctx.
func (c *Conn) UploadPattern(ctx context.Context, source string) error {
	if c.opts.Compiler == nil {
		return ErrNoCompiler
	}
	bytecode, err := c.opts.Compiler.Compile(ctx, source)
	if err != nil {
		return err
	}
	frames, err := wire.Chunk(wire.FrameByteCode, bytecode, wire.ChunkSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}

	c.drain()
	for _, f := range frames {
		if err := c.writeBinary(f); err != nil {
			return err
		}
	}
	return c.awaitAck(ctx)
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout))
		err = c.ws.Close()
		<-c.readDone
		c.logState("CONNECTED", "CLOSED", "")
	})
	return err
}

// exchange drops stale replies, writes fields and waits for a match.
func (c *Conn) exchange(ctx context.Context, fields wire.Fields, match func(message) bool) (message, error) {
	c.drain()
	if err := c.writeJSON(fields); err != nil {
		return message{}, err
	}
	return c.await(ctx, match)
}

// exchangeAck writes fields and waits for the device's ack.
func (c *Conn) exchangeAck(ctx context.Context, fields wire.Fields) error {
	c.drain()
	if err := c.writeJSON(fields); err != nil {
		return err
	}
	return c.awaitAck(ctx)
}

// awaitAck waits for an ack. When ctx ends first the ack is still on its
// way, so it is owed and skipped when it arrives.
func (c *Conn) awaitAck(ctx context.Context) error {
	_, err := c.await(ctx, isAck)
	if err != nil && ctx.Err() != nil {
		c.owedAcks.Add(1)
	}
	return err
}

// await returns the first inbox message accepted by match. Acks owed to
// earlier timed-out exchanges never match.
func (c *Conn) await(ctx context.Context, match func(message) bool) (message, error) {
	for {
		select {
		case m := <-c.inbox:
			if !c.stale(m) && match(m) {
				return m, nil
			}
		case <-ctx.Done():
			return message{}, ctx.Err()
		case <-c.lost:
			for {
				select {
				case m := <-c.inbox:
					if !c.stale(m) && match(m) {
						return m, nil
					}
				default:
					return message{}, c.lostErr
				}
			}
		}
	}
}

// drain discards messages that arrived since the last request.
func (c *Conn) drain() {
	for {
		select {
		case m := <-c.inbox:
			c.stale(m)
		default:
			return
		}
	}
}

// stale reports whether m is a late ack, settling one owed ack if so.
func (c *Conn) stale(m message) bool {
	if !isAck(m) {
		return false
	}
	for {
		n := c.owedAcks.Load()
		if n <= 0 {
			return false
		}
		if c.owedAcks.CompareAndSwap(n, n-1) {
			c.logger.Debug("skipping late ack", "conn_id", c.id, "owed", n-1)
			return true
		}
	}
}

func (c *Conn) writeJSON(fields wire.Fields) error {
	data, err := fields.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		return err
	}
	c.logMessage(pblog.DirectionOut, &pblog.MessageEvent{Kind: pblog.MessageKindJSON, Keys: fields.Keys()})
	return nil
}

func (c *Conn) writeBinary(f wire.Frame) error {
	if err := c.write(websocket.BinaryMessage, wire.EncodeFrame(f)); err != nil {
		return err
	}
	c.logMessage(pblog.DirectionOut, binarySummary(f))
	return nil
}

func (c *Conn) write(mt int, data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case <-c.lost:
		return c.lostErr
	default:
	}

	c.writeMu.Lock()
	err := c.ws.WriteMessage(mt, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logError("write", err)
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	c.logFrame(pblog.DirectionOut, data, mt == websocket.BinaryMessage)
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.markLost(err)
			return
		}
		c.logFrame(pblog.DirectionIn, data, mt == websocket.BinaryMessage)

		var m message
		switch mt {
		case websocket.TextMessage:
			f, err := wire.DecodeFields(data)
			if err != nil {
				c.logger.Debug("ignoring undecodable message", "error", err)
				continue
			}
			if wire.IsStats(f) {
				continue
			}
			c.logMessage(pblog.DirectionIn, &pblog.MessageEvent{Kind: pblog.MessageKindJSON, Keys: f.Keys()})
			m = message{fields: f, raw: data}
		case websocket.BinaryMessage:
			f, err := wire.DecodeFrame(data)
			if err != nil {
				continue
			}
			c.logMessage(pblog.DirectionIn, binarySummary(f))
			m = message{frame: &f, raw: data}
		default:
			continue
		}

		select {
		case c.inbox <- m:
		default:
			c.logger.Debug("inbox full, dropping message")
		}
	}
}

func (c *Conn) markLost(err error) {
	if c.closed.Load() {
		c.lostErr = ErrClosed
	} else {
		c.lostErr = fmt.Errorf("%w: %v", ErrConnectionLost, err)
		c.logState("CONNECTED", "LOST", err.Error())
		c.logger.Debug("connection lost", "conn_id", c.id, "error", err)
	}
	close(c.lost)
}

func isAck(m message) bool {
	return m.fields != nil && m.fields.Has(wire.KeyAck)
}

func hasKey(key string) func(message) bool {
	return func(m message) bool {
		return m.fields != nil && m.fields.Has(key)
	}
}

func binarySummary(f wire.Frame) *pblog.MessageEvent {
	t, fl := uint8(f.Type), uint8(f.Flags)
	return &pblog.MessageEvent{Kind: pblog.MessageKindBinary, FrameType: &t, FrameFlags: &fl}
}

func (c *Conn) emit(e pblog.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = c.id
	e.RemoteAddr = c.remote
	c.plog.Log(e)
}

func (c *Conn) logFrame(dir pblog.Direction, data []byte, binary bool) {
	c.emit(pblog.Event{
		Direction: dir,
		Layer:     pblog.LayerTransport,
		Category:  pblog.CategoryMessage,
		Frame:     pblog.NewFrameEvent(data, binary),
	})
}

func (c *Conn) logMessage(dir pblog.Direction, msg *pblog.MessageEvent) {
	c.emit(pblog.Event{
		Direction: dir,
		Layer:     pblog.LayerWire,
		Category:  pblog.CategoryMessage,
		Message:   msg,
	})
}

func (c *Conn) logState(oldState, newState, reason string) {
	c.emit(pblog.Event{
		Layer:    pblog.LayerTransport,
		Category: pblog.CategoryState,
		StateChange: &pblog.StateChangeEvent{
			Entity:   pblog.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *Conn) logError(op string, err error) {
	c.emit(pblog.Event{
		Layer:    pblog.LayerTransport,
		Category: pblog.CategoryError,
		Error: &pblog.ErrorEventData{
			Layer:   pblog.LayerTransport,
			Message: err.Error(),
			Context: op,
		},
	})
}
