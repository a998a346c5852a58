package devicesim

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// session is one client connection.
type session struct {
	sim *Sim
	ws  *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}

	// arrived is when the frame being handled was read off the socket.
	arrived time.Time

	// replyAt is when the reply to the previous request started; zero when
	// that request owed no reply.
	replyAt time.Time

	upload wire.Assembler
}

type inbound struct {
	mt   int
	data []byte
	at   time.Time
}

func (c *session) serve() {
	defer c.ws.Close()
	defer close(c.done)

	c.upload.Type = wire.FrameByteCode

	if iv := c.sim.cfg.StatsInterval; iv > 0 {
		go c.stats(iv)
	}

	// Frames are read eagerly so arrival times are accurate while the
	// handler sleeps on latency.
	frames := make(chan inbound, 64)
	go func() {
		defer close(frames)
		for {
			mt, data, err := c.ws.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- inbound{mt: mt, data: data, at: time.Now()}:
			case <-c.done:
				return
			}
		}
	}()

	for in := range frames {
		c.arrived = in.at
		if !c.handle(in.mt, in.data) {
			return
		}
	}
}

func (c *session) stats(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.writeText(wire.Fields{wire.KeyFPS: 60.0, "vmerr": 0, "mem": 10000})
		}
	}
}

// handle processes one frame and reports whether to keep the connection.
func (c *session) handle(mt int, data []byte) bool {
	if mt == websocket.BinaryMessage {
		return c.handleBinary(data)
	}

	f, err := wire.DecodeFields(data)
	if err != nil {
		c.sim.logger.Debug("bad message", "error", err)
		return true
	}
	key := requestKey(f)
	c.arrive(key)

	if d := c.sim.cfg.DisconnectOn; d != "" && key == d {
		return false
	}

	s := c.sim
	switch key {
	case wire.KeyPing:
		c.ack(key)

	case wire.KeyBrightness:
		v, _ := f[wire.KeyBrightness].(float64)
		s.mu.Lock()
		if s.ignored < s.cfg.IgnoreBrightnessWrites {
			s.ignored++
		} else {
			if s.cfg.MaxBrightness > 0 && v > s.cfg.MaxBrightness {
				v = s.cfg.MaxBrightness
			}
			s.brightness = v
			s.countSave(f)
		}
		s.mu.Unlock()

	case wire.KeyPixelCount:
		v, _ := f[wire.KeyPixelCount].(float64)
		s.mu.Lock()
		s.pixelCount = int(v)
		s.countSave(f)
		s.mu.Unlock()
		c.ack(key)

	case wire.KeyRunSequencer:
		v, _ := f[wire.KeyRunSequencer].(bool)
		s.mu.Lock()
		s.running = v
		s.countSave(f)
		s.mu.Unlock()
		c.ack(key)

	case wire.KeyNextProgram:
		s.mu.Lock()
		s.advance()
		s.countSave(f)
		s.mu.Unlock()
		c.ack(key)

	case wire.KeyActiveProgramID:
		id, _ := f[wire.KeyActiveProgramID].(string)
		s.mu.Lock()
		if s.hasPattern(id) {
			s.active = id
		}
		s.countSave(f)
		s.mu.Unlock()
		c.ack(key)

	case wire.KeyPlaylist:
		var req struct {
			Playlist wire.Playlist `json:"playlist"`
		}
		if err := json.Unmarshal(data, &req); err == nil {
			s.mu.Lock()
			s.playlist.Items = req.Playlist.Items
			s.countSave(f)
			s.mu.Unlock()
		}
		c.ack(key)

	case wire.KeySetVars:
		vars, _ := f[wire.KeySetVars].(map[string]any)
		s.mu.Lock()
		for k, v := range vars {
			s.vars[k] = v
		}
		s.mu.Unlock()

	case wire.KeyGetConfig:
		c.reply(key, func() {
			s.mu.Lock()
			settings := wire.Settings{
				Name:       s.cfg.Name,
				Brightness: s.brightness,
				PixelCount: s.pixelCount,
				Version:    s.cfg.Version,
			}
			seq := wire.Sequencer{
				ActiveProgram: &wire.ActiveProgram{ID: s.active, Name: s.patternName(s.active)},
				Running:       s.running,
			}
			s.mu.Unlock()
			_ = c.writeRaw(websocket.TextMessage, toJSON(settings))
			_ = c.writeRaw(websocket.TextMessage, toJSON(seq))
		})

	case wire.KeyGetPlaylist:
		c.reply(key, func() {
			s.mu.Lock()
			reply := wire.PlaylistReply{Playlist: s.playlist}
			s.mu.Unlock()
			_ = c.writeRaw(websocket.TextMessage, toJSON(reply))
		})

	case wire.KeyListPrograms:
		c.reply(key, func() {
			frames, err := wire.Chunk(wire.FrameProgramList, s.programList(), s.cfg.ListChunkSize)
			if err != nil {
				// An empty list is still one terminating frame.
				frames = []wire.Frame{{Type: wire.FrameProgramList, Flags: wire.FlagFirst | wire.FlagLast}}
			}
			for _, fr := range frames {
				_ = c.writeRaw(websocket.BinaryMessage, wire.EncodeFrame(fr))
			}
		})
	}
	return true
}

func (c *session) handleBinary(data []byte) bool {
	fr, err := wire.DecodeFrame(data)
	if err != nil {
		return true
	}
	key := "binary:" + fr.Type.String()
	c.sim.record(key)

	if fr.Type != wire.FrameByteCode {
		return true
	}
	if fr.Flags.IsFirst() {
		c.checkOrdering(key)
	}
	if !c.upload.Add(fr) {
		return true
	}

	s := c.sim
	s.mu.Lock()
	s.bytecode = append([]byte(nil), c.upload.Bytes()...)
	s.mu.Unlock()

	c.ack(UploadKey)
	return true
}

// arrive records a request and checks the one-in-flight rule.
func (c *session) arrive(key string) {
	c.sim.record(key)
	c.checkOrdering(key)
}

// checkOrdering counts a violation when the request reached the device
// before the reply to the previous request had been sent.
func (c *session) checkOrdering(key string) {
	if !c.replyAt.IsZero() && c.arrived.Before(c.replyAt) {
		c.sim.mu.Lock()
		c.sim.violations++
		c.sim.mu.Unlock()
		c.sim.logger.Debug("request while reply outstanding", "key", key)
	}
	c.replyAt = time.Time{}
}

func (c *session) ack(key string) {
	c.reply(key, func() {
		_ = c.writeText(wire.Fields{wire.KeyAck: 1})
	})
}

// reply sends a response after the configured latency, unless key is
// silenced.
func (c *session) reply(key string, send func()) {
	if c.sim.silent(key) {
		return
	}
	if d := c.sim.cfg.Latency; d > 0 {
		time.Sleep(d)
	}
	c.replyAt = time.Now()
	send()
}

func (c *session) writeText(f wire.Fields) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return c.writeRaw(websocket.TextMessage, data)
}

func (c *session) writeRaw(mt int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(mt, data)
}

func (s *Sim) countSave(f wire.Fields) {
	if saveFlag(f) {
		s.saves++
	}
}

func (s *Sim) advance() {
	if len(s.cfg.Patterns) == 0 {
		return
	}
	for i, p := range s.cfg.Patterns {
		if p.ID == s.active {
			s.active = s.cfg.Patterns[(i+1)%len(s.cfg.Patterns)].ID
			return
		}
	}
	s.active = s.cfg.Patterns[rand.IntN(len(s.cfg.Patterns))].ID
}

func (s *Sim) patternName(id string) string {
	for _, p := range s.cfg.Patterns {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// requestKey picks the command key of a request.
func requestKey(f wire.Fields) string {
	for _, k := range []string{
		wire.KeyPing, wire.KeyPixelCount, wire.KeyRunSequencer, wire.KeyNextProgram,
		wire.KeyActiveProgramID, wire.KeyPlaylist, wire.KeySetVars, wire.KeyGetConfig,
		wire.KeyGetPlaylist, wire.KeyListPrograms, wire.KeyBrightness,
	} {
		if f.Has(k) {
			return k
		}
	}
	keys := f.Keys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
