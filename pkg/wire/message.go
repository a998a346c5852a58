package wire

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Request keys.
const (
	KeyPing            = "ping"
	KeyBrightness      = "brightness"
	KeyPixelCount      = "pixelCount"
	KeyRunSequencer    = "runSequencer"
	KeyNextProgram     = "nextProgram"
	KeyActiveProgramID = "activeProgramId"
	KeyPlaylist        = "playlist"
	KeyGetPlaylist     = "getPlaylist"
	KeySetVars         = "setVars"
	KeyGetConfig       = "getConfig"
	KeyListPrograms    = "listPrograms"
	KeySave            = "save"
)

// Response keys.
const (
	KeyAck           = "ack"
	KeySequencerMode = "sequencerMode"
	KeyFPS           = "fps"
)

// DefaultPlaylistID names the playlist the sequencer plays.
const DefaultPlaylistID = "_defaultplaylist_"

// Fields is a decoded JSON message.
type Fields map[string]any

// Has reports whether the message carries key.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Keys returns the top-level keys, sorted.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Encode marshals the message.
func (f Fields) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(f))
}

// DecodeFields parses a text frame. Only JSON objects are accepted.
func DecodeFields(data []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("decode message: not an object")
	}
	return f, nil
}

// statsKeys appear only in the periodic status broadcast.
var statsKeys = []string{KeyFPS, "vmerr", "vmerrpc", "mem", "uptime", "storageUsed", "storageSize", "rr0", "rr1"}

// IsStats reports whether a message is an unsolicited status broadcast.
func IsStats(f Fields) bool {
	for _, k := range statsKeys {
		if f.Has(k) {
			return true
		}
	}
	return false
}
