package wire

import (
	"bufio"
	"bytes"
	"strings"
)

// Settings is the first reply to getConfig.
type Settings struct {
	Name       string  `json:"name"`
	Brightness float64 `json:"brightness"`
	PixelCount int     `json:"pixelCount"`
	Version    string  `json:"ver,omitempty"`
	LEDType    int     `json:"ledType,omitempty"`
	MaxBright  float64 `json:"maxBrightness,omitempty"`
}

// ActiveProgram names the running pattern.
type ActiveProgram struct {
	Name string `json:"name"`
	ID   string `json:"activeProgramId"`
}

// Sequencer is the second reply to getConfig.
type Sequencer struct {
	ActiveProgram *ActiveProgram `json:"activeProgram,omitempty"`
	Mode          int            `json:"sequencerMode"`
	Running       bool           `json:"runSequencer"`
}

// PlaylistItem is one pattern slot in a playlist.
type PlaylistItem struct {
	ID string `json:"id"`
	MS int    `json:"ms"`
}

// Playlist is the sequencer's pattern list.
type Playlist struct {
	ID                string         `json:"id"`
	Position          int            `json:"position"`
	CurrentDurationMS int            `json:"currentDurationMs,omitempty"`
	Items             []PlaylistItem `json:"items"`
}

// PlaylistReply wraps a playlist as the device sends it.
type PlaylistReply struct {
	Playlist Playlist `json:"playlist"`
}

// ParseProgramList parses the assembled PROGRAM_LIST payload: one
// "id<TAB>name" record per line. Malformed lines are skipped.
func ParseProgramList(data []byte) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		id, name, ok := strings.Cut(sc.Text(), "\t")
		if !ok || id == "" {
			continue
		}
		out[id] = name
	}
	return out
}

// FormatProgramList is the inverse of ParseProgramList. Order follows ids.
func FormatProgramList(ids []string, names map[string]string) []byte {
	var b bytes.Buffer
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\t')
		b.WriteString(names[id])
		b.WriteByte('\n')
	}
	return b.Bytes()
}
