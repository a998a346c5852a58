package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/pixelblaze-tools/pb-go/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want session.Request
	}{
		{"ping default", []string{"ping"}, session.Request{Op: policy.OpPing, PingCount: 5}},
		{"ping count", []string{"ping", "-c", "3"}, session.Request{Op: policy.OpPing, PingCount: 3}},
		{"brightness get", []string{"brightness"}, session.Request{Op: policy.OpBrightnessGet}},
		{"brightness set", []string{"brightness", "0.5"}, session.Request{Op: policy.OpBrightnessSet, Brightness: 0.5, Save: true}},
		{"brightness no save after arg", []string{"brightness", "0.5", "-no-save"}, session.Request{Op: policy.OpBrightnessSet, Brightness: 0.5}},
		{"brightness no save before arg", []string{"brightness", "-no-save", "0.5"}, session.Request{Op: policy.OpBrightnessSet, Brightness: 0.5}},
		{"pixels get", []string{"pixels"}, session.Request{Op: policy.OpPixelCountGet}},
		{"pixels set", []string{"pixels", "300"}, session.Request{Op: policy.OpPixelCountSet, PixelCount: 300, Save: true}},
		{"on default", []string{"on"}, session.Request{Op: policy.OpPowerOn, Brightness: 1, Save: true}},
		{"on level and sequencer", []string{"on", "0.3", "-play-sequencer"}, session.Request{Op: policy.OpPowerOn, Brightness: 0.3, PlaySequencer: true, Save: true}},
		{"off", []string{"off", "-pause-sequencer", "-no-save"}, session.Request{Op: policy.OpPowerOff, PauseSequencer: true}},
		{"seq play", []string{"seq", "play"}, session.Request{Op: policy.OpSequencerPlay, Save: true}},
		{"seq pause", []string{"seq", "pause", "-no-save"}, session.Request{Op: policy.OpSequencerPause}},
		{"seq next", []string{"seq", "next"}, session.Request{Op: policy.OpSequencerNext, Save: true}},
		{"seq random", []string{"seq", "random"}, session.Request{Op: policy.OpSequencerRandom, Save: true}},
		{"seq len", []string{"seq", "len", "10"}, session.Request{Op: policy.OpSequencerDuration, Duration: 10 * time.Second, Save: true}},
		{"seq len fractional", []string{"seq", "len", "1.5"}, session.Request{Op: policy.OpSequencerDuration, Duration: 1500 * time.Millisecond, Save: true}},
		{"pattern", []string{"pattern", "rainbow", "melt"}, session.Request{Op: policy.OpPatternSelect, Search: "rainbow melt", Save: true}},
		{"pattern exact", []string{"pattern", "-exact", "Fire"}, session.Request{Op: policy.OpPatternSelect, Search: "Fire", Exact: true, Save: true}},
		{"cfg", []string{"cfg"}, session.Request{Op: policy.OpConfigDump}},
		{"ws send", []string{"ws", `{"nextProgram":true}`}, session.Request{Op: policy.OpRawSend, Raw: map[string]any{"nextProgram": true}}},
		{"ws request", []string{"ws", `{"getConfig":true}`, "-expect", "pixelCount"}, session.Request{Op: policy.OpRawRequest, Raw: map[string]any{"getConfig": true}, Expect: "pixelCount"}},
		{"ws split json", []string{"ws", `{"ping":`, `true}`}, session.Request{Op: policy.OpRawSend, Raw: map[string]any{"ping": true}}},
		{"ws unquoted key", []string{"ws", "{ping:true}"}, session.Request{Op: policy.OpRawSend, Raw: map[string]any{"ping": true}}},
		{"ws single quotes", []string{"ws", "{activeProgramId: 'p-fire'}"}, session.Request{Op: policy.OpRawSend, Raw: map[string]any{"activeProgramId": "p-fire"}}},
		{"vars unquoted key", []string{"vars", "-vars", "{speed: 0.5}"}, session.Request{Op: policy.OpPatternVariables, Vars: map[string]any{"speed": 0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.args[0], tt.args[1:], strings.NewReader(""), io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"dance"}},
		{"ping argument", []string{"ping", "now"}},
		{"brightness not a number", []string{"brightness", "bright"}},
		{"brightness two args", []string{"brightness", "0.1", "0.2"}},
		{"pixels not a number", []string{"pixels", "many"}},
		{"on not a number", []string{"on", "full"}},
		{"off argument", []string{"off", "now"}},
		{"seq missing subcommand", []string{"seq"}},
		{"seq unknown subcommand", []string{"seq", "shuffle"}},
		{"seq len missing seconds", []string{"seq", "len"}},
		{"seq len not a number", []string{"seq", "len", "long"}},
		{"seq play argument", []string{"seq", "play", "now"}},
		{"render bad var", []string{"render", "x", "-var", "novalue"}},
		{"render bad vars json", []string{"render", "x", "-vars", "{"}},
		{"cfg argument", []string{"cfg", "all"}},
		{"ws missing message", []string{"ws"}},
		{"ws not an object", []string{"ws", "[1,2]"}},
		{"unknown flag", []string{"brightness", "-loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCommand(tt.args[0], tt.args[1:], strings.NewReader(""), io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseCommandUnknownIsTyped(t *testing.T) {
	_, err := parseCommand("dance", nil, strings.NewReader(""), io.Discard)
	assert.True(t, errors.Is(err, errUnknownCommand))
}

func TestParseCommandHelp(t *testing.T) {
	_, err := parseCommand("brightness", []string{"-h"}, strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestParseRenderSources(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		req, err := parseCommand("render", []string{"hsv(index/pixelCount,", "1,", "1)"}, strings.NewReader(""), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, policy.OpPatternRender, req.Op)
		assert.Equal(t, "hsv(index/pixelCount, 1, 1)", req.Source)
		assert.Nil(t, req.Vars)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pattern.js")
		code := "export function render(index) { rgb(1, 0, 0) }"
		require.NoError(t, os.WriteFile(path, []byte(code), 0644))

		req, err := parseCommand("render", []string{path}, strings.NewReader(""), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, code, req.Source)
	})

	t.Run("stdin", func(t *testing.T) {
		req, err := parseCommand("render", nil, strings.NewReader("rgb(0, 0, 1)"), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "rgb(0, 0, 1)", req.Source)
	})
}

func TestParseRenderVars(t *testing.T) {
	req, err := parseCommand("render", []string{
		"rgb(1,1,1)",
		"-vars", "{speed: 1, mode: 'calm'}",
		"-var", "speed:2.5",
		"-var", "label:hello world",
	}, strings.NewReader(""), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"speed": 2.5,
		"mode":  "calm",
		"label": "hello world",
	}, req.Vars)
}

func TestParseVarsCommand(t *testing.T) {
	req, err := parseCommand("vars", []string{"-var", "hue:0.3"}, strings.NewReader(""), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, policy.OpPatternVariables, req.Op)
	assert.Equal(t, map[string]any{"hue": 0.3}, req.Vars)
}
