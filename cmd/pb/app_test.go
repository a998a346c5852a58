package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pixelblaze-tools/pb-go/internal/devicesim"
	pblog "github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/persistence"
	"github.com/pixelblaze-tools/pb-go/pkg/report"
	"github.com/pixelblaze-tools/pb-go/pkg/session"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t        *testing.T
	sim      *devicesim.Sim
	config   string
	stateDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	sim := devicesim.Start(devicesim.DefaultConfig())
	t.Cleanup(sim.Close)
	return &cli{t: t, sim: sim, config: writeConfig(t, ""), stateDir: t.TempDir()}
}

// pb runs the command line against the simulator and returns the exit
// code, stdout and stderr.
func (c *cli) pb(args ...string) (int, string, string) {
	c.t.Helper()
	globals := []string{"-config", c.config, "-state-dir", c.stateDir, "-ip", c.sim.Addr()}
	var out, errOut bytes.Buffer
	code := run(context.Background(), append(globals, args...), strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCLIBrightnessSetAndGet(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.pb("brightness", "0.5")
	assert.Equal(t, report.ExitSuccess, code, errOut)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Brightness saved to 0.5")
	assert.Equal(t, 0.5, c.sim.State().Brightness)

	code, out, _ = c.pb("brightness")
	assert.Equal(t, report.ExitSuccess, code)
	assert.Equal(t, "0.5\n", out)
}

func TestCLIRemembersExplicitAddress(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.pb("pixels")
	require.Equal(t, report.ExitSuccess, code, errOut)

	state, err := persistence.NewAddressStoreInDir(c.stateDir).Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, c.sim.Addr(), state.LastAddress)
	assert.Equal(t, session.SourceExplicit, state.Source)
}

func TestCLIPixelsAndPlaylist(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.pb("pixels", "300", "-no-save")
	require.Equal(t, report.ExitSuccess, code, errOut)
	assert.Contains(t, errOut, "Pixel count set to 300")
	assert.Equal(t, 300, c.sim.State().PixelCount)

	code, _, errOut = c.pb("seq", "len", "10")
	require.Equal(t, report.ExitSuccess, code, errOut)
	items := c.sim.State().Playlist.Items
	require.NotEmpty(t, items)
	for _, item := range items {
		assert.Equal(t, 10000, item.MS)
	}
}

func TestCLIConfigDump(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.pb("cfg")
	require.Equal(t, report.ExitSuccess, code, errOut)

	var dump map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	assert.Contains(t, dump, "config")
	assert.Contains(t, dump, "sequencer")
	assert.Contains(t, dump, "patterns")
	assert.Contains(t, dump, "playlist")
}

func TestCLIProtocolCapture(t *testing.T) {
	c := newCLI(t)
	capture := filepath.Join(t.TempDir(), "session.pblog")

	code, _, errOut := c.pb("-protocol-log", capture, "pixels", "120")
	require.Equal(t, report.ExitSuccess, code, errOut)

	r, err := pblog.NewReader(capture)
	require.NoError(t, err)
	defer r.Close()

	var sentPixelCount bool
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if e.Message != nil && e.Direction == pblog.DirectionOut {
			for _, k := range e.Message.Keys {
				if k == wire.KeyPixelCount {
					sentPixelCount = true
				}
			}
		}
	}
	assert.True(t, sentPixelCount)
}

func TestCLIRawMessagePrintsReply(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.pb("ws", "{getConfig: true}")
	assert.Equal(t, report.ExitSuccess, code, errOut)
	assert.Contains(t, out, `"pixelCount":100`)
	assert.Equal(t, 1, c.sim.Count(wire.KeyGetConfig))
}

func TestCLIUsageErrors(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{"out of range brightness", []string{"brightness", "2"}},
		{"unknown command", []string{"dance"}},
		{"bad argument", []string{"pixels", "many"}},
		{"render without compiler", []string{"render", "rgb(1,0,0)"}},
		{"empty pattern search", []string{"pattern"}},
		{"nan timeout", []string{"-timeout", "NaN", "ping"}},
		{"huge timeout", []string{"-timeout", "1e300", "ping"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := c.pb(tt.args...)
			assert.Equal(t, report.ExitUsage, code)
			assert.Empty(t, out)
			assert.Contains(t, errOut, "error:")
		})
	}
	assert.Empty(t, c.sim.Received(), "usage errors must not reach the device")
}

func TestCLINoCommand(t *testing.T) {
	var errOut bytes.Buffer
	code := run(context.Background(), []string{"-config", writeConfig(t, "")}, strings.NewReader(""), io.Discard, &errOut)
	assert.Equal(t, report.ExitUsage, code)
	assert.Contains(t, errOut.String(), "Commands:")
}

func TestCLIHelp(t *testing.T) {
	code := run(context.Background(), []string{"-h"}, strings.NewReader(""), io.Discard, io.Discard)
	assert.Equal(t, report.ExitSuccess, code)

	code = run(context.Background(), []string{"-config", writeConfig(t, ""), "ping", "-h"}, strings.NewReader(""), io.Discard, io.Discard)
	assert.Equal(t, report.ExitSuccess, code)
}

func TestCLIConnectionFailure(t *testing.T) {
	sim := devicesim.Start(devicesim.DefaultConfig())
	addr := sim.Addr()
	sim.Close()

	var errOut bytes.Buffer
	code := run(context.Background(), []string{
		"-config", writeConfig(t, ""),
		"-state-dir", t.TempDir(),
		"-ip", addr,
		"-timeout", "1",
		"pixels",
	}, strings.NewReader(""), io.Discard, &errOut)
	assert.Equal(t, report.ExitFailure, code)
	assert.Contains(t, errOut.String(), "error:")
}

func TestCLICustomDeps(t *testing.T) {
	var built int
	deps := func(opts options, rep *report.Reporter, stderr io.Writer) (session.Deps, func(), error) {
		built++
		return session.Deps{}, func() {}, assert.AnError
	}

	var errOut bytes.Buffer
	code := runWith(context.Background(), []string{"-config", writeConfig(t, ""), "cfg"}, strings.NewReader(""), io.Discard, &errOut, deps)
	assert.Equal(t, report.ExitFailure, code)
	assert.Equal(t, 1, built)
	assert.Contains(t, errOut.String(), assert.AnError.Error())
}
