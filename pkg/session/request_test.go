package session

import (
	"testing"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	valid := []Request{
		{Op: policy.OpPing, PingCount: 1},
		{Op: policy.OpBrightnessGet},
		{Op: policy.OpBrightnessSet, Brightness: 0},
		{Op: policy.OpBrightnessSet, Brightness: 1},
		{Op: policy.OpPowerOn, Brightness: 0.5},
		{Op: policy.OpPowerOff},
		{Op: policy.OpPixelCountSet, PixelCount: 1},
		{Op: policy.OpPixelCountSet, PixelCount: MaxPixelCount},
		{Op: policy.OpSequencerDuration, Duration: 1500 * time.Millisecond},
		{Op: policy.OpPatternRender, Source: "hsv(0,1,1)"},
		{Op: policy.OpPatternSelect, Search: "sound.*react"},
		{Op: policy.OpPatternSelect, Search: "(", Exact: true},
		{Op: policy.OpRawRequest, Raw: map[string]any{"ping": true}, Expect: "ack"},
	}
	for _, req := range valid {
		assert.NoError(t, req.Validate(), "%s %+v", req.Op, req)
	}

	invalid := []Request{
		{Op: policy.OpPing, PingCount: 0},
		{Op: policy.OpBrightnessSet, Brightness: 1.01},
		{Op: policy.OpPixelCountSet, PixelCount: MaxPixelCount + 1},
		{Op: policy.OpSequencerDuration, Duration: -time.Second},
		{Op: policy.OpPatternVariables},
		{Op: policy.OpPatternSelect},
		{Op: policy.OpPatternSelect, Search: "[a-"},
		{Op: 0},
	}
	for _, req := range invalid {
		err := req.Validate()
		assert.ErrorIs(t, err, ErrInvalidInput, "%s %+v", req.Op, req)
	}
}

func TestRenderSource(t *testing.T) {
	assert.Equal(t, "export function render(index) { hsv(0, 1, 1) ; }", RenderSource("hsv(0, 1, 1)"))

	full := "export function render(index) { rgb(1, 0, 0) }"
	assert.Equal(t, full, RenderSource(full))
}

func TestMatchPattern(t *testing.T) {
	patterns := map[string]string{
		"a": "Sound - spectrum react",
		"b": "Rainbow melt",
		"c": "rainbow fonts",
		"d": "Glitter",
	}

	id, name, err := MatchPattern(patterns, "rainbow", false)
	require.NoError(t, err)
	assert.Equal(t, "b", id, "first match in name order")
	assert.Equal(t, "Rainbow melt", name)

	id, _, err = MatchPattern(patterns, "sound.*react", false)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	id, _, err = MatchPattern(patterns, "GLITTER", true)
	require.NoError(t, err)
	assert.Equal(t, "d", id)

	_, _, err = MatchPattern(patterns, "glit", true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = MatchPattern(patterns, "(", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPingStats(t *testing.T) {
	var p PingStats
	p.Sent = 4
	p.add(10 * time.Millisecond)
	p.add(20 * time.Millisecond)
	p.add(30 * time.Millisecond)

	assert.Equal(t, 3, p.Received)
	assert.Equal(t, 1, p.Lost())
	assert.Equal(t, 25, p.LossPercent())
	assert.Equal(t, 10*time.Millisecond, p.Min)
	assert.Equal(t, 30*time.Millisecond, p.Max)
	assert.Equal(t, 20*time.Millisecond, p.Avg)

	p = PingStats{Sent: 3, Received: 1}
	assert.Equal(t, 66, p.LossPercent(), "loss rounds down")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.IsAuto())
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, policy.DefaultSettleDelay, cfg.SettleDelay)
	assert.True(t, cfg.Verify)

	cfg.Target = "10.0.0.1"
	assert.False(t, cfg.IsAuto())
}
