package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pixelblaze-tools/pb-go/pkg/device"
	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// execute dispatches the request's operation.
func (r *run) execute(ctx context.Context, rule policy.Rule) (Result, error) {
	switch r.req.Op {
	case policy.OpPing:
		return r.ping(ctx)
	case policy.OpBrightnessGet:
		return r.getBrightness(ctx)
	case policy.OpBrightnessSet:
		return r.setBrightness(ctx)
	case policy.OpPixelCountGet:
		return r.getPixelCount(ctx)
	case policy.OpPixelCountSet:
		return r.setPixelCount(ctx)
	case policy.OpPowerOn:
		return r.powerOn(ctx)
	case policy.OpPowerOff:
		return r.powerOff(ctx)
	case policy.OpSequencerPlay, policy.OpSequencerPause:
		return r.sequencerRun(ctx)
	case policy.OpSequencerNext:
		return r.sequencerNext(ctx)
	case policy.OpSequencerRandom:
		return r.sequencerRandom(ctx)
	case policy.OpSequencerDuration:
		return r.sequencerDuration(ctx)
	case policy.OpPatternRender:
		return r.render(ctx)
	case policy.OpPatternVariables:
		return r.setVars(ctx, rule)
	case policy.OpPatternSelect:
		return r.selectPattern(ctx)
	case policy.OpConfigDump:
		return r.dumpConfig(ctx)
	case policy.OpRawSend, policy.OpRawRequest:
		return r.rawRequest(ctx)
	}
	panic(fmt.Sprintf("session: no handler for %s", r.req.Op))
}

// saved picks the summary verb for a write.
func (r *run) saved(temporary, persisted string) string {
	if r.req.Save {
		return persisted
	}
	return temporary
}

func (r *run) settings(ctx context.Context) (*device.Settings, error) {
	var s *device.Settings
	err := r.read(ctx, "settings", func(ctx context.Context) error {
		var err error
		s, err = r.dev.ReadSettings(ctx)
		return err
	})
	return s, err
}

func (r *run) getBrightness(ctx context.Context) (Result, error) {
	s, err := r.settings(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: s.Brightness}, nil
}

func (r *run) setBrightness(ctx context.Context) (Result, error) {
	level := r.req.Brightness
	r.progressf("Setting brightness to %s...", formatLevel(level))
	if err := r.brightness(ctx, policy.OpBrightnessSet, level); err != nil {
		return Result{}, err
	}
	return Result{Summary: fmt.Sprintf("Brightness %s to %s", r.saved("set", "saved"), formatLevel(level))}, nil
}

func (r *run) getPixelCount(ctx context.Context) (Result, error) {
	s, err := r.settings(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: s.PixelCount}, nil
}

func (r *run) setPixelCount(ctx context.Context) (Result, error) {
	n := r.req.PixelCount
	r.progressf("Setting pixel count to %d...", n)
	if err := r.pixelCount(ctx, n); err != nil {
		return Result{}, err
	}
	return Result{Summary: fmt.Sprintf("Pixel count %s to %d", r.saved("set", "saved"), n)}, nil
}

func (r *run) powerOn(ctx context.Context) (Result, error) {
	level := r.req.Brightness
	r.progressf("Setting brightness to %s...", formatLevel(level))
	if err := r.brightness(ctx, policy.OpPowerOn, level); err != nil {
		return Result{}, err
	}
	if r.req.PlaySequencer {
		r.progressf("Starting sequencer...")
		if err := r.runSequencer(ctx, true); err != nil {
			return Result{}, err
		}
	}
	return Result{Summary: fmt.Sprintf("Pixelblaze %s (brightness: %s)",
		r.saved("turned on", "saved and turned on"), formatLevel(level))}, nil
}

func (r *run) powerOff(ctx context.Context) (Result, error) {
	r.progressf("Setting brightness to 0...")
	if err := r.brightness(ctx, policy.OpPowerOff, 0); err != nil {
		return Result{}, err
	}
	if r.req.PauseSequencer {
		r.progressf("Pausing sequencer...")
		if err := r.runSequencer(ctx, false); err != nil {
			return Result{}, err
		}
	}
	return Result{Summary: "Pixelblaze " + r.saved("turned off", "saved and turned off")}, nil
}

func (r *run) sequencerRun(ctx context.Context) (Result, error) {
	play := r.req.Op == policy.OpSequencerPlay
	if play {
		r.progressf("Starting sequencer...")
	} else {
		r.progressf("Pausing sequencer...")
	}
	if err := r.runSequencer(ctx, play); err != nil {
		return Result{}, err
	}
	if play {
		return Result{Summary: "Sequencer " + r.saved("started", "started and saved")}, nil
	}
	return Result{Summary: "Sequencer " + r.saved("paused", "paused and saved")}, nil
}

func (r *run) sequencerNext(ctx context.Context) (Result, error) {
	r.progressf("Advancing to next pattern...")
	_, err := r.acknowledged(ctx, "next pattern", func(ctx context.Context) error {
		return r.dev.WriteAcknowledged(ctx, map[string]any{
			wire.KeyNextProgram: true,
			wire.KeySave:        r.req.Save,
		})
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Summary: "Advanced to next pattern" + r.saved("", " and saved")}, nil
}

func (r *run) sequencerRandom(ctx context.Context) (Result, error) {
	r.progressf("Getting pattern list...")
	patterns, err := r.patterns(ctx)
	if err != nil {
		return Result{}, err
	}
	ids := sortedIDs(patterns)
	id := ids[r.o.deps.Intn(len(ids))]

	r.progressf("Selecting random pattern: %s", patterns[id])
	if err := r.activate(ctx, id); err != nil {
		return Result{}, err
	}
	return Result{Summary: "Now playing: " + patterns[id]}, nil
}

func (r *run) sequencerDuration(ctx context.Context) (Result, error) {
	ms := int(r.req.Duration.Milliseconds())
	seconds := strconv.FormatFloat(r.req.Duration.Seconds(), 'f', -1, 64)

	r.progressf("Getting current playlist...")
	var pl *device.Playlist
	err := r.read(ctx, "playlist", func(ctx context.Context) error {
		var err error
		pl, err = r.dev.ReadPlaylist(ctx, wire.DefaultPlaylistID)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if len(pl.Items) == 0 {
		return Result{}, fmt.Errorf("%w: playlist is empty", ErrNotFound)
	}

	r.progressf("Setting %d pattern(s) to %s seconds each...", len(pl.Items), seconds)
	updated := playlistWithDuration(pl, ms)
	_, err = r.acknowledged(ctx, "playlist update", func(ctx context.Context) error {
		return r.dev.WriteAcknowledged(ctx, map[string]any{
			wire.KeyPlaylist: updated,
			wire.KeySave:     r.req.Save,
		})
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Summary: fmt.Sprintf("Playlist updated and %s: all patterns set to %ss",
		r.saved("set", "saved"), seconds)}, nil
}

// playlistWithDuration copies pl with every item lasting ms. Fields the
// device sent that the typed playlist does not know are kept.
func playlistWithDuration(pl *device.Playlist, ms int) map[string]any {
	out := make(map[string]any, len(pl.Raw)+2)
	maps.Copy(out, pl.Raw)
	out["id"] = pl.ID

	rawItems, _ := pl.Raw["items"].([]any)
	items := make([]any, 0, len(pl.Items))
	for i, it := range pl.Items {
		item := map[string]any{}
		if i < len(rawItems) {
			if m, ok := rawItems[i].(map[string]any); ok {
				maps.Copy(item, m)
			}
		}
		item["id"] = it.ID
		item["ms"] = ms
		items = append(items, item)
	}
	out["items"] = items
	return out
}

func (r *run) render(ctx context.Context) (Result, error) {
	source := RenderSource(r.req.Source)

	r.progressf("Compiling and sending pattern...")
	ok, err := r.acknowledged(ctx, "pattern upload", func(ctx context.Context) error {
		return r.dev.UploadPattern(ctx, source)
	})
	if err != nil {
		return Result{}, err
	}

	if len(r.req.Vars) > 0 {
		if _, err := r.setVars(ctx, policy.Classify(policy.OpPatternVariables)); err != nil {
			return Result{}, err
		}
	}
	if !ok {
		return Result{Summary: "Pattern sent"}, nil
	}
	return Result{Summary: "Pattern rendered successfully"}, nil
}

func (r *run) setVars(ctx context.Context, rule policy.Rule) (Result, error) {
	r.progressf("Setting variables: %s", formatVars(r.req.Vars))
	if err := r.fireAndForget(ctx, rule, map[string]any{wire.KeySetVars: r.req.Vars}); err != nil {
		return Result{}, err
	}
	return Result{Summary: "Variables set"}, nil
}

func (r *run) selectPattern(ctx context.Context) (Result, error) {
	r.progressf("Fetching pattern list...")
	patterns, err := r.patterns(ctx)
	if err != nil {
		return Result{}, err
	}

	id, name, err := MatchPattern(patterns, r.req.Search, r.req.Exact)
	if err != nil {
		r.progressf("No pattern matching '%s' found.", r.req.Search)
		r.progressf("Available patterns:")
		for _, pid := range sortedIDs(patterns) {
			r.progressf("  - %s", patterns[pid])
		}
		return Result{}, err
	}

	r.progressf("Switching to pattern: %s", name)
	if err := r.activate(ctx, id); err != nil {
		return Result{}, err
	}
	return Result{Summary: fmt.Sprintf("Pattern '%s' %s", name, r.saved("activated", "saved and activated"))}, nil
}

func (r *run) dumpConfig(ctx context.Context) (Result, error) {
	r.progressf("Fetching configurations...")
	s, err := r.settings(ctx)
	if err != nil {
		return Result{}, err
	}

	var seq *device.Sequencer
	err = r.read(ctx, "sequencer", func(ctx context.Context) error {
		var err error
		seq, err = r.dev.ReadSequencer(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	var patterns map[string]string
	err = r.read(ctx, "pattern list", func(ctx context.Context) error {
		var err error
		patterns, err = r.dev.ListPatterns(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	var pl *device.Playlist
	err = r.read(ctx, "playlist", func(ctx context.Context) error {
		var err error
		pl, err = r.dev.ReadPlaylist(ctx, wire.DefaultPlaylistID)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Value: map[string]any{
		"config":    s.Raw,
		"sequencer": seq.Raw,
		"patterns":  patterns,
		"playlist":  map[string]any{wire.KeyPlaylist: pl.Raw},
	}}, nil
}

// rawRequest sends a raw message and prints the first reply carrying the
// expected key, or any reply when no key was named.
func (r *run) rawRequest(ctx context.Context) (Result, error) {
	what := "reply"
	if r.req.Expect != "" {
		what += " " + strconv.Quote(r.req.Expect)
	}
	var reply map[string]any
	ok, err := r.acknowledged(ctx, what, func(ctx context.Context) error {
		var err error
		reply, err = r.dev.Request(ctx, r.req.Raw, r.req.Expect)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if r.req.Expect == "" {
			return Result{Summary: "No response (fire-and-forget command?)"}, nil
		}
		return Result{Summary: "No response"}, nil
	}
	return Result{Summary: "Response:", Value: reply}, nil
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatVars(vars map[string]any) string {
	return strings.Join(slices.Sorted(maps.Keys(vars)), ", ")
}
