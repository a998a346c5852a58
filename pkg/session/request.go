package session

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
)

// MaxPixelCount is the largest pixel count accepted.
const MaxPixelCount = 65535

// Request is one command to run.
type Request struct {
	Op policy.Operation

	// Save persists writes to the device's flash.
	Save bool

	// Brightness is the level for brightness-set and power-on, 0 to 1.
	Brightness float64

	// PixelCount is the count for pixel-count-set.
	PixelCount int

	// Duration is the per-pattern time for sequencer-duration.
	Duration time.Duration

	// Source is the pattern code for pattern-render.
	Source string

	// Vars are pattern variables set after rendering.
	Vars map[string]any

	// PlaySequencer starts the sequencer after power-on.
	PlaySequencer bool

	// PauseSequencer pauses the sequencer after power-off.
	PauseSequencer bool

	// Search selects a pattern by name, as a regular expression unless
	// Exact is set. Matching ignores case.
	Search string
	Exact  bool

	// PingCount is the number of pings to send.
	PingCount int

	// Raw is the message for raw-send and raw-request.
	Raw map[string]any

	// Expect is the reply key raw-request waits for.
	Expect string
}

// Validate checks the request without touching the network. Errors wrap
// ErrInvalidInput.
func (r Request) Validate() error {
	if _, ok := policy.Lookup(r.Op); !ok {
		return invalid("unknown operation %s", r.Op)
	}

	switch r.Op {
	case policy.OpPing:
		if r.PingCount < 1 {
			return invalid("ping count must be at least 1, got %d", r.PingCount)
		}
	case policy.OpBrightnessSet, policy.OpPowerOn:
		if math.IsNaN(r.Brightness) || r.Brightness < 0 || r.Brightness > 1 {
			return invalid("brightness must be between 0.0 and 1.0, got %v", r.Brightness)
		}
	case policy.OpPixelCountSet:
		if r.PixelCount < 1 || r.PixelCount > MaxPixelCount {
			return invalid("pixel count must be between 1 and %d, got %d", MaxPixelCount, r.PixelCount)
		}
	case policy.OpSequencerDuration:
		if r.Duration < time.Millisecond {
			return invalid("duration must be greater than 0")
		}
	case policy.OpPatternRender:
		if strings.TrimSpace(r.Source) == "" {
			return invalid("pattern code is empty")
		}
	case policy.OpPatternVariables:
		if len(r.Vars) == 0 {
			return invalid("no variables given")
		}
	case policy.OpPatternSelect:
		if r.Search == "" {
			return invalid("pattern search is empty")
		}
		if !r.Exact {
			if _, err := compileSearch(r.Search); err != nil {
				return invalid("pattern search %q: %v", r.Search, err)
			}
		}
	case policy.OpRawSend, policy.OpRawRequest:
		if len(r.Raw) == 0 {
			return invalid("message is empty")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// RenderSource returns code ready for the compiler. Code that exports
// nothing is wrapped into a render function.
func RenderSource(code string) string {
	if strings.Contains(code, "export") {
		return code
	}
	return "export function render(index) { " + code + " ; }"
}

func compileSearch(search string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + search)
}

// MatchPattern finds the first pattern whose name matches search.
// Patterns are tried in name order.
func MatchPattern(patterns map[string]string, search string, exact bool) (id, name string, err error) {
	var re *regexp.Regexp
	if !exact {
		if re, err = compileSearch(search); err != nil {
			return "", "", invalid("pattern search %q: %v", search, err)
		}
	}
	for _, pid := range sortedIDs(patterns) {
		n := patterns[pid]
		if exact && strings.EqualFold(n, search) || !exact && re.MatchString(n) {
			return pid, n, nil
		}
	}
	return "", "", fmt.Errorf("%w: pattern %q", ErrNotFound, search)
}

// sortedIDs orders pattern IDs by pattern name, then ID.
func sortedIDs(patterns map[string]string) []string {
	ids := make([]string, 0, len(patterns))
	for id := range patterns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := patterns[ids[i]], patterns[ids[j]]
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}
