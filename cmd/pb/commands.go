package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/pixelblaze-tools/pb-go/pkg/session"
	"github.com/titanous/json5"
)

// errUnknownCommand is returned for a command name parseCommand does not know.
var errUnknownCommand = errors.New("unknown command")

// commandSet is one command's flags plus the shared -no-save flag.
type commandSet struct {
	fs     *flag.FlagSet
	noSave *bool
}

func newCommandSet(name, synopsis string, stderr io.Writer) *commandSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  pb %s\n\nFlags:\n", synopsis)
		fs.PrintDefaults()
	}
	return &commandSet{
		fs:     fs,
		noSave: fs.Bool("no-save", false, "Do not persist the change to flash"),
	}
}

// parse accepts flags anywhere among the positional arguments.
func (c *commandSet) parse(args []string) ([]string, error) {
	var positional []string
	for {
		if err := c.fs.Parse(args); err != nil {
			return nil, err
		}
		args = c.fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *commandSet) save() bool {
	return !*c.noSave
}

// varList collects repeated -var key:value flags.
type varList map[string]any

func (v varList) String() string {
	return fmt.Sprint(map[string]any(v))
}

func (v varList) Set(s string) error {
	key, value, ok := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key:value, got %q", s)
	}
	value = strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		v[key] = f
	} else {
		v[key] = value
	}
	return nil
}

// parseCommand turns a command line into a session request. Errors are
// usage errors; flag.ErrHelp means help was printed.
func parseCommand(name string, args []string, stdin io.Reader, stderr io.Writer) (session.Request, error) {
	switch name {
	case "ping":
		return parsePing(args, stderr)
	case "brightness":
		return parseBrightness(args, stderr)
	case "pixels":
		return parsePixels(args, stderr)
	case "on":
		return parseOn(args, stderr)
	case "off":
		return parseOff(args, stderr)
	case "seq":
		return parseSeq(args, stderr)
	case "render":
		return parseRender(args, stdin, stderr)
	case "vars":
		return parseVars(args, stderr)
	case "pattern":
		return parsePattern(args, stderr)
	case "cfg":
		return parseCfg(args, stderr)
	case "ws":
		return parseWS(args, stderr)
	default:
		return session.Request{}, fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
}

func parsePing(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("ping", "ping [-c N]", stderr)
	count := c.fs.Int("c", 5, "Number of pings to send")
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) > 0 {
		return session.Request{}, fmt.Errorf("ping takes no arguments")
	}
	return session.Request{Op: policy.OpPing, PingCount: *count}, nil
}

func parseBrightness(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("brightness", "brightness [LEVEL] [-no-save]", stderr)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	switch len(pos) {
	case 0:
		return session.Request{Op: policy.OpBrightnessGet}, nil
	case 1:
		level, err := strconv.ParseFloat(pos[0], 64)
		if err != nil {
			return session.Request{}, fmt.Errorf("invalid brightness %q", pos[0])
		}
		return session.Request{Op: policy.OpBrightnessSet, Brightness: level, Save: c.save()}, nil
	default:
		return session.Request{}, fmt.Errorf("brightness takes at most one argument")
	}
}

func parsePixels(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("pixels", "pixels [COUNT] [-no-save]", stderr)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	switch len(pos) {
	case 0:
		return session.Request{Op: policy.OpPixelCountGet}, nil
	case 1:
		n, err := strconv.Atoi(pos[0])
		if err != nil {
			return session.Request{}, fmt.Errorf("invalid pixel count %q", pos[0])
		}
		return session.Request{Op: policy.OpPixelCountSet, PixelCount: n, Save: c.save()}, nil
	default:
		return session.Request{}, fmt.Errorf("pixels takes at most one argument")
	}
}

func parseOn(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("on", "on [LEVEL] [-play-sequencer] [-no-save]", stderr)
	play := c.fs.Bool("play-sequencer", false, "Start the sequencer after turning on")
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	req := session.Request{Op: policy.OpPowerOn, Brightness: 1, PlaySequencer: *play, Save: c.save()}
	switch len(pos) {
	case 0:
	case 1:
		level, err := strconv.ParseFloat(pos[0], 64)
		if err != nil {
			return session.Request{}, fmt.Errorf("invalid brightness %q", pos[0])
		}
		req.Brightness = level
	default:
		return session.Request{}, fmt.Errorf("on takes at most one argument")
	}
	return req, nil
}

func parseOff(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("off", "off [-pause-sequencer] [-no-save]", stderr)
	pause := c.fs.Bool("pause-sequencer", false, "Pause the sequencer after turning off")
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) > 0 {
		return session.Request{}, fmt.Errorf("off takes no arguments")
	}
	return session.Request{Op: policy.OpPowerOff, PauseSequencer: *pause, Save: c.save()}, nil
}

func parseSeq(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("seq", "seq play|pause|next|random|len SECONDS [-no-save]", stderr)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) == 0 {
		return session.Request{}, fmt.Errorf("seq needs a subcommand: play, pause, next, random, or len")
	}

	req := session.Request{Save: c.save()}
	sub, rest := pos[0], pos[1:]
	switch sub {
	case "play":
		req.Op = policy.OpSequencerPlay
	case "pause":
		req.Op = policy.OpSequencerPause
	case "next":
		req.Op = policy.OpSequencerNext
	case "random":
		req.Op = policy.OpSequencerRandom
	case "len":
		if len(rest) != 1 {
			return session.Request{}, fmt.Errorf("seq len needs SECONDS")
		}
		secs, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return session.Request{}, fmt.Errorf("invalid duration %q", rest[0])
		}
		req.Op = policy.OpSequencerDuration
		req.Duration = time.Duration(secs * float64(time.Second))
		return req, nil
	default:
		return session.Request{}, fmt.Errorf("unknown seq subcommand %q", sub)
	}
	if len(rest) > 0 {
		return session.Request{}, fmt.Errorf("seq %s takes no arguments", sub)
	}
	return req, nil
}

// addVarFlags registers -var and -vars on c.
func addVarFlags(c *commandSet) (varList, *string) {
	vars := varList{}
	c.fs.Var(vars, "var", "Pattern variable key:value (repeatable)")
	raw := c.fs.String("vars", "", "Pattern variables as a JSON5 object")
	return vars, raw
}

// mergeVars combines the -vars object with -var flags, the flags winning.
func mergeVars(vars varList, raw string) (map[string]any, error) {
	merged := make(map[string]any)
	if raw != "" {
		if err := json5.Unmarshal([]byte(raw), &merged); err != nil {
			return nil, fmt.Errorf("invalid -vars object: %v", err)
		}
	}
	for k, v := range vars {
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

func parseRender(args []string, stdin io.Reader, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("render", "render [CODE|FILE] [-var key:value ...] [-vars JSON]", stderr)
	vars, raw := addVarFlags(c)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}

	source, err := renderSource(pos, stdin)
	if err != nil {
		return session.Request{}, err
	}
	merged, err := mergeVars(vars, *raw)
	if err != nil {
		return session.Request{}, err
	}
	return session.Request{Op: policy.OpPatternRender, Source: source, Vars: merged}, nil
}

// renderSource reads pattern code from a file argument, inline arguments,
// or stdin when there are none.
func renderSource(pos []string, stdin io.Reader) (string, error) {
	if len(pos) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read pattern from stdin: %w", err)
		}
		return string(data), nil
	}
	if len(pos) == 1 {
		if info, err := os.Stat(pos[0]); err == nil && info.Mode().IsRegular() {
			data, err := os.ReadFile(pos[0])
			if err != nil {
				return "", fmt.Errorf("read pattern file: %w", err)
			}
			return string(data), nil
		}
	}
	return strings.Join(pos, " "), nil
}

func parseVars(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("vars", "vars [-var key:value ...] [-vars JSON]", stderr)
	vars, raw := addVarFlags(c)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) > 0 {
		return session.Request{}, fmt.Errorf("vars takes no arguments")
	}
	merged, err := mergeVars(vars, *raw)
	if err != nil {
		return session.Request{}, err
	}
	return session.Request{Op: policy.OpPatternVariables, Vars: merged}, nil
}

func parsePattern(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("pattern", "pattern SEARCH [-exact] [-no-save]", stderr)
	exact := c.fs.Bool("exact", false, "Match the whole name instead of a regular expression")
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	return session.Request{
		Op:     policy.OpPatternSelect,
		Search: strings.Join(pos, " "),
		Exact:  *exact,
		Save:   c.save(),
	}, nil
}

func parseCfg(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("cfg", "cfg", stderr)
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) > 0 {
		return session.Request{}, fmt.Errorf("cfg takes no arguments")
	}
	return session.Request{Op: policy.OpConfigDump}, nil
}

func parseWS(args []string, stderr io.Writer) (session.Request, error) {
	c := newCommandSet("ws", "ws JSON [-expect KEY]", stderr)
	expect := c.fs.String("expect", "", "Wait for a reply containing this key")
	pos, err := c.parse(args)
	if err != nil {
		return session.Request{}, err
	}
	if len(pos) == 0 {
		return session.Request{}, fmt.Errorf("ws needs a JSON message")
	}

	var msg map[string]any
	if err := json5.Unmarshal([]byte(strings.Join(pos, " ")), &msg); err != nil {
		return session.Request{}, fmt.Errorf("message must be a JSON5 object: %v", err)
	}
	req := session.Request{Op: policy.OpRawSend, Raw: msg}
	if *expect != "" {
		req.Op = policy.OpRawRequest
		req.Expect = *expect
	}
	return req, nil
}
