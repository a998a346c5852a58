package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/session"
	"gopkg.in/yaml.v3"
)

// configDirName is the directory under the user config dir holding the
// defaults file and the address cache.
const configDirName = "pixelblaze"

// maxTimeoutSeconds is the largest timeout a time.Duration holds.
const maxTimeoutSeconds = float64(math.MaxInt64) / float64(time.Second)

// options are the global flags after merging the defaults file.
type options struct {
	IP          string
	Timeout     float64
	NoVerify    bool
	SettleDelay time.Duration
	ConfigPath  string
	StateDir    string
	ProtocolLog string
	Compiler    string
	LogLevel    string
}

// fileConfig is the YAML defaults file. Unset keys keep the flag defaults.
type fileConfig struct {
	IP          string   `yaml:"ip"`
	Timeout     *float64 `yaml:"timeout"`
	SettleDelay string   `yaml:"settle_delay"`
	Verify      *bool    `yaml:"verify"`
	ProtocolLog string   `yaml:"protocol_log"`
	Compiler    string   `yaml:"compiler"`
	LogLevel    string   `yaml:"log_level"`
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(dir, configDirName)
}

// loadConfig reads the defaults file. A missing file is only an error when
// the path was given explicitly.
func loadConfig(path string, explicit bool) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return &fileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// parseGlobals parses the flags before the command name. Values from the
// defaults file apply to every flag not given on the command line.
func parseGlobals(args []string, stderr io.Writer) (options, []string, error) {
	dir := defaultConfigDir()
	defaults := session.DefaultConfig()

	var opts options
	fs := flag.NewFlagSet("pb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.IP, "ip", session.AutoTarget, `Device address or "auto"`)
	fs.Float64Var(&opts.Timeout, "timeout", defaults.Timeout.Seconds(), "Command timeout in seconds")
	fs.BoolVar(&opts.NoVerify, "no-verify", false, "Skip settle delays and read-back verification")
	fs.DurationVar(&opts.SettleDelay, "settle-delay", defaults.SettleDelay, "Settle delay after fire-and-forget writes")
	fs.StringVar(&opts.ConfigPath, "config", filepath.Join(dir, "config.yaml"), "YAML defaults file")
	fs.StringVar(&opts.StateDir, "state-dir", dir, "Directory for the address cache")
	fs.StringVar(&opts.ProtocolLog, "protocol-log", "", "Append a protocol capture to this file")
	fs.StringVar(&opts.Compiler, "compiler", "", "External pattern compiler executable")
	fs.StringVar(&opts.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	fc, err := loadConfig(opts.ConfigPath, set["config"])
	if err != nil {
		return opts, nil, err
	}
	if err := opts.merge(fc, set); err != nil {
		return opts, nil, err
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return opts, nil, err
	}
	if math.IsNaN(opts.Timeout) || opts.Timeout < 0 || opts.Timeout >= maxTimeoutSeconds {
		return opts, nil, fmt.Errorf("timeout must be between 0 and %.0f seconds, got %v", maxTimeoutSeconds, opts.Timeout)
	}
	if opts.SettleDelay < 0 {
		return opts, nil, fmt.Errorf("settle delay must not be negative, got %s", opts.SettleDelay)
	}
	return opts, fs.Args(), nil
}

func (o *options) merge(fc *fileConfig, set map[string]bool) error {
	if fc.IP != "" && !set["ip"] {
		o.IP = fc.IP
	}
	if fc.Timeout != nil && !set["timeout"] {
		o.Timeout = *fc.Timeout
	}
	if fc.SettleDelay != "" && !set["settle-delay"] {
		d, err := time.ParseDuration(fc.SettleDelay)
		if err != nil {
			return fmt.Errorf("config settle_delay: %w", err)
		}
		o.SettleDelay = d
	}
	if fc.Verify != nil && !set["no-verify"] {
		o.NoVerify = !*fc.Verify
	}
	if fc.ProtocolLog != "" && !set["protocol-log"] {
		o.ProtocolLog = fc.ProtocolLog
	}
	if fc.Compiler != "" && !set["compiler"] {
		o.Compiler = fc.Compiler
	}
	if fc.LogLevel != "" && !set["log-level"] {
		o.LogLevel = fc.LogLevel
	}
	return nil
}

// sessionConfig builds the immutable per-invocation session config.
func (o options) sessionConfig() session.Config {
	return session.Config{
		Target:      o.IP,
		Timeout:     time.Duration(o.Timeout * float64(time.Second)),
		SettleDelay: o.SettleDelay,
		Verify:      !o.NoVerify,
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	l, err := parseLevel(level)
	if err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

