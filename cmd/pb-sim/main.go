// Command pb-sim runs a simulated Pixelblaze on the local network.
//
// The simulator serves the device WebSocket API, broadcasts discovery
// beacons, advertises itself over mDNS and exposes Prometheus metrics.
//
// Usage:
//
//	pb-sim [flags]
//
// Example:
//
//	pb-sim -addr :8181 -latency 12ms &
//	pb -ip 127.0.0.1:8181 ping -c 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pixelblaze-tools/pb-go/internal/devicesim"
	"github.com/pixelblaze-tools/pb-go/pkg/discovery"
)

type config struct {
	Addr          string
	Name          string
	PixelCount    int
	Brightness    float64
	MaxBrightness float64
	Latency       time.Duration
	Beacon        string
	BeaconEvery   time.Duration
	MDNS          bool
	LogLevel      string
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("pb-sim", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "pb-sim - simulated Pixelblaze\n\nUsage:\n  pb-sim [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.Addr, "addr", ":81", "HTTP listen address for the WebSocket API and /metrics")
	fs.StringVar(&cfg.Name, "name", "sim", "Device name")
	fs.IntVar(&cfg.PixelCount, "pixels", 100, "Initial pixel count")
	fs.Float64Var(&cfg.Brightness, "brightness", 1, "Initial brightness")
	fs.Float64Var(&cfg.MaxBrightness, "max-brightness", 0, "Clamp stored brightness (0 disables)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Delay before every reply")
	fs.StringVar(&cfg.Beacon, "beacon", "255.255.255.255:"+strconv.Itoa(discovery.BeaconPort), "Beacon target (empty disables)")
	fs.DurationVar(&cfg.BeaconEvery, "beacon-interval", time.Second, "Time between beacons")
	fs.BoolVar(&cfg.MDNS, "mdns", true, "Advertise over mDNS")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return cfg, nil
}

func (c config) simConfig(logger *slog.Logger, onMessage func(string)) devicesim.Config {
	sc := devicesim.DefaultConfig()
	sc.Name = c.Name
	sc.PixelCount = c.PixelCount
	sc.Brightness = c.Brightness
	sc.MaxBrightness = c.MaxBrightness
	sc.Latency = c.Latency
	sc.OnMessage = onMessage
	sc.Logger = logger
	return sc
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// newMux serves the device API at / and metrics at /metrics.
func newMux(sim *devicesim.Sim, m *metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler())
	mux.Handle("/", sim)
	return mux
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, newLogger(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config, logger *slog.Logger) error {
	m := newMetrics()
	sim := devicesim.New(cfg.simConfig(logger, m.observe))
	m.watch(sim)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	server := &http.Server{Handler: newMux(sim, m), ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()
	logger.Info("simulator listening", "addr", ln.Addr().String(), "name", cfg.Name)

	if cfg.Beacon != "" {
		sender := discovery.BeaconSender{Target: cfg.Beacon, SenderID: uint32(port), Interval: cfg.BeaconEvery}
		go func() {
			if err := sender.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("beacon sender stopped", "error", err)
			}
		}()
	}

	if cfg.MDNS {
		adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		if err := adv.Advertise(cfg.Name, port, []string{"ws=/"}); err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Stop()
			logger.Info("advertising", "instance", discovery.InstanceName(cfg.Name))
		}
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
