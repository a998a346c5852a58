package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/pixelblaze-tools/pb-go/pkg/device"
	"github.com/pixelblaze-tools/pb-go/pkg/discovery"
	pblog "github.com/pixelblaze-tools/pb-go/pkg/log"
	"github.com/pixelblaze-tools/pb-go/pkg/persistence"
	"github.com/pixelblaze-tools/pb-go/pkg/report"
	"github.com/pixelblaze-tools/pb-go/pkg/session"
)

// depsFunc builds the collaborators for one invocation. The returned
// function releases them.
type depsFunc func(opts options, rep *report.Reporter, stderr io.Writer) (session.Deps, func(), error)

type app struct {
	opts   options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	deps   depsFunc
}

// run is main without the process: it returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return runWith(ctx, args, stdin, stdout, stderr, defaultDeps)
}

func runWith(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, deps depsFunc) int {
	rep := report.New(stdout, stderr)

	opts, rest, err := parseGlobals(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return report.ExitSuccess
	}
	if err != nil {
		return rep.Usage(err)
	}
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return report.ExitUsage
	}

	a := &app{opts: opts, stdin: stdin, stdout: stdout, stderr: stderr, deps: deps}
	if rest[0] == "shell" {
		return a.shell(ctx)
	}
	return a.invoke(ctx, rep, rest[0], rest[1:])
}

// invoke runs one command with a fresh session config.
func (a *app) invoke(ctx context.Context, rep *report.Reporter, name string, args []string) int {
	req, err := parseCommand(name, args, a.stdin, a.stderr)
	if errors.Is(err, flag.ErrHelp) {
		return report.ExitSuccess
	}
	if err != nil {
		return rep.Usage(err)
	}

	deps, release, err := a.deps(a.opts, rep, a.stderr)
	if err != nil {
		rep.Fail(err)
		return report.ExitFailure
	}
	defer release()

	res := session.New(a.opts.sessionConfig(), deps).Run(ctx, req)
	return rep.Finish(res)
}

// defaultDeps wires the real network, cache and capture collaborators.
func defaultDeps(opts options, rep *report.Reporter, stderr io.Writer) (session.Deps, func(), error) {
	logger := newLogger(opts.LogLevel, stderr)

	release := func() {}
	loggers := []pblog.Logger{pblog.NewSlogAdapter(logger)}
	if opts.ProtocolLog != "" {
		fl, err := pblog.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return session.Deps{}, nil, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		release = func() { _ = fl.Close() }
	}
	plog := pblog.NewMultiLogger(loggers...)

	var compiler device.Compiler
	if opts.Compiler != "" {
		compiler = device.ExecCompiler{Path: opts.Compiler}
	}

	finders := []discovery.Finder{
		discovery.BeaconListener{},
		discovery.NewMDNSBrowser(discovery.BrowserConfig{}),
	}

	return session.Deps{
		Dialer: session.DeviceDialer(device.Options{
			ProtocolLogger: plog,
			Compiler:       compiler,
			Logger:         logger,
		}),
		Discoverer:     discovery.NewChain(finders, discovery.WithLogger(logger)),
		Prober:         discovery.TCPProber{},
		Cache:          persistence.NewAddressStoreInDir(opts.StateDir),
		CanCompile:     compiler != nil,
		Progress:       rep,
		Logger:         logger,
		ProtocolLogger: plog,
	}, release, nil
}
