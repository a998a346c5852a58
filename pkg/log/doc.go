// Package log provides protocol capture for pb.
//
// This package defines the Logger interface and Event types for recording
// what crosses a device connection: raw WebSocket frames, decoded JSON
// messages, connection state changes and errors. It is separate from
// operational logging (slog); protocol capture is a machine-readable trace
// for debugging a device that stops responding.
//
// # Basic Usage
//
//	// Console, via slog at debug level
//	opts.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// File, CBOR encoded
//	opts.ProtocolLogger, _ = log.NewFileLogger("session.pblog")
//
//	// Both
//	opts.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Capture files are a concatenation of CBOR-encoded events with integer keys.
// The pb-log tool views, exports and summarizes them.
package log
