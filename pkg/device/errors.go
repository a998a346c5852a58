package device

import "errors"

// Connection errors.
var (
	// ErrConnectionLost means the WebSocket failed while in use.
	ErrConnectionLost = errors.New("connection lost")

	// ErrClosed means the Conn was closed by its owner.
	ErrClosed = errors.New("connection closed")

	// ErrDialFailed means the WebSocket could not be opened.
	ErrDialFailed = errors.New("dial failed")
)

// Pattern errors.
var (
	ErrNoCompiler    = errors.New("no pattern compiler configured")
	ErrCompileFailed = errors.New("pattern compilation failed")
)
