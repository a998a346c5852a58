// Package device is the connection handle for one Pixelblaze.
//
// A Conn wraps a single WebSocket connection. A background reader decodes
// incoming frames into an inbox, dropping the periodic status broadcasts,
// and reports connection loss. Each request method writes one message and,
// when the device answers that message, waits for the matching reply. The
// methods do not serialize callers against each other; a Conn is meant to
// be driven by one goroutine issuing one request at a time.
//
// Every frame in both directions is reported to the configured protocol
// logger (see package log).
package device
