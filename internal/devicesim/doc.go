// Package devicesim is an in-process Pixelblaze simulator.
//
// It serves the device's WebSocket protocol well enough to exercise the
// controller: pings, settings and sequencer writes, config and playlist
// reads, the program list, variable updates and bytecode upload. Knobs
// inject latency, silence acknowledgments, clamp brightness, ignore writes
// and drop the connection so tests can drive every readiness outcome.
//
// Like the real device it handles one message at a time per connection.
// It also records whether a client sent a new message while an
// acknowledgment was still outstanding.
package devicesim
