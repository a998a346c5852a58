// Package wire defines the Pixelblaze WebSocket message format.
//
// The device speaks two kinds of frames on ws://<addr>:81/:
//
//   - Text frames carry one JSON object. Requests are objects with a single
//     command key ({"ping":true}, {"getConfig":true}); responses are
//     identified by the keys they contain ({"ack":1}, {"pixelCount":...}).
//   - Binary frames carry [type][flags][payload]. Large payloads are split
//     into several frames; flags mark the first, middle and last frame of a
//     sequence (a single-frame payload has both first and last set).
//
// The device also pushes unsolicited status messages (frame rate, memory,
// VM errors) about once a second. IsStats identifies them so readers can
// skip them.
package wire
