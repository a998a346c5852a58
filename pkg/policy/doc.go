// Package policy classifies pb operations by how the device acknowledges them.
//
// Every operation the command surface can issue has exactly one Rule in a
// static table. The rule decides what the session does after the operation's
// write:
//
//   - Acknowledged: the device answers with an "ack"-tagged message. The
//     session blocks until the ack arrives, the connection drops, or the
//     configured timeout expires.
//   - FireAndForget: the device never answers. The session waits a fixed
//     settle delay before issuing the next message and never sends an extra
//     probe, because a second message arriving while the device still drains
//     the first can overflow its receive buffer.
//   - IdempotentRead: a side-effect-free read that may be issued standalone.
//
// # Keeping the table honest
//
// Marking an operation Acknowledged when the device never sends an ack makes
// every invocation of it hang until the timeout. Marking it FireAndForget when
// the device does ack is harmless but slow. The table must follow the device
// firmware, not convenience.
//
// Classify panics for operations missing from the table. That only happens
// when the command surface grows without the table being updated.
package policy
