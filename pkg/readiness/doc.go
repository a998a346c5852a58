// Package readiness enforces the wait that follows a device write.
//
// Two waits exist. AwaitAcknowledged runs an acknowledged exchange (a ping, or
// a write the device answers with an ack) and returns as soon as the device
// responds, the connection drops, or the timeout elapses. Settle blocks for a
// fixed delay without sending anything; it follows writes the device never
// acknowledges.
//
// When verification is disabled, Settle returns immediately. Acknowledged
// waits are never skipped: without them the caller would not learn whether the
// command was accepted at all.
//
// A timed-out wait is a warning (the write may still have applied); a lost
// connection is a hard failure; an external cancellation aborts the wait.
package readiness
