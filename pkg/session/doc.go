// Package session runs one controller command against one device.
//
// An Orchestrator takes a Request through a fixed sequence:
//
//	Resolve -> Connect -> Classify -> Execute -> [Wait] -> [Verify] -> Report
//
// Resolve turns the configured target into an address (trying the cached
// address, the ad-hoc address and network discovery for "auto"). Connect
// opens a Device. Classify looks up the operation's rule in package policy.
// Execute and Wait issue the operation and wait according to the rule:
// acknowledged writes wait for the device's ack, fire-and-forget writes wait
// a fixed settle delay. Verify reads written values back and retries a
// mismatching write once.
//
// At most one message is outstanding at any time: a message, including a
// verification read, is only sent after the previous wait has resolved.
//
// Every outcome is folded into a Result with one of three statuses. Device
// and transport errors never escape raw; they are translated to the sentinel
// errors of this package.
package session
