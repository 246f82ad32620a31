// Package orchestrator sequences repeated reads against a device.
//
// Ownership boundary:
// - attempt sequencing and the repeat policy
//
// - callback routing and stale-callback rejection
//
// - cooperative cancellation
//
// Each session runs on its own sequencer goroutine. Device callbacks, delay
// expiry and snapshot requests reach it through the session mailbox; nothing
// else mutates session state. No lock is held across a device call.
package orchestrator
