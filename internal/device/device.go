// Package device defines the boundary to a contactless card reader.
//
// A Device starts one read at a time and reports the result later through a
// Sink, from whatever goroutine the driver happens to use. Nothing here retries;
// sequencing attempts is the orchestrator's job.
package device

import (
	"errors"
	"time"
)

// ErrDeviceBusy is returned by TriggerRead while a previous read is in flight.
var ErrDeviceBusy = errors.New("device: read already in flight")

// Tag identifies the kind of result a callback carries.
type Tag string

const (
	TagSuccess   Tag = "success"
	TagError     Tag = "error"
	TagCancelled Tag = "cancelled"
)

// Reader result codes carried in Callback.Code. How each one is treated is
// decided by the orchestrator's classification table, not here.
const (
	CodeOK              = 0
	CodeAuthRejected    = 2
	CodeOpenFailed      = 41
	CodeOpenFailedNoTag = 42
	CodeOpenFailedRetry = 43
	CodeReadTimeout     = 31
	CodeTagLost         = 32
	CodeDecodeServer    = 33
	CodeNotIdentityCard = 51
	CodeCancelledByHost = 90
)

// ReadRequest asks the device for one read.
type ReadRequest struct {
	SessionID string
	Attempt   int
	// Serial is a fresh business serial handed to the vendor SDK for each read.
	Serial string
}

// Callback is the out-of-band result for one triggered read.
type Callback struct {
	SessionID string
	Attempt   int
	Tag       Tag
	Payload   []byte
	Code      int
	Message   string
	At        time.Time
}

// Sink receives callbacks. Implementations must be safe for concurrent use.
type Sink func(Callback)

// Device is the contract the orchestrator drives.
type Device interface {
	// TriggerRead starts a read. It returns ErrDeviceBusy if one is in flight.
	TriggerRead(req ReadRequest) error
	// Cancel asks the device to stop the read for sessionID. Best effort: the
	// result of the in-flight read may still be delivered afterwards.
	Cancel(sessionID string)
	// DeviceID is a stable identifier for diagnostics.
	DeviceID() string
}
