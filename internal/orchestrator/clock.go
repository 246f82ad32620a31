package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Clock is the time source for timestamps and waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// IDGenerator produces session ids and per-read business serials.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// UUIDs generates random UUIDv4 strings.
var UUIDs IDGenerator = IDFunc(uuid.NewString)
