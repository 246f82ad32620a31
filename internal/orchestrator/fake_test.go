package orchestrator_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/session"
)

const waitFor = 2 * time.Second

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

// fakeDevice hands every trigger to the test, which answers through Deliver.
type fakeDevice struct {
	triggers chan device.ReadRequest
	cancels  chan string
	failOn   int
	count    atomic.Int64
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		triggers: make(chan device.ReadRequest, 64),
		cancels:  make(chan string, 64),
	}
}

func (d *fakeDevice) DeviceID() string { return "fake-reader" }

func (d *fakeDevice) TriggerRead(req device.ReadRequest) error {
	n := d.count.Add(1)
	if d.failOn > 0 && int(n) == d.failOn {
		return device.ErrDeviceBusy
	}
	d.triggers <- req
	return nil
}

func (d *fakeDevice) Cancel(sessionID string) {
	select {
	case d.cancels <- sessionID:
	default:
	}
}

func (d *fakeDevice) next(t tb) device.ReadRequest {
	t.Helper()
	select {
	case req := <-d.triggers:
		return req
	case <-time.After(waitFor):
		t.Fatalf("no trigger within %s", waitFor)
		return device.ReadRequest{}
	}
}

func (d *fakeDevice) expectNoTrigger(t tb) {
	t.Helper()
	select {
	case req := <-d.triggers:
		t.Fatalf("unexpected trigger for attempt %d", req.Attempt)
	case <-time.After(20 * time.Millisecond):
	}
}

func reply(req device.ReadRequest, tag device.Tag, code int) device.Callback {
	cb := device.Callback{SessionID: req.SessionID, Attempt: req.Attempt, Tag: tag, Code: code}
	if tag == device.TagSuccess {
		cb.Payload = device.SamplePayload()
	}
	return cb
}

// manualClock advances one millisecond per Now call and lets the test fire
// every After channel by hand.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	afters chan chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{
		now:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		afters: make(chan chan time.Time, 16),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *manualClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.afters <- ch
	return ch
}

func (c *manualClock) fire(t tb) {
	t.Helper()
	select {
	case ch := <-c.afters:
		ch <- c.Now()
	case <-time.After(waitFor):
		t.Fatalf("nothing is waiting on the clock")
	}
}

// recordingPublisher keeps every call in order.
type recordingPublisher struct {
	mu        sync.Mutex
	events    []string
	attempts  []session.Attempt
	summaries []session.Summary
	stale     []device.Callback
}

func (p *recordingPublisher) OnSessionStarted(id string, _ session.Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "started")
}

func (p *recordingPublisher) OnAttemptRecorded(_ string, a session.Attempt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "attempt")
	p.attempts = append(p.attempts, a)
}

func (p *recordingPublisher) OnSessionCompleted(s session.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "completed")
	p.summaries = append(p.summaries, s)
}

func (p *recordingPublisher) OnStaleCallback(cb device.Callback, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale = append(p.stale, cb)
}

func (p *recordingPublisher) snapshot() ([]string, []session.Attempt, []session.Summary, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...),
		append([]session.Attempt(nil), p.attempts...),
		append([]session.Summary(nil), p.summaries...),
		len(p.stale)
}

var _ orchestrator.Publisher = (*recordingPublisher)(nil)
var _ orchestrator.StartObserver = (*recordingPublisher)(nil)
var _ orchestrator.StaleObserver = (*recordingPublisher)(nil)
