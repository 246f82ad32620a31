package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type sinkRecorder struct {
	mu  sync.Mutex
	got []Callback
	ch  chan Callback
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{ch: make(chan Callback, 16)}
}

func (r *sinkRecorder) sink(cb Callback) {
	r.mu.Lock()
	r.got = append(r.got, cb)
	r.mu.Unlock()
	r.ch <- cb
}

func (r *sinkRecorder) next(t *testing.T) Callback {
	t.Helper()
	select {
	case cb := <-r.ch:
		return cb
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return Callback{}
	}
}

func TestParseScript(t *testing.T) {
	steps, err := ParseScript("ok, err:32 ,fatal,fatal:2,hang")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("unexpected step count: %d", len(steps))
	}
	if steps[0].Tag != TagSuccess {
		t.Fatalf("step 0: %+v", steps[0])
	}
	if steps[1].Tag != TagError || steps[1].Code != CodeTagLost {
		t.Fatalf("step 1: %+v", steps[1])
	}
	if steps[2].Code != CodeOpenFailed || steps[3].Code != CodeAuthRejected {
		t.Fatalf("fatal steps: %+v %+v", steps[2], steps[3])
	}
	if !steps[4].Hang {
		t.Fatalf("step 4 should hang: %+v", steps[4])
	}

	for _, bad := range []string{"", "boom", "err:x"} {
		if _, err := ParseScript(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSimulatedBusyAndSequence(t *testing.T) {
	rec := newSinkRecorder()
	sim := NewSimulated(SimConfig{
		ID:      "sim-1",
		Steps:   []Step{{Tag: TagError, Code: CodeTagLost}, {Tag: TagSuccess}},
		Latency: 5 * time.Millisecond,
	})
	sim.Attach(rec.sink)

	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 1}); err != nil {
		t.Fatalf("trigger 1: %v", err)
	}
	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 2}); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}
	first := rec.next(t)
	if first.Attempt != 1 || first.Tag != TagError || first.Code != CodeTagLost {
		t.Fatalf("unexpected first callback: %+v", first)
	}

	for attempt := 2; attempt <= 3; attempt++ {
		if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: attempt}); err != nil {
			t.Fatalf("trigger %d: %v", attempt, err)
		}
		cb := rec.next(t)
		if cb.Attempt != attempt || cb.Tag != TagSuccess || len(cb.Payload) == 0 {
			t.Fatalf("unexpected callback for attempt %d: %+v", attempt, cb)
		}
	}
	if sim.Triggered() != 3 {
		t.Fatalf("unexpected trigger count: %d", sim.Triggered())
	}
}

func TestSimulatedCancelHangingRead(t *testing.T) {
	rec := newSinkRecorder()
	sim := NewSimulated(SimConfig{Steps: []Step{{Hang: true}}})
	sim.Attach(rec.sink)

	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 1}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	sim.Cancel("other-session")
	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 2}); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("cancel for another session must not free the reader, got %v", err)
	}

	sim.Cancel("s")
	cb := rec.next(t)
	if cb.Tag != TagCancelled || cb.Attempt != 1 {
		t.Fatalf("unexpected cancel callback: %+v", cb)
	}
	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 2}); err != nil {
		t.Fatalf("reader should be free after cancel: %v", err)
	}
}

func TestSimulatedDuplicateDelivery(t *testing.T) {
	rec := newSinkRecorder()
	sim := NewSimulated(SimConfig{Duplicate: true})
	sim.Attach(rec.sink)

	if err := sim.TriggerRead(ReadRequest{SessionID: "s", Attempt: 1}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	a := rec.next(t)
	b := rec.next(t)
	if a.Attempt != 1 || b.Attempt != 1 || a.Tag != b.Tag {
		t.Fatalf("expected duplicate callbacks, got %+v and %+v", a, b)
	}
}
