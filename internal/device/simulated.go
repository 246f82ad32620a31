package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Step is one scripted read result.
type Step struct {
	Tag     Tag
	Code    int
	Message string
	// Hang keeps the read in flight until Cancel is called.
	Hang bool
}

// SimConfig configures a Simulated reader.
type SimConfig struct {
	ID      string
	Steps   []Step
	Latency time.Duration
	// Duplicate delivers every result twice, like some vendor drivers do.
	Duplicate bool
	Payload   []byte
}

type pendingRead struct {
	req  ReadRequest
	step Step
}

// Simulated replays a script of results with driver-like quirks. Steps are
// consumed in order; once exhausted the last step repeats.
type Simulated struct {
	cfg SimConfig

	mu       sync.Mutex
	sink     Sink
	inflight *pendingRead
	next     int

	triggered atomic.Int64
}

func NewSimulated(cfg SimConfig) *Simulated {
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = "sim-reader"
	}
	if len(cfg.Steps) == 0 {
		cfg.Steps = []Step{{Tag: TagSuccess}}
	}
	if cfg.Payload == nil {
		cfg.Payload = SamplePayload()
	}
	return &Simulated{cfg: cfg}
}

// Attach sets the callback sink.
func (s *Simulated) Attach(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Simulated) DeviceID() string { return s.cfg.ID }

// Triggered reports how many reads were started.
func (s *Simulated) Triggered() int { return int(s.triggered.Load()) }

func (s *Simulated) TriggerRead(req ReadRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		return fmt.Errorf("%w: session %s attempt %d", ErrDeviceBusy, s.inflight.req.SessionID, s.inflight.req.Attempt)
	}
	idx := s.next
	if idx >= len(s.cfg.Steps) {
		idx = len(s.cfg.Steps) - 1
	}
	s.next++
	p := &pendingRead{req: req, step: s.cfg.Steps[idx]}
	s.inflight = p
	s.triggered.Add(1)
	if !p.step.Hang {
		time.AfterFunc(s.cfg.Latency, func() { s.complete(p) })
	}
	return nil
}

func (s *Simulated) Cancel(sessionID string) {
	s.mu.Lock()
	p := s.inflight
	if p == nil || p.req.SessionID != sessionID {
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return
	}
	cb := Callback{
		SessionID: p.req.SessionID,
		Attempt:   p.req.Attempt,
		Tag:       TagCancelled,
		Code:      CodeCancelledByHost,
		Message:   "read cancelled by host",
		At:        time.Now(),
	}
	go sink(cb)
}

func (s *Simulated) complete(p *pendingRead) {
	s.mu.Lock()
	if s.inflight == p {
		s.inflight = nil
	}
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return
	}
	cb := Callback{
		SessionID: p.req.SessionID,
		Attempt:   p.req.Attempt,
		Tag:       p.step.Tag,
		Code:      p.step.Code,
		Message:   p.step.Message,
		At:        time.Now(),
	}
	if cb.Tag == TagSuccess {
		cb.Payload = append([]byte(nil), s.cfg.Payload...)
	}
	sink(cb)
	if s.cfg.Duplicate {
		sink(cb)
	}
}

// ParseScript parses a comma separated script such as "ok,err:31,fatal,hang".
// "fatal" without a code reports CodeOpenFailed.
func ParseScript(raw string) ([]Step, error) {
	var steps []Step
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		name, arg, hasArg := strings.Cut(tok, ":")
		switch name {
		case "ok", "success":
			steps = append(steps, Step{Tag: TagSuccess})
		case "hang":
			steps = append(steps, Step{Hang: true})
		case "err", "error", "fatal":
			code := CodeReadTimeout
			if name == "fatal" {
				code = CodeOpenFailed
			}
			if hasArg {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return nil, fmt.Errorf("script step %q: invalid code: %w", tok, err)
				}
				code = n
			}
			steps = append(steps, Step{Tag: TagError, Code: code, Message: fmt.Sprintf("reader error %d", code)})
		default:
			return nil, fmt.Errorf("script step %q: unknown step", tok)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("script is empty")
	}
	return steps, nil
}
