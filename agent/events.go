package agent

import (
	"sync"
	"time"
)

// EventType classifies a loop event.
type EventType string

const (
	EventModelResponse     EventType = "model_response"
	EventUnrecognized      EventType = "unrecognized"
	EventReasoning         EventType = "reasoning"
	EventCalculation       EventType = "calculation"
	EventSelfCheckPass     EventType = "self_check_pass"
	EventSelfCheckConcern  EventType = "self_check_concern"
	EventVerification      EventType = "verification"
	EventFallback          EventType = "fallback"
	EventFinalAnswer       EventType = "final_answer"
	EventStop              EventType = "stop"
	EventCompleted         EventType = "completed"
	EventFinalVerification EventType = "final_verification"
)

// Event is one observable step of a run.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Content   string    `json:"content"`
	OK        bool      `json:"ok,omitempty"`
	ElapsedMs int64     `json:"elapsed_ms"`
}

// Observer is called synchronously for every event as it happens.
type Observer func(Event)

// Recorder keeps the events of one run and forwards each to an observer.
// A nil *Recorder discards everything.
type Recorder struct {
	mu       sync.Mutex
	start    time.Time
	events   []Event
	observer Observer
	now      func() time.Time
}

func NewRecorder(observer Observer) *Recorder {
	return &Recorder{start: time.Now(), observer: observer, now: time.Now}
}

func (r *Recorder) Add(typ EventType, content string) {
	r.add(typ, content, false)
}

// AddResult records an event carrying a pass/fail outcome.
func (r *Recorder) AddResult(typ EventType, content string, ok bool) {
	r.add(typ, content, ok)
}

func (r *Recorder) add(typ EventType, content string, ok bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	now := r.now()
	event := Event{
		Timestamp: now,
		Type:      typ,
		Content:   content,
		OK:        ok,
		ElapsedMs: now.Sub(r.start).Milliseconds(),
	}
	r.events = append(r.events, event)
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer(event)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
