package event

import (
	"sync"
	"sync/atomic"
	"time"
)

// All subscribes a handler to every event type.
const All = "*"

// Event is implemented by every value published on the bus.
type Event interface {
	// EventType is a stable snake_case name such as "motion_detected".
	EventType() string
	OccurredAt() time.Time
}

// Handler receives published events.
type Handler func(Event)

// Publisher is the publishing side of the bus, for components that only emit.
type Publisher interface {
	Publish(e Event)
}

// Logger is the logging interface used by the bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type subscriber struct {
	id        uint64
	eventType string
	handler   Handler
}

// Bus fans events out to subscribers in subscription order.
//
// The subscriber list is copied on write, so Publish never holds a lock
// while handlers run and handlers may subscribe or unsubscribe freely.
type Bus struct {
	mu     sync.Mutex
	subs   atomic.Pointer[[]subscriber]
	nextID uint64

	published atomic.Uint64
	panics    atomic.Uint64

	logger Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	b := &Bus{logger: noopLogger{}}
	b.subs.Store(&[]subscriber{})
	return b
}

// SetLogger sets the logger for recovered handler panics.
// Call before the bus is shared.
func (b *Bus) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Subscribe registers handler for eventType (or All) and returns a
// function that removes it. Calling the function more than once is safe.
func (b *Bus) Subscribe(eventType string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	current := *b.subs.Load()
	next := make([]subscriber, len(current), len(current)+1)
	copy(next, current)
	next = append(next, subscriber{id: id, eventType: eventType, handler: handler})
	b.subs.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := *b.subs.Load()
	next := make([]subscriber, 0, len(current))
	for _, s := range current {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

// Publish delivers e to every handler subscribed to its type or to All.
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	b.published.Add(1)

	for _, s := range *b.subs.Load() {
		if s.eventType == All || s.eventType == e.EventType() {
			b.deliver(s, e)
		}
	}
}

func (b *Bus) deliver(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("event handler panic recovered",
				"event_type", e.EventType(),
				"subscription", s.eventType,
				"panic", r,
			)
		}
	}()
	s.handler(e)
}

// SubscriberCount returns the number of registered handlers.
func (b *Bus) SubscriberCount() int {
	return len(*b.subs.Load())
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Panics      uint64 `json:"handler_panics"`
	Subscribers int    `json:"subscribers"`
}

// Stats returns the current bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:   b.published.Load(),
		Panics:      b.panics.Load(),
		Subscribers: b.SubscriberCount(),
	}
}
