package eventbus

import (
	"sync"
	"time"
)

// clearDelay is how long a broadcast value stays readable before the slot
// resets to empty.
const clearDelay = 50 * time.Millisecond

type EventKind string

const (
	TagRenamed      EventKind = "tag_renamed"
	CategoryRenamed EventKind = "category_renamed"
)

// Event is a pulse, not a retained value: it is visible via Current only
// for a short interval after Broadcast, and subscribers that were not
// registered at broadcast time never observe it.
type Event struct {
	Kind      EventKind
	EntityID  int64
	OldName   string
	NewName   string
	Timestamp time.Time
}

// Bus is a single-slot, auto-clearing broadcast channel for cross-cutting
// rename notifications. It carries no delivery guarantees and must not be
// used for anything durable.
type Bus struct {
	mu         sync.Mutex
	current    *Event
	clearTimer *time.Timer
	nextSubID  int
	subs       map[int]func(Event)
}

func New() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for future broadcasts and returns an unsubscribe
// function. fn is invoked synchronously during Broadcast.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Broadcast publishes event to all current subscribers, then schedules the
// slot to clear. A broadcast arriving before the previous clear fires
// replaces the slot and cancels the stale timer.
func (b *Bus) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.current = &event
	if b.clearTimer != nil {
		b.clearTimer.Stop()
	}
	published := b.current
	b.clearTimer = time.AfterFunc(clearDelay, func() {
		b.mu.Lock()
		// Only clear if no newer broadcast replaced us.
		if b.current == published {
			b.current = nil
		}
		b.mu.Unlock()
	})
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// Current returns the most recent broadcast if its clear window has not yet
// elapsed, or nil.
func (b *Bus) Current() *Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	event := *b.current
	return &event
}
