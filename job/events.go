package job

import (
	"sync"

	"github.com/justapithecus/strata/types"
)

// EventKind is the closed set of lifecycle events a job emits, delivered
// in order: created -> started -> progress* -> (paused|running)* ->
// (completed|failed|canceled).
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "running"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCanceled  EventKind = "canceled"
)

// Event is a single lifecycle notification for one job. Events for a
// given JobID are delivered in order; events across jobs may interleave.
type Event struct {
	JobID    string
	Kind     EventKind
	Progress types.Progress
	Error    string
}

// Bus fans events out to subscribers. Each job gets its own ordered
// channel; a slow subscriber only ever backs up its own job's delivery,
// never another job's.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving every event published after this
// call, across all jobs. Unsubscribe must be called when the caller is
// done to release the channel.
func (b *Bus) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers ev to every current subscriber. Progress events are
// dropped for a subscriber whose buffer is full, since they're throttled
// and superseded by the next one anyway; every other event kind blocks
// until delivered so a lifecycle transition is never silently lost.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		if ev.Kind == EventProgress {
			select {
			case ch <- ev:
			default:
			}
			continue
		}
		ch <- ev
	}
}
