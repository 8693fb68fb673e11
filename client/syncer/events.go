package syncer

import (
	"sync"
	"time"
)

type EventType string

const (
	EventSyncStarted         EventType = "sync_started"
	EventSyncCompleted       EventType = "sync_completed"
	EventSyncFailed          EventType = "sync_failed"
	EventConnectivityChanged EventType = "connectivity_changed"
)

// Event is a lifecycle notification for UI layers. A sync_started event is
// always published before the matching sync_completed or sync_failed.
type Event struct {
	Type   EventType
	Report *Report
	Err    error
	Online bool
	At     time.Time
}

// Notifier fans events out to subscribers. Publishing never blocks; a
// subscriber that falls behind loses events rather than stalling a drain.
type Notifier struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new listener with the given buffer size.
func (n *Notifier) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Publish delivers the event to every subscriber with room in its buffer.
func (n *Notifier) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
