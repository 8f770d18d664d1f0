package server

import (
	"context"
	"sync"

	"github.com/generallabsolutions/crm-backend/internal/audit"
)

const realtimeBufferSize = 16

// EventFeed fans audit entries out to connected dashboards. It implements
// audit.Notifier, so every appended log entry reaches every subscriber.
// Slow subscribers lose events rather than block the publisher.
type EventFeed struct {
	mu          sync.RWMutex
	subscribers map[int64]chan audit.Entry
	nextID      int64
}

// NewEventFeed constructs an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{
		subscribers: make(map[int64]chan audit.Entry),
	}
}

// Subscribe registers a listener. The stream stops receiving once the
// context ends or the cleanup function runs; the channel itself is never
// closed because a publish may still be in flight.
func (f *EventFeed) Subscribe(ctx context.Context) (<-chan audit.Entry, func()) {
	stream := make(chan audit.Entry, realtimeBufferSize)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subscribers[id] = stream
	f.mu.Unlock()

	cleanup := func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// NotifyEntry publishes an entry to all subscribers without blocking.
func (f *EventFeed) NotifyEntry(entry audit.Entry) {
	f.mu.RLock()
	streams := make([]chan audit.Entry, 0, len(f.subscribers))
	for _, stream := range f.subscribers {
		streams = append(streams, stream)
	}
	f.mu.RUnlock()

	for _, stream := range streams {
		select {
		case stream <- entry:
		default:
		}
	}
}
