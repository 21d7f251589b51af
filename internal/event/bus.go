// Package event provides an in-process pub/sub bus carrying trigger events
// from the ingestion surfaces (webhook server, dispatch watcher) to the
// runner.
package event

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kfujii/agenthook/internal/trigger"
)

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan trigger.Event
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan trigger.Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan trigger.Event) {
	id := ulid.Make().String()
	ch := make(chan trigger.Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish delivers e to every subscriber. A subscriber whose buffer is
// full loses the event rather than blocking the publisher.
func (b *Bus) Publish(e trigger.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			slog.Warn("event dropped, subscriber buffer full", "subscriber", id, "event", e.ID)
		}
	}
}
