// Package events carries ContentChanged notifications from the engine to
// whoever caches content: in-process subscribers and external sinks.
package events

import (
	"context"
	"sync"

	"github.com/kilupskalvis/folio/internal/logger"
	"github.com/kilupskalvis/folio/internal/models"
)

// Sink forwards events outside the process.
type Sink interface {
	Publish(ctx context.Context, ev models.ContentChanged) error
}

// Bus fans ContentChanged events out to channel subscribers and sinks.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.ContentChanged
	nextID int
	sinks  []Sink
	log    *logger.Logger
}

// NewBus creates an empty bus.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		subs: make(map[int]chan models.ContentChanged),
		log:  log,
	}
}

// Subscribe returns a buffered channel of events and a cancel func that
// closes it. Events are dropped for subscribers whose buffer is full.
func (b *Bus) Subscribe(buffer int) (<-chan models.ContentChanged, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.ContentChanged, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// AddSink registers an external sink.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish delivers ev to every subscriber without blocking, then to each
// sink in order. Sink failures are logged, never returned.
func (b *Bus) Publish(ctx context.Context, ev models.ContentChanged) {
	b.mu.RLock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("invalidation subscriber full, event dropped", "subscriber", id, "plan_id", ev.PlanID)
		}
	}
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			b.log.Warn("invalidation sink failed", "plan_id", ev.PlanID, "reason", ev.Reason, "error", err)
		}
	}
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
