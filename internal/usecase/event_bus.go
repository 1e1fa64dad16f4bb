package usecase

import (
	"slices"
	"sync"

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// EventBus fans lifecycle events out to listeners synchronously. A panicking
// listener is logged and skipped; the remaining listeners still run.
type EventBus struct {
	logger *zap.Logger

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(domain.Event)
}

func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{logger: logger, listeners: make(map[int]func(domain.Event))}
}

// Subscribe registers fn and returns a function removing it.
func (b *EventBus) Subscribe(fn func(domain.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every listener. A nil bus drops the event.
func (b *EventBus) Publish(ev domain.Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(domain.Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(fn, ev)
	}
}

func (b *EventBus) deliver(fn func(domain.Event), ev domain.Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("Event listener panicked",
				zap.String("type", string(ev.Type)),
				zap.String("symbol", ev.Symbol),
				zap.Any("panic", p))
		}
	}()
	fn(ev)
}

