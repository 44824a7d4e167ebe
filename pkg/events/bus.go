package events

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Handler consumes one event. Returning an error reports a handler-local
// failure; it is logged and never reaches the publisher.
type Handler func(ctx context.Context, ev Event) error

// Stats describes the current subscription table.
type Stats struct {
	TotalHandlers int
	PerKind       map[Kind]int
}

// Bus is a typed publish/subscribe registry. Emit fans an event out to
// every subscriber of its kind concurrently and waits for all of them;
// one subscriber's failure never affects its siblings or the publisher.
type Bus struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[Kind]map[uintptr]Handler
}

// NewBus creates an empty bus logging handler failures to log.
func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: make(map[Kind]map[uintptr]Handler),
	}
}

// handlerID identifies a handler func for dedup and removal. Two
// references to the same function share an id, so re-subscribing the
// same handler to the same kind is idempotent.
func handlerID(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// On subscribes handler to events of kind k. Idempotent per
// {kind, handler} pair.
func (b *Bus) On(k Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.handlers[k]
	if !ok {
		set = make(map[uintptr]Handler)
		b.handlers[k] = set
	}
	set[handlerID(h)] = h
}

// Off unsubscribes handler from kind k. Unknown handlers and kinds are
// no-ops.
func (b *Bus) Off(k Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.handlers[k]
	if !ok {
		return
	}
	delete(set, handlerID(h))
	if len(set) == 0 {
		delete(b.handlers, k)
	}
}

// Emit dispatches ev to every handler subscribed to its kind and returns
// once all of them have finished. The handler set is snapshotted at entry:
// subscriptions changing mid-emit do not affect this dispatch. With no
// subscribers Emit returns immediately.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	b.mu.RLock()
	set := b.handlers[ev.Kind()]
	snapshot := make([]Handler, 0, len(set))
	for _, h := range set {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, h := range snapshot {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := b.invoke(ctx, h, ev); err != nil {
				b.log.Error("notification handler failed",
					"kind", string(ev.Kind()),
					"error", err,
				)
			}
		}(h)
	}
	wg.Wait()
}

// invoke runs one handler, converting a panic into an error so a
// misbehaving subscriber cannot take down the emit.
func (b *Bus) invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

// Stats reports the total handler count and a per-kind breakdown.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Stats{PerKind: make(map[Kind]int, len(b.handlers))}
	for k, set := range b.handlers {
		s.PerKind[k] = len(set)
		s.TotalHandlers += len(set)
	}
	return s
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Kind]map[uintptr]Handler)
}
