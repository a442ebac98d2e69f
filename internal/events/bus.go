package events

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber queue length used when Subscribe is given 0.
const DefaultBufferSize = 256

// Emitter accepts lifecycle events. Emit must never block the caller.
type Emitter interface {
	Emit(Event)
}

// Subscriber receives events from a Bus on its own goroutine.
type Subscriber interface {
	HandleEvent(Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event)

// HandleEvent calls f(ev).
func (f SubscriberFunc) HandleEvent(ev Event) { f(ev) }

// NopEmitter discards every event.
type NopEmitter struct{}

// Emit is a no-op.
func (NopEmitter) Emit(Event) {}

type subscription struct {
	name  string
	queue chan Event
	sub   Subscriber
}

// Bus fans events out to subscribers through bounded per-subscriber queues.
// A full queue drops the event rather than blocking the emitter, and a
// panicking subscriber is recovered so it cannot take down a plan run.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers s under name with a queue of bufferSize events.
// Subscribing to a closed bus is a no-op.
func (b *Bus) Subscribe(name string, s Subscriber, bufferSize int) {
	if s == nil {
		return
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	sub := &subscription{name: name, queue: make(chan Event, bufferSize), sub: s}
	b.subs = append(b.subs, sub)

	b.wg.Add(1)
	go b.deliver(sub)
}

func (b *Bus) deliver(sub *subscription) {
	defer b.wg.Done()
	for ev := range sub.queue {
		b.handle(sub, ev)
	}
}

func (b *Bus) handle(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Warning: event subscriber %q panicked on %s: %v\n", sub.name, ev.Type, r)
		}
	}()
	sub.sub.HandleEvent(ev)
}

// Emit queues ev for every subscriber without blocking.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.queue <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were discarded because a queue was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events and waits for subscribers to drain their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
