package persistence

import "sync"

// StorageEvent announces that a window wrote a durable key.
type StorageEvent struct {
	Key      string
	NewValue string
	Origin   string
}

// Bus carries storage events between windows of the same workspace.
type Bus interface {
	Publish(ev StorageEvent)
	// Subscribe delivers events published by other origins. The returned
	// func unsubscribes.
	Subscribe(origin string, fn func(StorageEvent)) func()
}

type subscriber struct {
	origin string
	fn     func(StorageEvent)
}

// MemoryBus is an in-process Bus. Delivery is synchronous on the
// publisher's goroutine.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]subscriber)}
}

func (b *MemoryBus) Publish(ev StorageEvent) {
	b.mu.RLock()
	targets := make([]func(StorageEvent), 0, len(b.subs))
	for _, s := range b.subs {
		if s.origin != ev.Origin {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

func (b *MemoryBus) Subscribe(origin string, fn func(StorageEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{origin: origin, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
