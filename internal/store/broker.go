package store

import "sync"

// broker delivers collection snapshots to subscribers in mutation order.
// Callbacks run on the mutating goroutine after the store lock is released,
// so they may query the store but must not mutate it.
type broker[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int

	// order serializes deliveries across concurrent mutations.
	order sync.Mutex
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{subs: make(map[int]func(T))}
}

func (b *broker[T]) subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
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

func (b *broker[T]) publish(v T) {
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// begin takes the delivery slot and then the store lock. Every mutator
// enters through here so the slot is always acquired first.
func (b *broker[T]) begin(lock func()) {
	b.order.Lock()
	lock()
}

// abort leaves a mutation that changed nothing without publishing.
func (b *broker[T]) abort(unlock func()) {
	unlock()
	b.order.Unlock()
}

// handoff releases the store lock, delivers v and frees the slot, keeping
// deliveries in the same order as the mutations that produced them.
func (b *broker[T]) handoff(unlock func(), v T) {
	unlock()
	b.publish(v)
	b.order.Unlock()
}
