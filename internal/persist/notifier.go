package persist

import (
	"sync"
	"sync/atomic"
	"time"
)

// Failure describes a snapshot write that did not reach storage.
type Failure struct {
	Key string
	Err error
	At  time.Time
}

// Notifier fans persistence failures out to subscribers without ever
// blocking the writer: a full subscriber buffer drops the event.
type Notifier struct {
	mu      sync.Mutex
	subs    map[int]chan Failure
	next    int
	dropped atomic.Int64
	total   atomic.Int64
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Failure)}
}

// Subscribe returns a buffered channel of failures and a cancel function.
func (n *Notifier) Subscribe(buffer int) (<-chan Failure, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Failure, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers f to every subscriber that has room.
func (n *Notifier) Publish(f Failure) {
	if n == nil {
		return
	}
	n.total.Add(1)

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- f:
		default:
			n.dropped.Add(1)
		}
	}
}

// Failures returns the number of failures published so far.
func (n *Notifier) Failures() int64 {
	if n == nil {
		return 0
	}
	return n.total.Load()
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (n *Notifier) Dropped() int64 {
	if n == nil {
		return 0
	}
	return n.dropped.Load()
}
