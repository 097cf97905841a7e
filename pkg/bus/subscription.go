package bus

import (
	"container/list"
	"sync"

	"github.com/parley-dev/parley/pkg/api"
)

// Subscription is one subscriber's registration on a topic. It owns an
// unbounded FIFO queue so that enqueueing in Publish never blocks on
// handler execution.
type Subscription struct {
	topic      string
	subscriber string
	handler    Handler

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *list.List
	closed bool
}

// Topic returns the topic this subscription is registered on.
func (s *Subscription) Topic() string { return s.topic }

// Subscriber returns the subscriber name given at Subscribe time.
func (s *Subscription) Subscriber() string { return s.subscriber }

// Pending returns the number of queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *Subscription) enqueue(event api.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue.PushBack(event)
	s.cond.Signal()
}

// next blocks until an event is available or the subscription is closed.
// The second return value is false once the subscription is closed.
func (s *Subscription) next() (api.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.Len() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return api.Event{}, false
	}
	front := s.queue.Front()
	s.queue.Remove(front)
	return front.Value.(api.Event), true
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}
