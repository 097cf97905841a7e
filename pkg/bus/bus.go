package bus

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/observability"
)

// Handler processes a delivered event. A returned error is logged and
// counted but does not trigger redelivery; retry is the subscriber's
// responsibility.
type Handler func(ctx context.Context, event api.Event) error

// Bus is a topic-based publish/subscribe broker. All methods are safe for
// concurrent use.
type Bus struct {
	mu         sync.Mutex
	publishers map[string][]string            // publisher name -> registered topics
	topics     map[string]map[string]struct{} // topic -> publisher names
	subs       map[string][]*Subscription     // topic -> subscriptions in subscribe order
	closed     bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an empty bus. Close must be called to release the delivery
// workers.
func New() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		publishers: make(map[string][]string),
		topics:     make(map[string]map[string]struct{}),
		subs:       make(map[string][]*Subscription),
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// RegisterPublisher registers a named component as a publisher for the
// given topics. A topic must have at least one registered publisher before
// the first publish on it succeeds; this is a defense against topic typos.
func (b *Bus) RegisterPublisher(name string, topics []string) error {
	if name == "" {
		return fmt.Errorf("bus: publisher name must not be empty")
	}
	if len(topics) == 0 {
		return fmt.Errorf("bus: publisher %q must register at least one topic", name)
	}
	for _, t := range topics {
		if t == "" {
			return fmt.Errorf("bus: publisher %q registered an empty topic", name)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bus: closed")
	}

	b.publishers[name] = append(b.publishers[name], topics...)
	for _, t := range topics {
		if b.topics[t] == nil {
			b.topics[t] = make(map[string]struct{})
		}
		b.topics[t][name] = struct{}{}
	}
	slog.Debug("publisher registered", "publisher", name, "topics", topics)
	return nil
}

// Subscribe registers a handler for a topic under a subscriber name used
// for logging and metrics. It starts the subscription's delivery worker
// and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(topic, subscriber string, h Handler) (*Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("bus: topic must not be empty")
	}
	if h == nil {
		return nil, fmt.Errorf("bus: handler must not be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus: closed")
	}

	sub := &Subscription{
		topic:      topic,
		subscriber: subscriber,
		handler:    h,
		queue:      list.New(),
	}
	sub.cond = sync.NewCond(&sub.mu)
	b.subs[topic] = append(b.subs[topic], sub)

	b.wg.Add(1)
	go b.deliver(sub)

	slog.Debug("subscriber registered", "topic", topic, "subscriber", subscriber)
	return sub, nil
}

// Unsubscribe removes a subscription and stops its delivery worker after
// the in-flight handler call, if any, returns. Queued events for the
// subscription are dropped.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	sub.close()
}

// Publish validates the event, stamps its ID and creation time, and
// enqueues it for every current subscriber of its topic. It returns the
// stamped event without waiting for any handler to run.
//
// Publishing on a topic with no registered publisher fails with an
// unregistered_topic error.
func (b *Bus) Publish(event api.Event) (api.Event, error) {
	if err := event.Validate(); err != nil {
		return api.Event{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.Event{}, fmt.Errorf("bus: closed")
	}
	if len(b.topics[event.Topic]) == 0 {
		return api.Event{}, api.NewUnregisteredTopicError(event.Topic)
	}

	event.ID = api.NewEventID()
	event.CreatedAt = time.Now()

	for _, sub := range b.subs[event.Topic] {
		sub.enqueue(event)
	}
	observability.BusPublishedTotal.WithLabelValues(event.Topic).Inc()

	return event, nil
}

// Subscribers returns the number of active subscriptions for a topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close shuts the bus down. Pending events that have not been delivered
// are dropped; this is the documented crash/shutdown semantics (no
// cross-restart durability). Close blocks until all delivery workers have
// exited.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	b.cancel()
	for _, sub := range all {
		sub.close()
	}
	b.wg.Wait()
}

// deliver is the per-subscription worker loop. It pops events in FIFO
// order and invokes the handler, recovering panics so a broken subscriber
// cannot take the bus down.
func (b *Bus) deliver(sub *Subscription) {
	defer b.wg.Done()

	for {
		event, ok := sub.next()
		if !ok {
			return
		}

		if err := b.invoke(sub, event); err != nil {
			observability.BusHandlerErrorsTotal.WithLabelValues(sub.topic, sub.subscriber).Inc()
			slog.Error("event handler failed",
				"topic", sub.topic,
				"subscriber", sub.subscriber,
				"event_id", event.ID,
				"error", err)
			continue
		}
		observability.BusDeliveredTotal.WithLabelValues(sub.topic, sub.subscriber).Inc()
	}
}

func (b *Bus) invoke(sub *Subscription, event api.Event) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(b.baseCtx, event)
}
