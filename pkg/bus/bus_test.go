package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parley-dev/parley/pkg/api"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b := New()
	t.Cleanup(b.Close)
	if err := b.RegisterPublisher("test", []string{api.TopicConversationTurn, api.TopicSystemStart}); err != nil {
		t.Fatalf("RegisterPublisher failed: %v", err)
	}
	return b
}

func turnEvent(n int) api.Event {
	return api.Event{
		Topic:   api.TopicConversationTurn,
		Source:  "test",
		Payload: map[string]any{"n": n},
	}
}

// collector accumulates delivered events and signals each arrival.
type collector struct {
	mu     sync.Mutex
	events []api.Event
	ch     chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 128)}
}

func (c *collector) handle(_ context.Context, event api.Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *collector) waitFor(t *testing.T, n int) []api.Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestPublishUnregisteredTopic(t *testing.T) {
	b := New()
	defer b.Close()

	_, err := b.Publish(api.Event{Topic: "rogue.topic", Source: "x", Payload: map[string]any{}})

	var coreErr *api.Error
	if !errors.As(err, &coreErr) || coreErr.Type != api.ErrorTypeUnregisteredTopic {
		t.Fatalf("expected unregistered_topic error, got %v", err)
	}
}

func TestPublishStampsIDAndTime(t *testing.T) {
	b := newTestBus(t)

	evt, err := b.Publish(turnEvent(1))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !api.ValidateEventID(evt.ID) {
		t.Errorf("published event ID %q is invalid", evt.ID)
	}
	if evt.CreatedAt.IsZero() {
		t.Error("published event has zero CreatedAt")
	}
}

func TestPublishValidatesEvent(t *testing.T) {
	b := newTestBus(t)

	_, err := b.Publish(api.Event{Topic: api.TopicConversationTurn, Source: "test"}) // nil payload
	var coreErr *api.Error
	if !errors.As(err, &coreErr) || coreErr.Type != api.ErrorTypeInvalidEvent {
		t.Fatalf("expected invalid_event error, got %v", err)
	}
}

func TestFIFODeliveryPerSubscriber(t *testing.T) {
	b := newTestBus(t)
	c := newCollector()
	if _, err := b.Subscribe(api.TopicConversationTurn, "collector", c.handle); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if _, err := b.Publish(turnEvent(i)); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	events := c.waitFor(t, n)
	for i, evt := range events {
		if got := evt.Payload["n"].(int); got != i {
			t.Fatalf("delivery order broken at %d: got payload %d", i, got)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := newTestBus(t)

	release := make(chan struct{})
	if _, err := b.Subscribe(api.TopicConversationTurn, "slow", func(context.Context, api.Event) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer close(release)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(turnEvent(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHandlerErrorDoesNotStopOtherSubscribers(t *testing.T) {
	b := newTestBus(t)

	if _, err := b.Subscribe(api.TopicConversationTurn, "broken", func(context.Context, api.Event) error {
		return errors.New("handler exploded")
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	c := newCollector()
	if _, err := b.Subscribe(api.TopicConversationTurn, "healthy", c.handle); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		b.Publish(turnEvent(i))
	}

	if got := len(c.waitFor(t, 5)); got != 5 {
		t.Errorf("healthy subscriber got %d events, want 5", got)
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	b := newTestBus(t)

	if _, err := b.Subscribe(api.TopicConversationTurn, "panicky", func(context.Context, api.Event) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	c := newCollector()
	if _, err := b.Subscribe(api.TopicConversationTurn, "healthy", c.handle); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(turnEvent(0))
	b.Publish(turnEvent(1))

	if got := len(c.waitFor(t, 2)); got != 2 {
		t.Errorf("healthy subscriber got %d events, want 2", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus(t)
	c := newCollector()
	sub, err := b.Subscribe(api.TopicConversationTurn, "collector", c.handle)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(turnEvent(0))
	c.waitFor(t, 1)

	b.Unsubscribe(sub)
	if got := b.Subscribers(api.TopicConversationTurn); got != 0 {
		t.Fatalf("Subscribers = %d after Unsubscribe, want 0", got)
	}

	b.Publish(turnEvent(1))
	select {
	case <-c.ch:
		t.Error("received event after Unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	b := newTestBus(t)

	turns := newCollector()
	starts := newCollector()
	b.Subscribe(api.TopicConversationTurn, "turns", turns.handle)
	b.Subscribe(api.TopicSystemStart, "starts", starts.handle)

	b.Publish(turnEvent(0))
	b.Publish(api.Event{Topic: api.TopicSystemStart, Source: "test", Payload: map[string]any{"version": "1"}})

	if got := turns.waitFor(t, 1); got[0].Topic != api.TopicConversationTurn {
		t.Errorf("turn subscriber got topic %q", got[0].Topic)
	}
	if got := starts.waitFor(t, 1); got[0].Topic != api.TopicSystemStart {
		t.Errorf("start subscriber got topic %q", got[0].Topic)
	}
}

func TestCloseRejectsFurtherPublish(t *testing.T) {
	b := New()
	b.RegisterPublisher("test", []string{api.TopicConversationTurn})
	b.Close()

	if _, err := b.Publish(turnEvent(0)); err == nil {
		t.Error("Publish after Close should fail")
	}
	// Close is idempotent.
	b.Close()
}
