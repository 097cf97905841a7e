// Package bus implements the topic-based publish/subscribe broker that
// connects the conversation core's components.
//
// Delivery is asynchronous: Publish returns once the event is enqueued on
// every subscriber's queue, before any handler runs. Each subscription owns
// a FIFO queue drained by a dedicated worker goroutine, so delivery order
// is FIFO per topic per subscriber, a slow subscriber never blocks the
// publisher or other subscribers, and a failing handler never stops
// delivery elsewhere. Delivery is at-least-once for the lifetime of the
// process; events still queued at Close are dropped.
package bus
