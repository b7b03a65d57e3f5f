package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"visittrack/api/models"
)

const defaultDeliveryBuffer = 256

// Sink delivers notifications to a salesperson. With a synchronous
// Dispatcher, Deliver runs on the tracker's request path and must not block
// for long.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// Dispatcher turns tracker events into salesperson notifications.
type Dispatcher struct {
	sink    Sink
	now     func() time.Time
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan models.Notification
	done   chan struct{}
}

// NewDispatcher returns a Dispatcher that delivers on the caller's goroutine.
func NewDispatcher(sink Sink, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{sink: sink, now: now, timeout: 5 * time.Second}
}

// NewAsyncDispatcher returns a Dispatcher whose Notify only queues the
// message. A single sender delivers in order; when buffer messages are
// already waiting, new ones are dropped.
func NewAsyncDispatcher(sink Sink, now func() time.Time, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultDeliveryBuffer
	}
	d := NewDispatcher(sink, now)
	d.queue = make(chan models.Notification, buffer)
	d.done = make(chan struct{})
	go d.sendLoop()
	return d
}

// Notify delivers a notification when a binding is present. Delivery errors
// are logged and dropped.
func (d *Dispatcher) Notify(binding *models.SalespersonBinding, kind models.NotificationKind, payload map[string]any) {
	if binding == nil || d.sink == nil {
		return
	}

	n := models.Notification{
		ID:            uuid.NewString(),
		SalespersonID: binding.SalespersonID,
		ViewerID:      binding.ViewerID,
		Kind:          kind,
		Payload:       payload,
		SessionID:     binding.SessionID,
		Timestamp:     d.now(),
	}

	if d.queue == nil {
		d.deliver(n)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("WARN: dispatcher closed, %s notification for salesperson %s dropped", kind, n.SalespersonID)
		return
	}
	select {
	case d.queue <- n:
	default:
		log.Printf("ERROR: notification queue full, %s notification for salesperson %s dropped", kind, n.SalespersonID)
	}
}

func (d *Dispatcher) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, n); err != nil {
		log.Printf("ERROR: failed to deliver %s notification to salesperson %s: %v", n.Kind, n.SalespersonID, err)
	}
}

func (d *Dispatcher) sendLoop() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

// Close waits for queued notifications to be delivered. It is a no-op for
// a synchronous Dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed || d.queue == nil {
		d.closed = true
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}
