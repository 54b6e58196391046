package speakauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the authentication path from the configured
// AuditSink. Events travel through a buffered channel to a single delivery
// goroutine, so a slow sink only stalls callers when the operator asked for
// lossless delivery (DropIfFull=false).
type auditDispatcher struct {
	sink     AuditSink
	events   chan AuditEvent
	dropOnly bool

	mu      sync.RWMutex
	closed  bool
	drained chan struct{}

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:     sink,
		events:   make(chan AuditEvent, buffer),
		dropOnly: cfg.DropIfFull,
		drained:  make(chan struct{}),
	}
	go d.deliver()
	return d
}

// deliver runs until the event channel closes, flushing whatever the buffer
// still holds before signalling Close.
func (d *auditDispatcher) deliver() {
	defer close(d.drained)
	for event := range d.events {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit hands an event to the delivery goroutine. With DropIfFull set a full
// buffer sheds the event and counts it; otherwise Emit blocks until the sink
// catches up or ctx expires, counting the event as dropped in the latter
// case. Emitting on a closed dispatcher is a no-op.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropOnly {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops intake and waits until every buffered event has reached the
// sink. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	<-d.drained
}

// Dropped reports how many events have been shed since the engine started,
// whether to a full buffer or an expired emit context.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
