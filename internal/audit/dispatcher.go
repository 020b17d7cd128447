package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard instead of wait when the queue is full.
	DropIfFull bool
	// Now stamps events that arrive without a timestamp.
	Now func() time.Time
}

// Stats counts what happened to emitted events.
type Stats struct {
	Delivered uint64
	Dropped   uint64
}

// Dispatcher relays events to a sink from a single goroutine, so sinks see
// events in emit order and never run on the request path.
type Dispatcher struct {
	queue chan Event
	stop  chan struct{}
	sink  Sink
	drop  bool
	now   func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts the relay. A disabled config yields a nil
// *Dispatcher, which is safe to use and discards everything.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		queue: make(chan Event, max(cfg.BufferSize, 1)),
		stop:  make(chan struct{}),
		sink:  sink,
		drop:  cfg.DropIfFull,
		now:   cfg.Now,
	}
	d.wg.Go(d.loop)
	return d
}

func (d *Dispatcher) loop() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit stamps event with an id and time when missing and queues it. It
// reports whether the event was accepted.
func (d *Dispatcher) Emit(ctx context.Context, event Event) bool {
	if d == nil || d.stopped.Load() {
		return false
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}
	if d.drop {
		return d.offer(event)
	}
	return d.put(ctx, event)
}

// offer never blocks; a full queue counts as a drop.
func (d *Dispatcher) offer(event Event) bool {
	select {
	case d.queue <- event:
		return true
	case <-d.stop:
		return false
	default:
		d.dropped.Add(1)
		return false
	}
}

// put waits for room until ctx ends or the dispatcher stops.
func (d *Dispatcher) put(ctx context.Context, event Event) bool {
	select {
	case d.queue <- event:
		return true
	case <-ctx.Done():
	case <-d.stop:
	}
	return false
}

// Close stops intake, delivers what is queued and waits for the relay.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Stats returns delivery counters. A nil dispatcher reports zeros.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{Delivered: d.delivered.Load(), Dropped: d.dropped.Load()}
}
