package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/metrics"
)

// AsyncEmitter queues events in a bounded buffer and publishes them from a
// background goroutine. A full buffer drops the event.
type AsyncEmitter struct {
	events  chan Event
	builder *Builder
	pub     Publisher
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type EmitterOption func(*AsyncEmitter)

func WithEmitterLogger(log logrus.FieldLogger) EmitterOption {
	return func(e *AsyncEmitter) {
		if log != nil {
			e.log = log
		}
	}
}

func WithEmitterMetrics(m *metrics.Metrics) EmitterOption {
	return func(e *AsyncEmitter) { e.metrics = m }
}

func WithPublishTimeout(d time.Duration) EmitterOption {
	return func(e *AsyncEmitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewAsyncEmitter starts the publishing goroutine. Call Close to drain and stop it.
func NewAsyncEmitter(builder *Builder, pub Publisher, buffer int, opts ...EmitterOption) *AsyncEmitter {
	if buffer <= 0 {
		buffer = 1
	}
	e := &AsyncEmitter{
		events:  make(chan Event, buffer),
		builder: builder,
		pub:     pub,
		log:     logrus.StandardLogger(),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

func (e *AsyncEmitter) Emit(_ context.Context, ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.log.WithField("event_type", ev.Type).Warn("notification emitted after shutdown, dropped")
		e.metrics.ObserveNotificationDropped(string(ev.Type))
		return
	}

	select {
	case e.events <- ev:
	default:
		e.log.WithFields(logrus.Fields{
			"event_type":     ev.Type,
			"appointment_id": ev.AppointmentID,
		}).Warn("notification buffer full, dropped")
		e.metrics.ObserveNotificationDropped(string(ev.Type))
	}
}

// Close stops accepting events and waits until the queued ones are published.
func (e *AsyncEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	close(e.events)
	e.mu.Unlock()

	<-e.done
}

func (e *AsyncEmitter) run() {
	defer close(e.done)
	for ev := range e.events {
		e.publish(ev)
	}
}

func (e *AsyncEmitter) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	msg := e.builder.Build(ctx, ev)
	if err := e.pub.Publish(ctx, msg); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"event_type":     ev.Type,
			"appointment_id": ev.AppointmentID,
		}).Error("notification publish failed")
		e.metrics.ObserveNotification(string(ev.Type), "failed")
		return
	}
	e.metrics.ObserveNotification(string(ev.Type), "published")
}
