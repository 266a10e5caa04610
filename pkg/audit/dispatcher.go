package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studyspace/pkg/circuitbreaker"
	"studyspace/pkg/metrics"
	"studyspace/pkg/queue"
)

// Sink is where events end up, normally a *Publisher.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

const (
	defaultMaxAttempts = 5
	defaultCapacity    = 1000
	retryBackoff       = 10 * time.Second
	shutdownGrace      = 5 * time.Second
)

// Dispatcher delivers events off the caller's goroutine. Notify only hands the
// event to an inbox; Run publishes it. Failed publishes are kept in a bounded
// retry queue behind a circuit breaker.
type Dispatcher struct {
	sink    Sink
	breaker *circuitbreaker.CircuitBreaker
	inbox   chan Event
	retries *queue.Queue[Event]
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:    sink,
		breaker: circuitbreaker.New("audit", 5, 30*time.Second, time.Minute),
		inbox:   make(chan Event, defaultCapacity),
		retries: queue.New[Event](defaultCapacity),
		logger:  logger.With("component", "audit_dispatcher"),
		now:     time.Now,
	}
}

// Notify queues ev for delivery and returns immediately. When the inbox is full
// the event goes straight to the retry queue.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	select {
	case d.inbox <- ev:
	default:
		d.logger.WarnContext(ctx, "audit inbox full, deferring event",
			"event_id", ev.ID, "event_type", ev.Type)
		d.enqueue(&queue.Item[Event]{
			ID:          ev.ID,
			Payload:     ev,
			RetryAt:     d.now(),
			MaxAttempts: defaultMaxAttempts,
		})
	}
}

// deliver publishes a fresh event, queueing it for retry on failure.
func (d *Dispatcher) deliver(ctx context.Context, ev Event) bool {
	err := d.breaker.Execute(func() error {
		return d.sink.Publish(ctx, ev)
	})
	if err == nil {
		return true
	}
	metrics.AuditPublishFailures.Inc()
	d.logger.WarnContext(ctx, "audit publish failed, queued for retry",
		"event_id", ev.ID, "event_type", ev.Type, "error", err,
		"breaker_state", d.breaker.State().String())
	d.enqueue(&queue.Item[Event]{
		ID:          ev.ID,
		Payload:     ev,
		RetryAt:     d.now().Add(retryBackoff),
		Attempts:    1,
		MaxAttempts: defaultMaxAttempts,
	})
	return false
}

// Drain publishes every event waiting in the inbox and returns how many were
// delivered.
func (d *Dispatcher) Drain(ctx context.Context) int {
	delivered := 0
	for {
		select {
		case ev := <-d.inbox:
			if d.deliver(ctx, ev) {
				delivered++
			}
		default:
			return delivered
		}
	}
}

func (d *Dispatcher) enqueue(it *queue.Item[Event]) {
	if dropped := d.retries.Enqueue(it); dropped != nil {
		d.logger.Error("audit retry queue full, dropping event",
			"event_id", dropped.ID, "event_type", dropped.Payload.Type)
	}
	metrics.AuditRetryQueueSize.Set(float64(d.retries.Size()))
}

// Flush retries every due event once and returns how many were delivered.
func (d *Dispatcher) Flush(ctx context.Context) int {
	delivered := 0
	now := d.now()
	var requeue []*queue.Item[Event]
	for {
		it := d.retries.Dequeue(now)
		if it == nil {
			break
		}
		err := d.breaker.Execute(func() error {
			return d.sink.Publish(ctx, it.Payload)
		})
		if err == nil {
			delivered++
			continue
		}
		if errors.Is(err, circuitbreaker.ErrOpen) {
			it.RetryAt = now.Add(retryBackoff)
			requeue = append(requeue, it)
			continue
		}
		it.Attempts++
		if it.Exhausted() {
			d.logger.ErrorContext(ctx, "audit event dropped after retries",
				"event_id", it.ID, "event_type", it.Payload.Type, "attempts", it.Attempts, "error", err)
			continue
		}
		it.RetryAt = now.Add(retryBackoff * time.Duration(it.Attempts))
		requeue = append(requeue, it)
	}
	for _, it := range requeue {
		d.enqueue(it)
	}
	metrics.AuditRetryQueueSize.Set(float64(d.retries.Size()))
	return delivered
}

// Pending is the number of events not yet delivered.
func (d *Dispatcher) Pending() int {
	return len(d.inbox) + d.retries.Size()
}

// Run publishes inbox events as they arrive and flushes the retry queue every
// interval until ctx is done. Events still in the inbox are given a last
// delivery attempt on shutdown.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
			d.Drain(drainCtx)
			cancel()
			return
		case ev := <-d.inbox:
			d.deliver(ctx, ev)
		case <-ticker.C:
			if n := d.Flush(ctx); n > 0 {
				d.logger.InfoContext(ctx, "audit retries delivered", "count", n)
			}
		}
	}
}
