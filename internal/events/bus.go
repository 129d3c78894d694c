// Package events fans committed order changes out to subscribers.
//
// Delivery is asynchronous: Emit queues the event on a hookz worker pool and
// returns. A failing subscriber is logged and never reaches the caller.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/service"
	"github.com/dukerupert/ponto/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/hookz"
)

// Handler processes one order event.
type Handler func(ctx context.Context, event domain.OrderEvent) error

// BusConfig sizes the worker pool.
type BusConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Bus is the in-process order event bus.
type Bus struct {
	hooks  *hookz.Hooks[domain.OrderEvent]
	logger *slog.Logger
}

var _ service.EventEmitter = (*Bus)(nil)

// NewBus starts the worker pool. Close must be called on shutdown.
func NewBus(cfg BusConfig, logger *slog.Logger) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Bus{
		hooks: hookz.New[domain.OrderEvent](
			hookz.WithWorkers(cfg.Workers),
			hookz.WithQueueSize(cfg.QueueSize),
			hookz.WithTimeout(cfg.Timeout),
		),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers h for every key in keys. name identifies the
// subscriber in logs.
func (b *Bus) Subscribe(name string, h Handler, keys ...string) error {
	for _, key := range keys {
		wrapped := func(ctx context.Context, ev domain.OrderEvent) error {
			if err := h(ctx, ev); err != nil {
				b.logger.Error("event handler failed",
					"subscriber", name,
					"event", ev.Key,
					"order_number", ev.OrderNumber,
					"error", err,
				)
				telemetry.CaptureError(err, map[string]any{
					"subscriber":   name,
					"event":        ev.Key,
					"order_number": ev.OrderNumber,
				})
				return err
			}
			return nil
		}
		if _, err := b.hooks.Hook(hookz.Key(key), wrapped); err != nil {
			return err
		}
	}
	return nil
}

// Emit queues ev for its subscribers. The request context is detached so
// that handlers outlive the request that produced the event.
func (b *Bus) Emit(ctx context.Context, ev domain.OrderEvent) error {
	return b.hooks.Emit(context.WithoutCancel(ctx), hookz.Key(ev.Key), ev)
}

// Stats reports queue and task counters.
func (b *Bus) Stats() hookz.Metrics {
	return b.hooks.Metrics()
}

// Close waits for queued events to finish.
func (b *Bus) Close() error {
	err := b.hooks.Close()
	if errors.Is(err, hookz.ErrAlreadyClosed) {
		return nil
	}
	return err
}

// RegisterMetrics exposes the bus counters as gauges.
func (b *Bus) RegisterMetrics(namespace string, reg prometheus.Registerer) error {
	gauge := func(name, help string, read func(hookz.Metrics) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(b.hooks.Metrics())) })
	}

	collectors := []prometheus.Collector{
		gauge("queue_depth", "Order events waiting for a worker", func(m hookz.Metrics) int64 { return m.QueueDepth }),
		gauge("tasks_processed", "Event handler runs that completed", func(m hookz.Metrics) int64 { return m.TasksProcessed }),
		gauge("tasks_failed", "Event handler runs that failed or panicked", func(m hookz.Metrics) int64 { return m.TasksFailed }),
		gauge("tasks_rejected", "Events dropped because the queue was full", func(m hookz.Metrics) int64 { return m.TasksRejected }),
		gauge("subscribers", "Registered event handlers", func(m hookz.Metrics) int64 { return m.RegisteredHooks }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
