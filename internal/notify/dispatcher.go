package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrQueueFull is returned by Notify when the queue has no free slot.
	ErrQueueFull = errors.New("notification queue full")
	// ErrNotRunning is returned by Notify before Start or after Stop.
	ErrNotRunning = errors.New("notification dispatcher not running")
)

// Config sizes the worker pool.
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns the pool size used when none is configured.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256}
}

// Dispatcher fans messages out to sinks from a pool of workers.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Message
	workers int
	logger  *slog.Logger
	metrics *dispatcherMetrics
	now     func() time.Time

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher. Metrics are registered on reg.
func NewDispatcher(cfg Config, logger *slog.Logger, reg prometheus.Registerer, sinks ...Sink) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Message, cfg.QueueSize),
		workers: cfg.Workers,
		logger:  logger.With("component", "notify"),
		now:     time.Now,
	}
	d.metrics = newDispatcherMetrics(reg, func() float64 { return float64(len(d.queue)) })
	return d
}

// Start launches the workers. Deliveries run on a context detached from ctx's
// cancellation so that a finished request does not abort them.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("notification dispatcher already started")
	}

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.stopCh = make(chan struct{})
	d.running = true

	d.logger.InfoContext(ctx, "starting notification dispatcher",
		"workers", d.workers,
		"queue_size", cap(d.queue),
		"sinks", len(d.sinks))

	for i := range d.workers {
		d.wg.Add(1)
		go d.worker(workCtx, i)
	}
	return nil
}

// Stop refuses new messages and waits for the workers to drain the queue.
// When ctx expires first, in-flight deliveries are cancelled and ctx.Err is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.InfoContext(ctx, "notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.logger.WarnContext(ctx, "notification dispatcher shutdown timeout exceeded")
		return ctx.Err()
	}
}

// Notify enqueues msg without blocking.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = d.now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		d.metrics.dropped.WithLabelValues("not_running").Inc()
		return ErrNotRunning
	}

	select {
	case d.queue <- msg:
		d.metrics.enqueued.Inc()
		d.logger.DebugContext(ctx, "notification enqueued",
			"type", msg.Type,
			"defense_id", msg.DefenseID,
			"recipients", len(msg.Recipients))
		return nil
	default:
		d.metrics.dropped.WithLabelValues("queue_full").Inc()
		d.logger.WarnContext(ctx, "notification queue full, dropping notification",
			"type", msg.Type,
			"defense_id", msg.DefenseID,
			"queue_size", cap(d.queue))
		return ErrQueueFull
	}
}

// QueueLength returns the number of messages waiting for a worker.
func (d *Dispatcher) QueueLength() int {
	return len(d.queue)
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := d.logger.With("worker_id", id)

	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, logger, msg)
		case <-d.stopCh:
			for {
				select {
				case msg := <-d.queue:
					d.deliver(ctx, logger, msg)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, msg Message) {
	logger = logger.With("type", msg.Type, "defense_id", msg.DefenseID)

	for _, sink := range d.sinks {
		start := time.Now()
		err := d.deliverOne(ctx, sink, msg)
		if err != nil {
			d.metrics.deliveries.WithLabelValues(sink.Name(), "error").Inc()
			logger.WarnContext(ctx, "notification delivery failed",
				"sink", sink.Name(),
				"duration", time.Since(start),
				"error", err)
			continue
		}
		d.metrics.deliveries.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, sink Sink, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Deliver(ctx, msg)
}
