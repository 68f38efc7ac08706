package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keneth217/bank/internal/domain"
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Dispatcher queues notifications and delivers them from a fixed pool of workers. Enqueue never
// blocks: when the queue is full the notification is dropped with a warning.
type Dispatcher struct {
	notifier Notifier
	cfg      DispatcherConfig
	queue    chan domain.Notification
	logger   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	group   errgroup.Group
}

func NewDispatcher(notifier Notifier, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		cfg:      cfg,
		queue:    make(chan domain.Notification, cfg.QueueSize),
		logger:   logger,
	}
}

// Start launches the workers. Deliveries keep ctx's values but not its cancellation, so queued
// notifications are still delivered while Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	base := context.WithoutCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.group.Go(func() error {
			for n := range d.queue {
				d.deliver(base, n)
			}
			return nil
		})
	}
	d.logger.Info("Notification dispatcher started", zap.Int("workers", d.cfg.Workers), zap.Int("queue_size", d.cfg.QueueSize))
}

func (d *Dispatcher) Enqueue(n domain.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Notification dispatcher closed, dropping notification",
			zap.String("notification_id", n.ID), zap.String("subject", n.Subject))
		return
	}

	select {
	case d.queue <- n:
	default:
		d.logger.Warn("Notification queue full, dropping notification",
			zap.String("notification_id", n.ID),
			zap.String("recipient", n.Recipient),
			zap.String("subject", n.Subject))
	}
}

// Close stops accepting notifications and waits until the queued ones have been handled.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	err := d.group.Wait()
	d.logger.Info("Notification dispatcher stopped")
	return err
}

func (d *Dispatcher) deliver(base context.Context, n domain.Notification) {
	ctx, cancel := context.WithTimeout(base, d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Notification delivery panicked",
				zap.String("notification_id", n.ID), zap.Any("panic", r))
		}
	}()

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.logger.Error("Failed to deliver notification",
			zap.String("notification_id", n.ID),
			zap.String("recipient", n.Recipient),
			zap.String("subject", n.Subject),
			zap.Error(fmt.Errorf("notify: %w", err)))
		return
	}
	d.logger.Debug("Notification delivered", zap.String("notification_id", n.ID), zap.String("subject", n.Subject))
}
