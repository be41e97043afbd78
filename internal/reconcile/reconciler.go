// Package reconcile retries cart clears that failed after their order was
// persisted. The order placement path never blocks on the cart service; this
// loop drains the backlog in the background until each cart is cleared or the
// attempt budget runs out.
package reconcile

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/cart"
)

// Config tunes the reconciliation loop.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Minute
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
}

// Reconciler periodically drains the cart clear retry queue.
type Reconciler struct {
	cfg   Config
	queue cart.RetryQueue
	carts cart.Client
	now   func() time.Time
}

func New(cfg Config, queue cart.RetryQueue, carts cart.Client) *Reconciler {
	cfg.setDefaults()
	return &Reconciler{
		cfg:   cfg,
		queue: queue,
		carts: carts,
		now:   time.Now,
	}
}

// Run blocks until ctx is cancelled, draining one batch per tick.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.drain(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) drain(ctx context.Context) {
	lg := zctx.From(ctx)

	retries, err := r.queue.Due(ctx, r.cfg.BatchSize)
	if err != nil {
		lg.Error("Fetch due cart clears", zap.Error(err))
		return
	}

	for _, retry := range retries {
		r.clearOne(ctx, retry)
	}
}

func (r *Reconciler) clearOne(ctx context.Context, retry cart.ClearRetry) {
	lg := zctx.From(ctx).With(
		zap.String("order_id", retry.OrderID),
		zap.String("user_id", retry.UserID),
		zap.Int("attempts", retry.Attempts),
	)

	if err := r.carts.Clear(ctx, retry.UserID); err != nil {
		attempts := retry.Attempts + 1
		if attempts >= r.cfg.MaxAttempts {
			lg.Error("Cart clear abandoned after max attempts", zap.Error(err))
			if err := r.queue.Delete(ctx, retry.OrderID); err != nil {
				lg.Error("Drop exhausted cart clear", zap.Error(err))
			}
			return
		}

		next := r.now().Add(r.backoff(attempts))
		lg.Warn("Cart clear failed, rescheduling",
			zap.Error(err),
			zap.Time("next_attempt_at", next),
		)
		if err := r.queue.Reschedule(ctx, retry.OrderID, attempts, next); err != nil {
			lg.Error("Reschedule cart clear", zap.Error(err))
		}
		return
	}

	lg.Info("Cart cleared by reconciler")
	if err := r.queue.Delete(ctx, retry.OrderID); err != nil {
		lg.Error("Remove completed cart clear", zap.Error(err))
	}
}

// backoff doubles per attempt, capped at MaxBackoff.
func (r *Reconciler) backoff(attempts int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempts && d < r.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > r.cfg.MaxBackoff {
		d = r.cfg.MaxBackoff
	}
	return d
}
