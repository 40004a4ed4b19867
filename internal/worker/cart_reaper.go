package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sportshop/api/internal/service"
)

// CartReaper periodically deletes carts past their expiry.
type CartReaper struct {
	carts  *service.CartService
	period time.Duration
	log    *slog.Logger
	done   chan struct{}
}

func NewCartReaper(carts *service.CartService, period time.Duration, log *slog.Logger) *CartReaper {
	return &CartReaper{carts: carts, period: period, log: log, done: make(chan struct{})}
}

func (r *CartReaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(ctx)
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	r.log.Info("cart reaper started", "period", r.period)
}

func (r *CartReaper) Stop() { close(r.done) }

func (r *CartReaper) sweep(ctx context.Context) {
	deleted, err := r.carts.DeleteExpired(ctx)
	if err != nil {
		r.log.Error("cart sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		r.log.Info("expired carts removed", "count", deleted)
	}
}
