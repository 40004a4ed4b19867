package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
	"github.com/sportshop/api/internal/service"
)

const dailyStatsTTL = 90 * 24 * time.Hour

// AnalyticsWorker recomputes the daily sales rollup whenever order
// activity is published, and drops the cached dashboard so the next
// admin request sees fresh numbers.
type AnalyticsWorker struct {
	channel     *amqp.Channel
	orders      repository.OrderRepository
	analytics   *service.AnalyticsService
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewAnalyticsWorker(
	ch *amqp.Channel,
	orders repository.OrderRepository,
	analytics *service.AnalyticsService,
	redisClient *redis.Client,
	log *slog.Logger,
) *AnalyticsWorker {
	return &AnalyticsWorker{
		channel:     ch,
		orders:      orders,
		analytics:   analytics,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *AnalyticsWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(analyticsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("analytics worker started")
	return nil
}

func (w *AnalyticsWorker) Stop() { close(w.done) }

func (w *AnalyticsWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var analyticsMsg model.AnalyticsMessage
	if err := json.Unmarshal(msg.Body, &analyticsMsg); err != nil {
		w.log.Error("unmarshal analytics message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("date", analyticsMsg.Date)

	if err := w.rollup(ctx, analyticsMsg.Date); err != nil {
		log.Error("daily rollup failed", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	w.analytics.InvalidateDashboard(ctx)

	_ = msg.Ack(false)
	log.Info("daily rollup updated")
}

// rollup aggregates the full day's orders into a redis key. Reprocessing
// the same date overwrites it, so duplicate messages are harmless.
func (w *AnalyticsWorker) rollup(ctx context.Context, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	next := day.Add(24 * time.Hour)

	stats, err := w.orders.Stats(ctx, &day, &next)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	key := "analytics:daily:" + date
	if err := w.redisClient.Set(ctx, key, raw, dailyStatsTTL).Err(); err != nil {
		return fmt.Errorf("store rollup: %w", err)
	}
	return nil
}
