package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const readyCheckTimeout = 2 * time.Second

type HealthHandler struct {
	db    *pgxpool.Pool
	cache *redis.Client
	queue *amqp.Connection
}

func NewHealthHandler(db *pgxpool.Pool, cache *redis.Client, queue *amqp.Connection) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, queue: queue}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz probes every backing service; a single failure makes the
// instance not ready so the load balancer stops routing to it.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
	defer cancel()

	checks := []struct {
		name  string
		probe func(context.Context) error
	}{
		{"postgres", h.db.Ping},
		{"redis", func(ctx context.Context) error { return h.cache.Ping(ctx).Err() }},
		{"rabbitmq", func(context.Context) error {
			if h.queue.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}},
	}

	status := gin.H{"status": "ok"}
	ready := true
	for _, check := range checks {
		if err := check.probe(ctx); err != nil {
			status[check.name] = "unavailable"
			ready = false
			continue
		}
		status[check.name] = "connected"
	}

	if !ready {
		status["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
