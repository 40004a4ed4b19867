package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/repository"
)

const (
	dashboardCacheKey = "analytics:dashboard"
	dashboardCacheTTL = time.Hour
)

// AnalyticsService aggregates sales figures for the admin dashboard.
// Results are cached; the analytics worker drops the cache when the
// daily rollup runs.
type AnalyticsService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	cache    *redis.Client
	logger   *slog.Logger
}

func NewAnalyticsService(orders repository.OrderRepository, products repository.ProductRepository, cache *redis.Client, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{orders: orders, products: products, cache: cache, logger: logger}
}

func (s *AnalyticsService) Dashboard(ctx context.Context, from, to *time.Time) (*dto.DashboardResponse, error) {
	cacheable := from == nil && to == nil
	if cacheable && s.cache != nil {
		if raw, err := s.cache.Get(ctx, dashboardCacheKey).Result(); err == nil {
			var resp dto.DashboardResponse
			if err := json.Unmarshal([]byte(raw), &resp); err == nil {
				return &resp, nil
			}
		}
	}

	stats, err := s.orders.Stats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	count, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.DashboardResponse{
		Orders: dto.OrderStatsResponse{
			TotalOrders:           stats.TotalOrders,
			TotalRevenue:          stats.TotalRevenue,
			AverageOrderValue:     stats.AverageOrderValue,
			OrdersByStatus:        stats.OrdersByStatus,
			OrdersByPaymentStatus: stats.OrdersByPaymentStatus,
		},
		ProductCount: count,
		GeneratedAt:  time.Now(),
	}

	if cacheable && s.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			s.cache.Set(ctx, dashboardCacheKey, raw, dashboardCacheTTL)
		}
	}
	return resp, nil
}

// InvalidateDashboard is called by the rollup worker after new order
// activity lands.
func (s *AnalyticsService) InvalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey).Err(); err != nil {
		s.logger.Warn("failed to drop dashboard cache", "error", err)
	}
}
