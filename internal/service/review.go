package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var (
	ErrReviewNotFound   = errors.New("review not found")
	ErrAlreadyReviewed  = errors.New("product already reviewed")
	ErrOrderNotEligible = errors.New("order is not eligible for review")
	ErrNotReviewOwner   = errors.New("review belongs to another user")
)

const (
	reviewCachePrefix = "reviews:"
	reviewCacheTTL    = 5 * time.Minute
)

type ReviewService struct {
	reviews  repository.ReviewRepository
	orders   repository.OrderRepository
	products repository.ProductRepository
	cache    *redis.Client
	logger   *slog.Logger
}

func NewReviewService(reviews repository.ReviewRepository, orders repository.OrderRepository, products repository.ProductRepository, cache *redis.Client, logger *slog.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, orders: orders, products: products, cache: cache, logger: logger}
}

// Create accepts a review only from a customer whose referenced order is
// delivered and actually contains the product, one review per product
// per user. New reviews await moderation.
func (s *ReviewService) Create(ctx context.Context, userID, productID uuid.UUID, req dto.CreateReviewRequest) (*model.Review, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Status != model.OrderDelivered {
		return nil, fmt.Errorf("%w: order is not delivered", ErrOrderNotEligible)
	}
	contains := false
	for _, line := range order.Items {
		if line.ProductID == productID {
			contains = true
			break
		}
	}
	if !contains {
		return nil, fmt.Errorf("%w: product is not part of the order", ErrOrderNotEligible)
	}

	existing, err := s.reviews.GetByProductAndUser(ctx, productID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyReviewed
	}

	review := &model.Review{
		ProductID:  productID,
		UserID:     userID,
		OrderID:    req.OrderID,
		Rating:     req.Rating,
		Title:      req.Title,
		Text:       req.Text,
		Images:     req.Images,
		IsApproved: false,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.invalidate(ctx)
	return review, nil
}

type reviewPage struct {
	Reviews []model.Review `json:"reviews"`
	Total   int            `json:"total"`
}

// ListForProduct returns approved reviews only and is cached; moderation
// queues go through ListAll.
func (s *ReviewService) ListForProduct(ctx context.Context, productID uuid.UUID, req dto.ListReviewsRequest) ([]model.Review, int, error) {
	key := fmt.Sprintf("%sproduct:%s:%d:%d:%d", reviewCachePrefix, productID, req.Rating, req.Limit, req.Offset())
	if page, ok := cacheGet[reviewPage](ctx, s.cache, key); ok {
		return page.Reviews, page.Total, nil
	}

	approved := true
	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{
		ProductID:  &productID,
		IsApproved: &approved,
		Rating:     req.Rating,
		Limit:      req.Limit,
		Offset:     req.Offset(),
	})
	if err != nil {
		return nil, 0, err
	}
	cacheSet(ctx, s.cache, key, reviewPage{Reviews: reviews, Total: total}, reviewCacheTTL)
	return reviews, total, nil
}

func (s *ReviewService) ListAll(ctx context.Context, approved *bool, limit, offset int) ([]model.Review, int, error) {
	return s.reviews.List(ctx, repository.ReviewFilter{
		IsApproved: approved,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *ReviewService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Review, int, error) {
	return s.reviews.List(ctx, repository.ReviewFilter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
	})
}

// Update lets the author edit their review. Any edit sends it back to
// moderation.
func (s *ReviewService) Update(ctx context.Context, userID, reviewID uuid.UUID, req dto.UpdateReviewRequest) (*model.Review, error) {
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, ErrNotReviewOwner
	}

	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Title != nil {
		review.Title = *req.Title
	}
	if req.Text != nil {
		review.Text = *req.Text
	}
	wasApproved := review.IsApproved
	review.IsApproved = false

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	s.invalidate(ctx)
	if wasApproved {
		s.recalculateRating(ctx, review.ProductID)
	}
	return review, nil
}

func (s *ReviewService) Approve(ctx context.Context, reviewID uuid.UUID) (*model.Review, error) {
	return s.setApproved(ctx, reviewID, true)
}

func (s *ReviewService) Reject(ctx context.Context, reviewID uuid.UUID) (*model.Review, error) {
	return s.setApproved(ctx, reviewID, false)
}

func (s *ReviewService) setApproved(ctx context.Context, reviewID uuid.UUID, approved bool) (*model.Review, error) {
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	review.IsApproved = approved
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.recalculateRating(ctx, review.ProductID)
	return review, nil
}

func (s *ReviewService) Reply(ctx context.Context, reviewID uuid.UUID, text string) (*model.Review, error) {
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	review.AdminReply = text
	review.AdminReplyAt = &now
	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return review, nil
}

// Delete removes a review. Owners may delete their own; staff any.
func (s *ReviewService) Delete(ctx context.Context, reviewID, userID uuid.UUID, staff bool) error {
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if !staff && review.UserID != userID {
		return ErrNotReviewOwner
	}
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}
	s.invalidate(ctx)
	if review.IsApproved {
		s.recalculateRating(ctx, review.ProductID)
	}
	return nil
}

func (s *ReviewService) invalidate(ctx context.Context) {
	if err := invalidatePrefix(ctx, s.cache, reviewCachePrefix); err != nil {
		s.logger.Warn("review cache invalidation failed", "error", err)
	}
}

func (s *ReviewService) getReview(ctx context.Context, reviewID uuid.UUID) (*model.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	return review, nil
}

// recalculateRating recomputes the denormalized product rating from
// approved reviews.
func (s *ReviewService) recalculateRating(ctx context.Context, productID uuid.UUID) {
	rating, count, err := s.reviews.ProductRating(ctx, productID)
	if err != nil {
		s.logger.Warn("failed to compute product rating", "product_id", productID, "error", err)
		return
	}
	if err := s.products.UpdateRating(ctx, productID, rating, count); err != nil {
		s.logger.Warn("failed to store product rating", "product_id", productID, "error", err)
	}
}

// ToReviewResponse maps a review to its API shape.
func ToReviewResponse(r *model.Review) dto.ReviewResponse {
	return dto.ReviewResponse{
		ID:           r.ID,
		ProductID:    r.ProductID,
		UserID:       r.UserID,
		OrderID:      r.OrderID,
		Rating:       r.Rating,
		Title:        r.Title,
		Text:         r.Text,
		Images:       r.Images,
		IsApproved:   r.IsApproved,
		AdminReply:   r.AdminReply,
		AdminReplyAt: r.AdminReplyAt,
		CreatedAt:    r.CreatedAt,
	}
}
