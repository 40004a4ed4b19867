package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var ErrCategorySlugExists = errors.New("category slug already exists")

const (
	categoryCachePrefix = "categories:"
	categoryCacheTTL    = 5 * time.Minute
)

type CategoryService struct {
	categories repository.CategoryRepository
	cache      *redis.Client
	logger     *slog.Logger
}

func NewCategoryService(categories repository.CategoryRepository, cache *redis.Client, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, cache: cache, logger: logger}
}

func (s *CategoryService) Create(ctx context.Context, req dto.CreateCategoryRequest) (*model.Category, error) {
	categorySlug := req.Slug
	if categorySlug == "" {
		categorySlug = slug.Make(req.Name)
	}
	existing, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCategorySlugExists
	}

	category := &model.Category{
		Name:      req.Name,
		Slug:      categorySlug,
		SortOrder: req.SortOrder,
		IsVisible: true,
	}
	if req.IsVisible != nil {
		category.IsVisible = *req.IsVisible
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return category, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}

// GetBySlug serves the storefront category page and is cached.
func (s *CategoryService) GetBySlug(ctx context.Context, categorySlug string) (*model.Category, error) {
	key := categoryCachePrefix + "slug:" + categorySlug
	if category, ok := cacheGet[model.Category](ctx, s.cache, key); ok {
		return category, nil
	}

	category, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	cacheSet(ctx, s.cache, key, category, categoryCacheTTL)
	return category, nil
}

func (s *CategoryService) List(ctx context.Context, onlyVisible bool) ([]model.Category, error) {
	key := fmt.Sprintf("%slist:%t", categoryCachePrefix, onlyVisible)
	if categories, ok := cacheGet[[]model.Category](ctx, s.cache, key); ok {
		return *categories, nil
	}

	categories, err := s.categories.List(ctx, onlyVisible)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, s.cache, key, categories, categoryCacheTTL)
	return categories, nil
}

func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateCategoryRequest) (*model.Category, error) {
	category, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Slug != nil && *req.Slug != category.Slug {
		existing, err := s.categories.GetBySlug(ctx, *req.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != category.ID {
			return nil, ErrCategorySlugExists
		}
		category.Slug = *req.Slug
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}
	if req.IsVisible != nil {
		category.IsVisible = *req.IsVisible
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return category, nil
}

func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CategoryService) invalidate(ctx context.Context) {
	if err := invalidatePrefix(ctx, s.cache, categoryCachePrefix); err != nil {
		s.logger.Warn("category cache invalidation failed", "error", err)
	}
}
