package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrSKUExists        = errors.New("sku already exists")
)

const (
	productCachePrefix = "products:"
	productCacheTTL    = 5 * time.Minute
)

type ProductService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	cache      *redis.Client
	logger     *slog.Logger
}

func NewProductService(products repository.ProductRepository, categories repository.CategoryRepository, cache *redis.Client, logger *slog.Logger) *ProductService {
	return &ProductService{products: products, categories: categories, cache: cache, logger: logger}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*model.Product, error) {
	category, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	productSlug, err := s.uniqueSlug(ctx, req.Slug, req.Name)
	if err != nil {
		return nil, err
	}

	sku := req.SKU
	if sku == "" {
		sku = generateSKU()
	}
	existing, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSKUExists
	}

	status := model.ProductDraft
	if req.Status != "" {
		status = model.ProductStatus(req.Status)
	}

	product := &model.Product{
		ID:               uuid.New(),
		Name:             req.Name,
		Slug:             productSlug,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		SKU:              sku,
		Price:            req.Price,
		CompareAtPrice:   req.CompareAtPrice,
		CategoryID:       req.CategoryID,
		Tags:             req.Tags,
		Images:           req.Images,
		Variants:         toVariants(req.Variants),
		Status:           status,
		SEO:              req.SEO,
		IsVisible:        true,
		Rating:           decimal.Zero,
	}
	if req.IsVisible != nil {
		product.IsVisible = *req.IsVisible
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)
	return product, nil
}

func toVariants(payloads []dto.VariantPayload) []model.Variant {
	variants := make([]model.Variant, 0, len(payloads))
	for _, v := range payloads {
		variants = append(variants, model.Variant{
			ID:       v.ID,
			Size:     v.Size,
			Color:    v.Color,
			ColorHex: v.ColorHex,
			SKU:      v.SKU,
			Stock:    v.Stock,
			Price:    v.Price,
		})
	}
	return variants
}

// uniqueSlug derives a URL slug from the requested slug or the name and
// appends a short random suffix when the base is already taken.
func (s *ProductService) uniqueSlug(ctx context.Context, requested, name string) (string, error) {
	base := requested
	if base == "" {
		base = name
	}
	candidate := slug.Make(base)
	existing, err := s.products.GetBySlug(ctx, candidate)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return candidate, nil
	}
	return candidate + "-" + uuid.NewString()[:8], nil
}

func generateSKU() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return "PRD-" + strings.ToUpper(hex.EncodeToString(buf))
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	key := productCachePrefix + "id:" + id.String()
	if product, ok := cacheGet[model.Product](ctx, s.cache, key); ok {
		return product, nil
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	cacheSet(ctx, s.cache, key, product, productCacheTTL)
	return product, nil
}

// GetBySlug serves the storefront product page and is cached.
func (s *ProductService) GetBySlug(ctx context.Context, productSlug string) (*model.Product, error) {
	key := productCachePrefix + "slug:" + productSlug
	if product, ok := cacheGet[model.Product](ctx, s.cache, key); ok {
		return product, nil
	}

	product, err := s.products.GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	cacheSet(ctx, s.cache, key, product, productCacheTTL)
	return product, nil
}

type productPage struct {
	Products []model.Product `json:"products"`
	Total    int             `json:"total"`
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest, onlyActive bool) ([]model.Product, int, error) {
	key := fmt.Sprintf("%slist:%t:%s:%s:%s:%s:%s:%d:%d",
		productCachePrefix, onlyActive, req.Search, req.Status, req.Category,
		req.Sort, req.Order, req.Limit, req.Offset())
	if page, ok := cacheGet[productPage](ctx, s.cache, key); ok {
		return page.Products, page.Total, nil
	}

	filter := repository.ProductFilter{
		Search:     req.Search,
		Status:     req.Status,
		Sort:       req.Sort,
		Order:      req.Order,
		Limit:      req.Limit,
		Offset:     req.Offset(),
		OnlyActive: onlyActive,
	}
	if req.Category != "" {
		category, err := s.categories.GetBySlug(ctx, req.Category)
		if err != nil {
			return nil, 0, err
		}
		if category == nil {
			return nil, 0, ErrCategoryNotFound
		}
		filter.CategoryID = &category.ID
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cacheSet(ctx, s.cache, key, productPage{Products: products, Total: total}, productCacheTTL)
	return products, total, nil
}

// Related returns up to limit active products from the same category.
func (s *ProductService) Related(ctx context.Context, id uuid.UUID, limit int) ([]model.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 12 {
		limit = 4
	}
	return s.products.FindRelated(ctx, product.ID, product.CategoryID, limit)
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*model.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Slug != nil && *req.Slug != product.Slug {
		newSlug, err := s.uniqueSlug(ctx, *req.Slug, product.Name)
		if err != nil {
			return nil, err
		}
		product.Slug = newSlug
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ShortDescription != nil {
		product.ShortDescription = *req.ShortDescription
	}
	if req.SKU != nil && *req.SKU != product.SKU {
		existing, err := s.products.GetBySKU(ctx, *req.SKU)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != product.ID {
			return nil, ErrSKUExists
		}
		product.SKU = *req.SKU
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.CompareAtPrice != nil {
		product.CompareAtPrice = req.CompareAtPrice
	}
	if req.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *req.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, ErrCategoryNotFound
		}
		product.CategoryID = *req.CategoryID
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Variants != nil {
		product.Variants = toVariants(req.Variants)
	}
	if req.Status != nil {
		product.Status = model.ProductStatus(*req.Status)
	}
	if req.SEO != nil {
		product.SEO = *req.SEO
	}
	if req.IsVisible != nil {
		product.IsVisible = *req.IsVisible
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx)
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *ProductService) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	if err := s.products.BulkDelete(ctx, ids); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *ProductService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error {
	if !validProductStatus(status) {
		return fmt.Errorf("invalid product status %q", status)
	}
	if err := s.products.BulkUpdateStatus(ctx, ids, model.ProductStatus(status)); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func validProductStatus(status string) bool {
	switch model.ProductStatus(status) {
	case model.ProductDraft, model.ProductActive, model.ProductArchived:
		return true
	}
	return false
}

// SetVariantStock replaces the absolute stock level of one variant.
func (s *ProductService) SetVariantStock(ctx context.Context, productID uuid.UUID, variantID string, stock int) (*model.Product, error) {
	product, err := s.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FindVariant(variantID) == nil {
		return nil, ErrVariantNotFound
	}
	if err := s.products.SetVariantStock(ctx, productID, variantID, stock); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.GetByID(ctx, productID)
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := invalidatePrefix(ctx, s.cache, productCachePrefix); err != nil {
		s.logger.Warn("product cache invalidation failed", "error", err)
	}
}

// ToResponse maps a product to its API shape.
func ToProductResponse(p *model.Product) dto.ProductResponse {
	variants := make([]dto.VariantResponse, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, dto.VariantResponse{
			ID:       v.ID,
			Size:     v.Size,
			Color:    v.Color,
			ColorHex: v.ColorHex,
			SKU:      v.SKU,
			Stock:    v.Stock,
			Price:    v.Price,
		})
	}
	return dto.ProductResponse{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		SKU:              p.SKU,
		Price:            p.Price,
		CompareAtPrice:   p.CompareAtPrice,
		CategoryID:       p.CategoryID,
		Tags:             p.Tags,
		Images:           p.Images,
		Variants:         variants,
		Rating:           p.Rating,
		ReviewsCount:     p.ReviewsCount,
		SoldCount:        p.SoldCount,
		Status:           string(p.Status),
		SEO:              p.SEO,
		IsVisible:        p.IsVisible,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
