package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var (
	ErrPromoNotFound   = errors.New("promotion not found")
	ErrPromoCodeExists = errors.New("promotion code already exists")
	ErrPromoBadValue   = errors.New("percentage value cannot exceed 100")
)

// SnapshotItem is one cart line as seen by the evaluator. The evaluator
// never touches live carts, only snapshots handed to it.
type SnapshotItem struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Price      decimal.Decimal
	Quantity   int
}

type CartSnapshot struct {
	CartTotal decimal.Decimal
	Items     []SnapshotItem
}

type PromoValidation struct {
	Valid    bool
	Code     string
	Discount decimal.Decimal
	Type     model.PromotionType
	Message  string
}

type PromotionService struct {
	promoRepo repository.PromotionRepository
}

func NewPromotionService(promoRepo repository.PromotionRepository) *PromotionService {
	return &PromotionService{promoRepo: promoRepo}
}

// Validate checks a code against a cart snapshot, short-circuiting on the
// first failed rule. It never mutates usage counters; that happens in
// ApplyUsage after the order is durably created.
func (s *PromotionService) Validate(ctx context.Context, code string, userID *uuid.UUID, cart CartSnapshot) (*PromoValidation, error) {
	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	if promo == nil {
		return invalid("promo code not found"), nil
	}
	if !promo.IsActive {
		return invalid("promo code is not active"), nil
	}

	now := time.Now()
	if now.Before(promo.StartDate) {
		return invalid("promo code is not active yet"), nil
	}
	if now.After(promo.EndDate) {
		return invalid("promo code has expired"), nil
	}

	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return invalid("promo code usage limit reached"), nil
	}
	if userID != nil && promo.UsageLimitPerUser != nil {
		if promo.UserUsage[userID.String()] >= *promo.UsageLimitPerUser {
			return invalid("you have already used this promo code the maximum number of times"), nil
		}
	}

	if promo.MinOrderAmount != nil && cart.CartTotal.LessThan(*promo.MinOrderAmount) {
		return invalid(fmt.Sprintf("minimum order amount for this promo code is %s", promo.MinOrderAmount)), nil
	}

	applicable := applicableItems(promo, cart.Items)
	if len(applicable) == 0 && (len(promo.CategoryIDs) > 0 || len(promo.ProductIDs) > 0) {
		return invalid("promo code does not apply to items in the cart"), nil
	}

	return &PromoValidation{
		Valid:    true,
		Code:     promo.Code,
		Discount: CalculateDiscount(promo, applicable),
		Type:     promo.Type,
	}, nil
}

func invalid(msg string) *PromoValidation {
	return &PromoValidation{Valid: false, Discount: decimal.Zero, Message: msg}
}

// ApplyUsage is called once per created order. It is not transactional with
// order creation; a crash in between undercounts usage, which is accepted.
func (s *PromotionService) ApplyUsage(ctx context.Context, code string, userID *uuid.UUID) error {
	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("get promotion: %w", err)
	}
	if promo == nil {
		return ErrPromoNotFound
	}
	return s.promoRepo.IncrementUsage(ctx, promo.ID, userID)
}

// CalculateDiscount computes the monetary discount over the applicable
// items. Free-shipping promos yield zero here; the shipping waiver is
// applied by the order workflow.
func CalculateDiscount(promo *model.Promotion, items []SnapshotItem) decimal.Decimal {
	if promo.Type == model.PromoFreeShipping {
		return decimal.Zero
	}

	itemsTotal := decimal.Zero
	for _, item := range items {
		itemsTotal = itemsTotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	var discount decimal.Decimal
	if promo.Type == model.PromoPercentage {
		discount = itemsTotal.Mul(promo.Value).Div(decimal.NewFromInt(100))
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
	} else {
		discount = decimal.Min(promo.Value, itemsTotal)
	}
	return discount.Round(2)
}

// applicableItems filters by the exclude list first; a product allow-list
// takes precedence over a category allow-list; with neither set, every
// item qualifies.
func applicableItems(promo *model.Promotion, items []SnapshotItem) []SnapshotItem {
	applicable := items

	if len(promo.ExcludeProductIDs) > 0 {
		excluded := idSet(promo.ExcludeProductIDs)
		applicable = filterItems(applicable, func(it SnapshotItem) bool {
			return !excluded[it.ProductID]
		})
	}

	if len(promo.ProductIDs) > 0 {
		allowed := idSet(promo.ProductIDs)
		applicable = filterItems(applicable, func(it SnapshotItem) bool {
			return allowed[it.ProductID]
		})
	} else if len(promo.CategoryIDs) > 0 {
		allowed := idSet(promo.CategoryIDs)
		applicable = filterItems(applicable, func(it SnapshotItem) bool {
			return allowed[it.CategoryID]
		})
	}

	return applicable
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func filterItems(items []SnapshotItem, keep func(SnapshotItem) bool) []SnapshotItem {
	var out []SnapshotItem
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (s *PromotionService) Create(ctx context.Context, req dto.CreatePromotionRequest) (*model.Promotion, error) {
	code := strings.ToUpper(req.Code)

	existing, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("check code: %w", err)
	}
	if existing != nil {
		return nil, ErrPromoCodeExists
	}

	if model.PromotionType(req.Type) == model.PromoPercentage && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrPromoBadValue
	}

	promo := &model.Promotion{
		Code:              code,
		Name:              req.Name,
		Description:       req.Description,
		Type:              model.PromotionType(req.Type),
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscount:       req.MaxDiscount,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		CategoryIDs:       req.CategoryIDs,
		ProductIDs:        req.ProductIDs,
		ExcludeProductIDs: req.ExcludeProductIDs,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		IsActive:          req.IsActive == nil || *req.IsActive,
		UserUsage:         map[string]int{},
	}
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}
	return promo, nil
}

func (s *PromotionService) Update(ctx context.Context, id uuid.UUID, req dto.UpdatePromotionRequest) (*model.Promotion, error) {
	promo, err := s.promoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	if promo == nil {
		return nil, ErrPromoNotFound
	}

	if req.Code != nil {
		code := strings.ToUpper(*req.Code)
		existing, err := s.promoRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, ErrPromoCodeExists
		}
		promo.Code = code
	}
	if req.Name != nil {
		promo.Name = *req.Name
	}
	if req.Description != nil {
		promo.Description = *req.Description
	}
	if req.Type != nil {
		promo.Type = model.PromotionType(*req.Type)
	}
	if req.Value != nil {
		promo.Value = *req.Value
	}
	if req.MinOrderAmount != nil {
		promo.MinOrderAmount = req.MinOrderAmount
	}
	if req.MaxDiscount != nil {
		promo.MaxDiscount = req.MaxDiscount
	}
	if req.UsageLimit != nil {
		promo.UsageLimit = req.UsageLimit
	}
	if req.UsageLimitPerUser != nil {
		promo.UsageLimitPerUser = req.UsageLimitPerUser
	}
	if req.CategoryIDs != nil {
		promo.CategoryIDs = req.CategoryIDs
	}
	if req.ProductIDs != nil {
		promo.ProductIDs = req.ProductIDs
	}
	if req.ExcludeProductIDs != nil {
		promo.ExcludeProductIDs = req.ExcludeProductIDs
	}
	if req.StartDate != nil {
		promo.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		promo.EndDate = *req.EndDate
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}

	if promo.Type == model.PromoPercentage && promo.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrPromoBadValue
	}

	if err := s.promoRepo.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("update promotion: %w", err)
	}
	return promo, nil
}

func (s *PromotionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error) {
	promo, err := s.promoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	if promo == nil {
		return nil, ErrPromoNotFound
	}
	return promo, nil
}

func (s *PromotionService) List(ctx context.Context) ([]model.Promotion, error) {
	return s.promoRepo.List(ctx)
}

func (s *PromotionService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.promoRepo.Delete(ctx, id)
}
