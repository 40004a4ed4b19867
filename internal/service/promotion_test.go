package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
)

func snapshotOf(total int64) CartSnapshot {
	return CartSnapshot{
		CartTotal: decimal.NewFromInt(total),
		Items: []SnapshotItem{{
			ProductID: uuid.New(),
			Price:     decimal.NewFromInt(total),
			Quantity:  1,
		}},
	}
}

func TestPromotionService_Validate(t *testing.T) {
	repo := newMockPromoRepo()
	promo := activePromo("SAVE10", model.PromoPercentage, 10)
	repo.promos[promo.ID] = promo
	svc := NewPromotionService(repo)

	result, err := svc.Validate(context.Background(), "save10", nil, snapshotOf(1000))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "SAVE10", result.Code)
	assert.True(t, result.Discount.Equal(decimal.NewFromInt(100)), "got %s", result.Discount)
}

func TestPromotionService_Validate_NotFound(t *testing.T) {
	svc := NewPromotionService(newMockPromoRepo())
	result, err := svc.Validate(context.Background(), "NOPE", nil, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestPromotionService_Validate_Inactive(t *testing.T) {
	repo := newMockPromoRepo()
	promo := activePromo("SAVE10", model.PromoPercentage, 10)
	promo.IsActive = false
	repo.promos[promo.ID] = promo
	svc := NewPromotionService(repo)

	result, err := svc.Validate(context.Background(), "SAVE10", nil, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestPromotionService_Validate_OutsideWindow(t *testing.T) {
	repo := newMockPromoRepo()
	early := activePromo("EARLY", model.PromoPercentage, 10)
	early.StartDate = time.Now().Add(time.Hour)
	early.EndDate = time.Now().Add(2 * time.Hour)
	repo.promos[early.ID] = early
	late := activePromo("LATE", model.PromoPercentage, 10)
	late.StartDate = time.Now().Add(-2 * time.Hour)
	late.EndDate = time.Now().Add(-time.Hour)
	repo.promos[late.ID] = late
	svc := NewPromotionService(repo)

	result, err := svc.Validate(context.Background(), "EARLY", nil, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = svc.Validate(context.Background(), "LATE", nil, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestPromotionService_Validate_UsageLimits(t *testing.T) {
	repo := newMockPromoRepo()
	promo := activePromo("ONCE", model.PromoPercentage, 10)
	limit := 1
	promo.UsageLimitPerUser = &limit
	repo.promos[promo.ID] = promo
	svc := NewPromotionService(repo)

	userID := uuid.New()
	result, err := svc.Validate(context.Background(), "ONCE", &userID, snapshotOf(1000))
	require.NoError(t, err)
	assert.True(t, result.Valid)

	require.NoError(t, svc.ApplyUsage(context.Background(), "ONCE", &userID))

	result, err = svc.Validate(context.Background(), "ONCE", &userID, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)

	// A different user is still allowed.
	otherID := uuid.New()
	result, err = svc.Validate(context.Background(), "ONCE", &otherID, snapshotOf(1000))
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// Global limit trumps everything.
	global := 1
	promo.UsageLimit = &global
	result, err = svc.Validate(context.Background(), "ONCE", &otherID, snapshotOf(1000))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestPromotionService_Validate_MinOrderAmount(t *testing.T) {
	repo := newMockPromoRepo()
	promo := activePromo("BIG", model.PromoPercentage, 10)
	min := decimal.NewFromInt(500)
	promo.MinOrderAmount = &min
	repo.promos[promo.ID] = promo
	svc := NewPromotionService(repo)

	result, err := svc.Validate(context.Background(), "BIG", nil, snapshotOf(499))
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = svc.Validate(context.Background(), "BIG", nil, snapshotOf(500))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestPromotionService_Validate_ProductScope(t *testing.T) {
	repo := newMockPromoRepo()
	allowed := uuid.New()
	promo := activePromo("SHOES", model.PromoPercentage, 10)
	promo.ProductIDs = []uuid.UUID{allowed}
	repo.promos[promo.ID] = promo
	svc := NewPromotionService(repo)

	snap := snapshotOf(1000)
	result, err := svc.Validate(context.Background(), "SHOES", nil, snap)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	snap.Items[0].ProductID = allowed
	result, err = svc.Validate(context.Background(), "SHOES", nil, snap)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCalculateDiscount_PercentageCapped(t *testing.T) {
	promo := activePromo("HALF", model.PromoPercentage, 50)
	items := []SnapshotItem{{Price: decimal.NewFromInt(1000), Quantity: 1}}

	discount := CalculateDiscount(promo, items)
	assert.True(t, discount.Equal(decimal.NewFromInt(500)), "got %s", discount)

	cap := decimal.NewFromInt(50)
	promo.MaxDiscount = &cap
	discount = CalculateDiscount(promo, items)
	assert.True(t, discount.Equal(decimal.NewFromInt(50)), "got %s", discount)
}

func TestCalculateDiscount_FixedNeverExceedsTotal(t *testing.T) {
	promo := activePromo("MINUS300", model.PromoFixed, 300)
	items := []SnapshotItem{{Price: decimal.NewFromInt(200), Quantity: 1}}
	discount := CalculateDiscount(promo, items)
	assert.True(t, discount.Equal(decimal.NewFromInt(200)), "got %s", discount)

	items[0].Price = decimal.NewFromInt(900)
	discount = CalculateDiscount(promo, items)
	assert.True(t, discount.Equal(decimal.NewFromInt(300)), "got %s", discount)
}

func TestCalculateDiscount_FreeShipping(t *testing.T) {
	promo := activePromo("SHIPFREE", model.PromoFreeShipping, 0)
	items := []SnapshotItem{{Price: decimal.NewFromInt(1000), Quantity: 2}}
	assert.True(t, CalculateDiscount(promo, items).IsZero())
}

func TestPromotionService_Create(t *testing.T) {
	svc := NewPromotionService(newMockPromoRepo())
	promo, err := svc.Create(context.Background(), dto.CreatePromotionRequest{
		Code:      "save10",
		Name:      "Ten percent",
		Type:      string(model.PromoPercentage),
		Value:     decimal.NewFromInt(10),
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", promo.Code)
	assert.True(t, promo.IsActive)

	_, err = svc.Create(context.Background(), dto.CreatePromotionRequest{
		Code:  "SAVE10",
		Type:  string(model.PromoPercentage),
		Value: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ErrPromoCodeExists)
}

func TestPromotionService_Create_PercentageOver100(t *testing.T) {
	svc := NewPromotionService(newMockPromoRepo())
	_, err := svc.Create(context.Background(), dto.CreatePromotionRequest{
		Code:  "TOOBIG",
		Type:  string(model.PromoPercentage),
		Value: decimal.NewFromInt(150),
	})
	assert.ErrorIs(t, err, ErrPromoBadValue)
}
