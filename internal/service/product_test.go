package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
)

func newProductService(products *mockProductRepo, categories *mockCategoryRepo) *ProductService {
	return NewProductService(products, categories, nil, testLogger())
}

func shoesCategory(categories *mockCategoryRepo) *model.Category {
	category := &model.Category{ID: uuid.New(), Name: "Shoes", Slug: "shoes", IsVisible: true}
	categories.categories[category.ID] = category
	return category
}

func createProductRequest(categoryID uuid.UUID) dto.CreateProductRequest {
	return dto.CreateProductRequest{
		Name:        "Trail Runner Pro",
		Description: "Cushioned trail shoe",
		Price:       decimal.NewFromInt(4500),
		CategoryID:  categoryID,
		Variants: []dto.VariantPayload{
			{ID: "v1", Size: "42", Color: "black", SKU: "TRP-42-BLK", Stock: 5},
		},
	}
}

func TestProductService_Create(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	product, err := svc.Create(context.Background(), createProductRequest(category.ID))
	require.NoError(t, err)
	assert.Equal(t, "trail-runner-pro", product.Slug)
	assert.Equal(t, model.ProductDraft, product.Status)
	assert.True(t, product.IsVisible)
	assert.True(t, strings.HasPrefix(product.SKU, "PRD-"), "got %s", product.SKU)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, 5, product.Variants[0].Stock)
}

func TestProductService_Create_CategoryNotFound(t *testing.T) {
	svc := newProductService(newMockProductRepo(), newMockCategoryRepo())
	_, err := svc.Create(context.Background(), createProductRequest(uuid.New()))
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestProductService_Create_DuplicateSKU(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	req := createProductRequest(category.ID)
	req.SKU = "FIXED-SKU"
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, ErrSKUExists)
}

func TestProductService_Create_SlugCollision(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	first, err := svc.Create(context.Background(), createProductRequest(category.ID))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), createProductRequest(category.ID))
	require.NoError(t, err)

	assert.NotEqual(t, first.Slug, second.Slug)
	assert.True(t, strings.HasPrefix(second.Slug, "trail-runner-pro-"), "got %s", second.Slug)
}

func TestProductService_Update_SKUConflict(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	req := createProductRequest(category.ID)
	req.SKU = "SKU-A"
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	req.SKU = "SKU-B"
	second, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	taken := "SKU-A"
	_, err = svc.Update(context.Background(), second.ID, dto.UpdateProductRequest{SKU: &taken})
	assert.ErrorIs(t, err, ErrSKUExists)
}

func TestProductService_BulkUpdateStatus_Invalid(t *testing.T) {
	svc := newProductService(newMockProductRepo(), newMockCategoryRepo())
	err := svc.BulkUpdateStatus(context.Background(), []uuid.UUID{uuid.New()}, "published")
	assert.Error(t, err)
}

func TestProductService_SetVariantStock(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	product, err := svc.Create(context.Background(), createProductRequest(category.ID))
	require.NoError(t, err)

	updated, err := svc.SetVariantStock(context.Background(), product.ID, "v1", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.FindVariant("v1").Stock)

	_, err = svc.SetVariantStock(context.Background(), product.ID, "missing", 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestProductService_Related_ClampsLimit(t *testing.T) {
	products, categories := newMockProductRepo(), newMockCategoryRepo()
	category := shoesCategory(categories)
	svc := newProductService(products, categories)

	base, err := svc.Create(context.Background(), createProductRequest(category.ID))
	require.NoError(t, err)
	base.Status = model.ProductActive

	for i := 0; i < 6; i++ {
		p, err := svc.Create(context.Background(), createProductRequest(category.ID))
		require.NoError(t, err)
		p.Status = model.ProductActive
	}

	related, err := svc.Related(context.Background(), base.ID, 0)
	require.NoError(t, err)
	assert.Len(t, related, 4)
}
