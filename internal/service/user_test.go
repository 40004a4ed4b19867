package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
)

func homeAddress(isDefault bool) dto.AddressRequest {
	return dto.AddressRequest{
		Title: "Home", FirstName: "Ann", LastName: "Lee", Phone: "+123",
		City: "Riga", Street: "Main", Building: "1", PostalCode: "LV-1001",
		IsDefault: isDefault,
	}
}

func TestUserService_AddAddress_FirstBecomesDefault(t *testing.T) {
	users := newMockUserRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	svc := NewUserService(users)

	addresses, err := svc.AddAddress(context.Background(), user.ID, homeAddress(false))
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.True(t, addresses[0].IsDefault)
	assert.NotEmpty(t, addresses[0].ID)
}

func TestUserService_AddAddress_NewDefaultClearsOld(t *testing.T) {
	users := newMockUserRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	svc := NewUserService(users)

	_, err := svc.AddAddress(context.Background(), user.ID, homeAddress(false))
	require.NoError(t, err)
	work := homeAddress(true)
	work.Title = "Work"
	addresses, err := svc.AddAddress(context.Background(), user.ID, work)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	assert.False(t, addresses[0].IsDefault)
	assert.True(t, addresses[1].IsDefault)
}

func TestUserService_DeleteAddress_ReassignsDefault(t *testing.T) {
	users := newMockUserRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	svc := NewUserService(users)

	first, err := svc.AddAddress(context.Background(), user.ID, homeAddress(false))
	require.NoError(t, err)
	work := homeAddress(false)
	work.Title = "Work"
	_, err = svc.AddAddress(context.Background(), user.ID, work)
	require.NoError(t, err)

	addresses, err := svc.DeleteAddress(context.Background(), user.ID, first[0].ID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "Work", addresses[0].Title)
	assert.True(t, addresses[0].IsDefault)
}

func TestUserService_UpdateAddress_NotFound(t *testing.T) {
	users := newMockUserRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	svc := NewUserService(users)

	_, err := svc.UpdateAddress(context.Background(), user.ID, "missing", homeAddress(false))
	assert.ErrorIs(t, err, ErrAddressMissing)
}

func TestWishlistService(t *testing.T) {
	users, products, carts := newMockUserRepo(), newMockProductRepo(), newMockCartRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	product := activeProduct(1000, 5)
	products.products[product.ID] = product

	cartSvc := newCartService(carts, products, newMockPromoRepo())
	svc := NewWishlistService(users, products, cartSvc)

	resp, err := svc.Add(context.Background(), user.ID, product.ID)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.True(t, resp.Items[0].InStock)

	// Adding twice stays a single entry.
	resp, err = svc.Add(context.Background(), user.ID, product.ID)
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)

	resp, err = svc.Remove(context.Background(), user.ID, product.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestWishlistService_Get_SkipsInactive(t *testing.T) {
	users, products := newMockUserRepo(), newMockProductRepo()
	product := activeProduct(1000, 5)
	product.Status = model.ProductArchived
	products.products[product.ID] = product
	user := &model.User{Email: "a@b.com", Wishlist: []uuid.UUID{product.ID, uuid.New()}}
	require.NoError(t, users.Create(context.Background(), user))

	svc := NewWishlistService(users, products, nil)
	resp, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Total)
}

func TestWishlistService_MoveToCart(t *testing.T) {
	users, products, carts := newMockUserRepo(), newMockProductRepo(), newMockCartRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	product := activeProduct(1000, 5)
	products.products[product.ID] = product

	cartSvc := newCartService(carts, products, newMockPromoRepo())
	svc := NewWishlistService(users, products, cartSvc)

	_, err := svc.Add(context.Background(), user.ID, product.ID)
	require.NoError(t, err)

	resp, err := svc.MoveToCart(context.Background(), user.ID, product.ID, "v1")
	require.NoError(t, err)
	assert.Empty(t, resp.Items)

	cart, err := carts.GetByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestWishlistService_MoveToCart_OutOfStockKeepsWishlist(t *testing.T) {
	users, products, carts := newMockUserRepo(), newMockProductRepo(), newMockCartRepo()
	user := &model.User{Email: "a@b.com"}
	require.NoError(t, users.Create(context.Background(), user))
	product := activeProduct(1000, 0)
	products.products[product.ID] = product

	cartSvc := newCartService(carts, products, newMockPromoRepo())
	svc := NewWishlistService(users, products, cartSvc)

	_, err := svc.Add(context.Background(), user.ID, product.ID)
	require.NoError(t, err)

	_, err = svc.MoveToCart(context.Background(), user.ID, product.ID, "v1")
	assert.ErrorIs(t, err, ErrOutOfStock)

	resp, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
}
