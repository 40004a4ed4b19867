package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
)

type orderFixture struct {
	orders   *mockOrderRepo
	carts    *mockCartRepo
	products *mockProductRepo
	users    *mockUserRepo
	promos   *mockPromoRepo
	svc      *OrderService
	userID   uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		orders:   newMockOrderRepo(),
		carts:    newMockCartRepo(),
		products: newMockProductRepo(),
		users:    newMockUserRepo(),
		promos:   newMockPromoRepo(),
	}
	f.svc = NewOrderService(f.orders, f.carts, f.products, f.users, NewPromotionService(f.promos), nil, testLogger())

	user := &model.User{Email: "buyer@example.com", FirstName: "Ann", Role: model.RoleCustomer}
	require.NoError(t, f.users.Create(context.Background(), user))
	f.userID = user.ID
	return f
}

// fillCart puts quantity units of a fresh product into the user's cart
// and returns the product.
func (f *orderFixture) fillCart(t *testing.T, price int64, stock, quantity int) *model.Product {
	t.Helper()
	product := activeProduct(price, stock)
	product.Slug = fmt.Sprintf("shoes-%s", product.ID)
	f.products.products[product.ID] = product

	cart, err := f.carts.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	if cart == nil {
		cart = &model.Cart{UserID: &f.userID, ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, f.carts.Create(context.Background(), cart))
	}
	require.NoError(t, f.carts.AddItem(context.Background(), &model.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		VariantID: "v1",
		Quantity:  quantity,
		Price:     decimal.NewFromInt(price),
	}))
	return product
}

func courierOrder() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		ShippingMethod: "courier",
		PaymentMethod:  "card",
		ShippingAddress: &dto.AddressRequest{
			FirstName: "Ann", LastName: "Lee", Phone: "+123",
			City: "Riga", Street: "Main", Building: "1", PostalCode: "LV-1001",
		},
	}
}

func TestOrderService_Create(t *testing.T) {
	f := newOrderFixture(t)
	p1 := f.fillCart(t, 1000, 5, 2)
	p2 := f.fillCart(t, 500, 5, 1)

	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("SP-%d-%06d", time.Now().Year(), 1), order.OrderNumber)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(2500)))
	assert.True(t, order.Shipping.Equal(decimal.NewFromInt(500)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(3000)))
	require.Len(t, order.History, 1)
	assert.Equal(t, model.OrderPending, order.History[0].Status)

	// Stock is reserved and the sold counters move.
	assert.Equal(t, 3, p1.FindVariant("v1").Stock)
	assert.Equal(t, 4, p2.FindVariant("v1").Stock)
	assert.Equal(t, 2, p1.SoldCount)

	// The cart is emptied after checkout.
	cart, err := f.carts.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.PromoCode)
}

func TestOrderService_Create_EmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestOrderService_Create_UnknownShippingMethodShipsFree(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	req := courierOrder()
	req.ShippingMethod = "drone"
	order, err := f.svc.Create(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.True(t, order.Shipping.IsZero())
	assert.True(t, order.Total.Equal(decimal.NewFromInt(1000)), "got %s", order.Total)
}

func TestOrderService_Create_FailedPersistLeavesStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.fillCart(t, 1000, 5, 2)
	f.orders.createErr = fmt.Errorf("connection reset")

	_, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.Error(t, err)

	// Nothing was persisted, so no units may have moved.
	assert.Equal(t, 5, product.FindVariant("v1").Stock)
	assert.Equal(t, 0, product.SoldCount)
	cart, err := f.carts.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestOrderService_Create_InlineAddressGetsID(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)

	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	assert.Regexp(t, "^addr-", order.ShippingAddress.ID)
}

func TestOrderService_Create_AddressRequired(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	req := courierOrder()
	req.ShippingAddress = nil
	_, err := f.svc.Create(context.Background(), f.userID, req)
	assert.ErrorIs(t, err, ErrAddressRequired)
}

func TestOrderService_Create_AddressFromBook(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)

	user, err := f.users.GetByID(context.Background(), f.userID)
	require.NoError(t, err)
	user.Addresses = []model.Address{{ID: "addr-1", FirstName: "Ann", City: "Riga"}}

	addrID := "addr-1"
	req := courierOrder()
	req.ShippingAddress = nil
	req.ShippingAddressID = &addrID

	order, err := f.svc.Create(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.Equal(t, "Riga", order.ShippingAddress.City)

	req.ShippingAddressID = new(string)
	*req.ShippingAddressID = "missing"
	f.fillCart(t, 1000, 5, 1)
	_, err = f.svc.Create(context.Background(), f.userID, req)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestOrderService_Create_WithPromo(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 500, 10, 2)
	promo := activePromo("SAVE10", model.PromoPercentage, 10)
	f.promos.promos[promo.ID] = promo

	req := courierOrder()
	req.PromoCode = "SAVE10"
	order, err := f.svc.Create(context.Background(), f.userID, req)
	require.NoError(t, err)

	assert.True(t, order.Discount.Equal(decimal.NewFromInt(100)), "got %s", order.Discount)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(1400)), "got %s", order.Total)
	require.NotNil(t, order.PromoCode)
	assert.Equal(t, "SAVE10", *order.PromoCode)

	// Usage is recorded once the order exists.
	assert.Equal(t, 1, promo.UsedCount)
	assert.Equal(t, 1, promo.UserUsage[f.userID.String()])
}

func TestOrderService_Create_InvalidPromoDropped(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 500, 10, 2)

	req := courierOrder()
	req.PromoCode = "EXPIRED"
	order, err := f.svc.Create(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.True(t, order.Discount.IsZero())
	assert.Nil(t, order.PromoCode)
}

func TestOrderService_Create_StoredCartPromoNotApplied(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 500, 10, 2)
	promo := activePromo("SAVE10", model.PromoPercentage, 10)
	f.promos.promos[promo.ID] = promo

	cart, err := f.carts.GetByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	code := "SAVE10"
	discount := decimal.NewFromInt(100)
	require.NoError(t, f.carts.SetPromo(context.Background(), cart.ID, &code, &discount))

	// Only a code carried by the checkout request counts.
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	assert.True(t, order.Discount.IsZero())
	assert.Nil(t, order.PromoCode)
	assert.Equal(t, 0, promo.UsedCount)
}

func TestOrderService_Create_FreeShipping(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 500, 10, 2)
	promo := activePromo("SHIPFREE", model.PromoFreeShipping, 0)
	f.promos.promos[promo.ID] = promo

	req := courierOrder()
	req.PromoCode = "SHIPFREE"
	order, err := f.svc.Create(context.Background(), f.userID, req)
	require.NoError(t, err)
	assert.True(t, order.Shipping.IsZero())
	assert.True(t, order.Total.Equal(decimal.NewFromInt(1000)), "got %s", order.Total)
}

func TestOrderService_Create_SequentialNumbers(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 500, 10, 1)
	first, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	f.fillCart(t, 500, 10, 1)
	second, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("SP-%d-%06d", year, 1), first.OrderNumber)
	assert.Equal(t, fmt.Sprintf("SP-%d-%06d", year, 2), second.OrderNumber)
}

func TestOrderService_Cancel_RestoresStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.fillCart(t, 1000, 5, 2)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	require.Equal(t, 3, product.FindVariant("v1").Stock)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID, f.userID, false, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 5, product.FindVariant("v1").Stock)
	assert.Equal(t, 0, product.SoldCount)

	require.Len(t, cancelled.History, 2)
	assert.Equal(t, model.OrderCancelled, cancelled.History[1].Status)
	assert.Equal(t, "cancelled by customer", cancelled.History[1].Comment)
}

func TestOrderService_Cancel_TooLate(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	order.Status = model.OrderShipped

	_, err = f.svc.Cancel(context.Background(), order.ID, f.userID, false, "")
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestOrderService_Cancel_StaffBypassesTransitions(t *testing.T) {
	f := newOrderFixture(t)
	product := f.fillCart(t, 1000, 5, 2)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)
	order.Status = model.OrderShipped

	staffID := uuid.New()
	cancelled, err := f.svc.Cancel(context.Background(), order.ID, staffID, true, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, cancelled.Status)
	assert.Equal(t, 5, product.FindVariant("v1").Stock)
	assert.Equal(t, "cancelled by administrator", cancelled.History[len(cancelled.History)-1].Comment)
}

func TestOrderService_Cancel_AlreadyCancelled(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), order.ID, f.userID, false, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), order.ID, uuid.New(), true, "")
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestOrderService_Cancel_OtherUsersOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), order.ID, uuid.New(), false, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	// Skipping confirmed is not allowed.
	_, err = f.svc.UpdateStatus(context.Background(), order.ID, model.OrderProcessing, "", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	updated, err := f.svc.UpdateStatus(context.Background(), order.ID, model.OrderConfirmed, "payment checked", nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, updated.Status)

	updated, err = f.svc.UpdateStatus(context.Background(), order.ID, model.OrderProcessing, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, updated.Status)
	assert.Len(t, updated.History, 3)
}

func TestOrderService_GetByID_Visibility(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), order.ID, uuid.New(), false)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := f.svc.GetByID(context.Background(), order.ID, uuid.New(), true)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestOrderService_UpdatePaymentStatus(t *testing.T) {
	f := newOrderFixture(t)
	f.fillCart(t, 1000, 5, 1)
	order, err := f.svc.Create(context.Background(), f.userID, courierOrder())
	require.NoError(t, err)

	updated, err := f.svc.UpdatePaymentStatus(context.Background(), order.ID, model.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, updated.PaymentStatus)
}
