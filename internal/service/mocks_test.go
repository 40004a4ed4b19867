package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) GetBySKU(_ context.Context, sku string) (*model.Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int, error) {
	var out []model.Product
	for _, p := range m.products {
		if f.OnlyActive && (p.Status != model.ProductActive || !p.IsVisible) {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockProductRepo) FindRelated(_ context.Context, id, categoryID uuid.UUID, limit int) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if p.ID == id || p.CategoryID != categoryID || p.Status != model.ProductActive {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) BulkDelete(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(m.products, id)
	}
	return nil
}

func (m *mockProductRepo) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status model.ProductStatus) error {
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			p.Status = status
		}
	}
	return nil
}

func (m *mockProductRepo) SetVariantStock(_ context.Context, productID uuid.UUID, variantID string, stock int) error {
	p, ok := m.products[productID]
	if !ok {
		return pgx.ErrNoRows
	}
	v := p.FindVariant(variantID)
	if v == nil {
		return pgx.ErrNoRows
	}
	v.Stock = stock
	return nil
}

func (m *mockProductRepo) DecrementVariantStock(_ context.Context, productID uuid.UUID, variantID string, quantity int) error {
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrInsufficientStock
	}
	v := p.FindVariant(variantID)
	if v == nil || v.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	v.Stock -= quantity
	return nil
}

func (m *mockProductRepo) IncrementVariantStock(_ context.Context, productID uuid.UUID, variantID string, quantity int) error {
	p, ok := m.products[productID]
	if !ok {
		return pgx.ErrNoRows
	}
	v := p.FindVariant(variantID)
	if v == nil {
		return pgx.ErrNoRows
	}
	v.Stock += quantity
	return nil
}

func (m *mockProductRepo) IncrementSoldCount(_ context.Context, id uuid.UUID, quantity int) error {
	if p, ok := m.products[id]; ok {
		p.SoldCount += quantity
	}
	return nil
}

func (m *mockProductRepo) UpdateRating(_ context.Context, id uuid.UUID, rating decimal.Decimal, count int) error {
	if p, ok := m.products[id]; ok {
		p.Rating = rating
		p.ReviewsCount = count
	}
	return nil
}

func (m *mockProductRepo) Count(_ context.Context) (int, error) {
	return len(m.products), nil
}

type mockCartRepo struct {
	carts map[uuid.UUID]*model.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[uuid.UUID]*model.Cart)}
}

func (m *mockCartRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	for _, c := range m.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) GetBySessionID(_ context.Context, sessionID string) (*model.Cart, error) {
	for _, c := range m.carts {
		if c.SessionID != nil && *c.SessionID == sessionID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) Create(_ context.Context, cart *model.Cart) error {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	cart.CreatedAt = time.Now()
	m.carts[cart.ID] = cart
	return nil
}

func (m *mockCartRepo) SetOwner(_ context.Context, cartID, userID uuid.UUID, expiresAt time.Time) error {
	cart, ok := m.carts[cartID]
	if !ok {
		return pgx.ErrNoRows
	}
	cart.UserID = &userID
	cart.SessionID = nil
	cart.ExpiresAt = expiresAt
	return nil
}

func (m *mockCartRepo) AddItem(_ context.Context, item *model.CartItem) error {
	cart, ok := m.carts[item.CartID]
	if !ok {
		return pgx.ErrNoRows
	}
	if existing := cart.FindItem(item.ProductID, item.VariantID); existing != nil {
		existing.Quantity = item.Quantity
		existing.Price = item.Price
		item.ID = existing.ID
		return nil
	}
	item.ID = uuid.New()
	item.AddedAt = time.Now()
	cart.Items = append(cart.Items, *item)
	return nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error {
	for _, cart := range m.carts {
		if item := cart.FindItemByID(itemID); item != nil {
			item.Quantity = quantity
			item.Price = price
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockCartRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	for _, cart := range m.carts {
		for i := range cart.Items {
			if cart.Items[i].ID == itemID {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *mockCartRepo) ClearItems(_ context.Context, cartID uuid.UUID) error {
	if cart, ok := m.carts[cartID]; ok {
		cart.Items = nil
	}
	return nil
}

func (m *mockCartRepo) SetPromo(_ context.Context, cartID uuid.UUID, code *string, discount *decimal.Decimal) error {
	cart, ok := m.carts[cartID]
	if !ok {
		return pgx.ErrNoRows
	}
	cart.PromoCode = code
	cart.PromoDiscount = discount
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, cartID uuid.UUID) error {
	delete(m.carts, cartID)
	return nil
}

func (m *mockCartRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, cart := range m.carts {
		if cart.ExpiresAt.Before(now) {
			delete(m.carts, id)
			n++
		}
	}
	return n, nil
}

type mockOrderRepo struct {
	orders    map[uuid.UUID]*model.Order
	seq       map[int]int
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order), seq: make(map[int]int)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*model.Order, error) {
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range m.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus, history []model.OrderHistoryEntry) error {
	order, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	order.Status = status
	order.History = history
	return nil
}

func (m *mockOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus) error {
	order, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	order.PaymentStatus = status
	return nil
}

func (m *mockOrderRepo) NextOrderNumber(_ context.Context, year int) (int, error) {
	m.seq[year]++
	return m.seq[year], nil
}

func (m *mockOrderRepo) Stats(_ context.Context, from, to *time.Time) (*repository.OrderStats, error) {
	stats := &repository.OrderStats{
		OrdersByStatus:        make(map[string]int),
		OrdersByPaymentStatus: make(map[string]int),
	}
	paid := 0
	for _, o := range m.orders {
		if from != nil && o.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && o.CreatedAt.After(*to) {
			continue
		}
		stats.TotalOrders++
		stats.OrdersByStatus[string(o.Status)]++
		stats.OrdersByPaymentStatus[string(o.PaymentStatus)]++
		if o.PaymentStatus == model.PaymentPaid {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
			paid++
		}
	}
	if paid > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(paid))).Round(2)
	}
	return stats, nil
}

type mockPromoRepo struct {
	promos map[uuid.UUID]*model.Promotion
}

func newMockPromoRepo() *mockPromoRepo {
	return &mockPromoRepo{promos: make(map[uuid.UUID]*model.Promotion)}
}

func (m *mockPromoRepo) Create(_ context.Context, promo *model.Promotion) error {
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	m.promos[promo.ID] = promo
	return nil
}

func (m *mockPromoRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Promotion, error) {
	return m.promos[id], nil
}

func (m *mockPromoRepo) GetByCode(_ context.Context, code string) (*model.Promotion, error) {
	upper := strings.ToUpper(code)
	for _, p := range m.promos {
		if p.Code == upper {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPromoRepo) List(_ context.Context) ([]model.Promotion, error) {
	var out []model.Promotion
	for _, p := range m.promos {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPromoRepo) Update(_ context.Context, promo *model.Promotion) error {
	m.promos[promo.ID] = promo
	return nil
}

func (m *mockPromoRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.promos, id)
	return nil
}

func (m *mockPromoRepo) IncrementUsage(_ context.Context, id uuid.UUID, userID *uuid.UUID) error {
	promo, ok := m.promos[id]
	if !ok {
		return pgx.ErrNoRows
	}
	promo.UsedCount++
	if userID != nil {
		if promo.UserUsage == nil {
			promo.UserUsage = make(map[string]int)
		}
		promo.UserUsage[userID.String()]++
	}
	return nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateAddresses(_ context.Context, id uuid.UUID, addresses []model.Address) error {
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Addresses = addresses
	return nil
}

func (m *mockUserRepo) UpdateWishlist(_ context.Context, id uuid.UUID, wishlist []uuid.UUID) error {
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Wishlist = wishlist
	return nil
}

type mockCategoryRepo struct {
	categories map[uuid.UUID]*model.Category
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[uuid.UUID]*model.Category)}
}

func (m *mockCategoryRepo) Create(_ context.Context, category *model.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	return m.categories[id], nil
}

func (m *mockCategoryRepo) GetBySlug(_ context.Context, slug string) (*model.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCategoryRepo) List(_ context.Context, onlyVisible bool) ([]model.Category, error) {
	var out []model.Category
	for _, c := range m.categories {
		if onlyVisible && !c.IsVisible {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCategoryRepo) Update(_ context.Context, category *model.Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.categories, id)
	return nil
}

type mockReviewRepo struct {
	reviews map[uuid.UUID]*model.Review
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[uuid.UUID]*model.Review)}
}

func (m *mockReviewRepo) Create(_ context.Context, review *model.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now()
	m.reviews[review.ID] = review
	return nil
}

func (m *mockReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Review, error) {
	return m.reviews[id], nil
}

func (m *mockReviewRepo) GetByProductAndUser(_ context.Context, productID, userID uuid.UUID) (*model.Review, error) {
	for _, r := range m.reviews {
		if r.ProductID == productID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockReviewRepo) List(_ context.Context, f repository.ReviewFilter) ([]model.Review, int, error) {
	var out []model.Review
	for _, r := range m.reviews {
		if f.ProductID != nil && r.ProductID != *f.ProductID {
			continue
		}
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.IsApproved != nil && r.IsApproved != *f.IsApproved {
			continue
		}
		if f.Rating != 0 && r.Rating != f.Rating {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockReviewRepo) Update(_ context.Context, review *model.Review) error {
	m.reviews[review.ID] = review
	return nil
}

func (m *mockReviewRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.reviews, id)
	return nil
}

func (m *mockReviewRepo) ProductRating(_ context.Context, productID uuid.UUID) (decimal.Decimal, int, error) {
	sum, count := 0, 0
	for _, r := range m.reviews {
		if r.ProductID == productID && r.IsApproved {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, 0, nil
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(count))).Round(1), count, nil
}
