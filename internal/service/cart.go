package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrOutOfStock       = errors.New("not enough stock")
	ErrQuantityExceeded = errors.New("quantity limit exceeded")
	ErrPromoNotValid    = errors.New("promo code is not valid")
)

// CartOwner identifies whose cart we operate on. Exactly one of the
// two fields is set: UserID for authenticated requests, SessionID for
// anonymous ones.
type CartOwner struct {
	UserID    *uuid.UUID
	SessionID *string
}

func UserOwner(id uuid.UUID) CartOwner  { return CartOwner{UserID: &id} }
func SessionOwner(sid string) CartOwner { return CartOwner{SessionID: &sid} }

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	promos   *PromotionService
	logger   *slog.Logger
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, promos *PromotionService, logger *slog.Logger) *CartService {
	return &CartService{carts: carts, products: products, promos: promos, logger: logger}
}

func (s *CartService) ttl(owner CartOwner) time.Duration {
	if owner.UserID != nil {
		return model.AuthCartTTLDays * 24 * time.Hour
	}
	return model.GuestCartTTLDays * 24 * time.Hour
}

func (s *CartService) find(ctx context.Context, owner CartOwner) (*model.Cart, error) {
	if owner.UserID != nil {
		return s.carts.GetByUserID(ctx, *owner.UserID)
	}
	if owner.SessionID != nil {
		return s.carts.GetBySessionID(ctx, *owner.SessionID)
	}
	return nil, nil
}

func (s *CartService) getOrCreate(ctx context.Context, owner CartOwner) (*model.Cart, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart = &model.Cart{
		ID:        uuid.New(),
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		ExpiresAt: time.Now().Add(s.ttl(owner)),
	}
	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// Get returns the owner's cart, creating an empty one on first access.
func (s *CartService) Get(ctx context.Context, owner CartOwner) (*dto.CartResponse, error) {
	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, cart)
}

// AddItem adds a product variant to the cart or raises the quantity of
// an existing line. Stock and the per-line cap are checked against the
// resulting quantity, and a failed check leaves the cart unchanged.
func (s *CartService) AddItem(ctx context.Context, owner CartOwner, req dto.AddCartItemRequest) (*dto.CartResponse, error) {
	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil || product.Status != model.ProductActive {
		return nil, ErrProductNotFound
	}
	variant := product.FindVariant(req.VariantID)
	if variant == nil {
		return nil, ErrVariantNotFound
	}

	cart, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if existing := cart.FindItem(req.ProductID, req.VariantID); existing != nil {
		quantity += existing.Quantity
	}
	if quantity > model.MaxLineQuantity {
		return nil, ErrQuantityExceeded
	}
	if quantity > variant.Stock {
		return nil, ErrOutOfStock
	}

	item := &model.CartItem{
		CartID:    cart.ID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  quantity,
		Price:     variant.EffectivePrice(product),
	}
	if err := s.carts.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.refresh(ctx, owner)
}

// UpdateItem sets the quantity of a cart line. Zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, owner CartOwner, itemID uuid.UUID, quantity int) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	var item *model.CartItem
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			item = &cart.Items[i]
			break
		}
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}

	if quantity == 0 {
		if err := s.carts.DeleteItem(ctx, itemID); err != nil {
			return nil, err
		}
		return s.refresh(ctx, owner)
	}
	if quantity > model.MaxLineQuantity {
		return nil, ErrQuantityExceeded
	}

	product, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	variant := product.FindVariant(item.VariantID)
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	if quantity > variant.Stock {
		return nil, ErrOutOfStock
	}

	price := variant.EffectivePrice(product)
	if err := s.carts.UpdateItemQuantity(ctx, itemID, quantity, price); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return s.refresh(ctx, owner)
}

func (s *CartService) RemoveItem(ctx context.Context, owner CartOwner, itemID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if cart.FindItemByID(itemID) == nil {
		return nil, ErrCartItemNotFound
	}
	if err := s.carts.DeleteItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.refresh(ctx, owner)
}

func (s *CartService) Clear(ctx context.Context, owner CartOwner) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	if err := s.carts.SetPromo(ctx, cart.ID, nil, nil); err != nil {
		return nil, err
	}
	return s.refresh(ctx, owner)
}

// ApplyPromo validates the code against the current cart contents and,
// when valid, stores the code together with the discount expressed as a
// percentage of the subtotal. Storing a percentage keeps the discount
// proportional when the cart changes afterwards.
func (s *CartService) ApplyPromo(ctx context.Context, owner CartOwner, code string) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	snapshot, err := s.snapshot(ctx, cart)
	if err != nil {
		return nil, err
	}

	result, err := s.promos.Validate(ctx, code, owner.UserID, snapshot)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrPromoNotValid, result.Message)
	}

	percent := decimal.Zero
	if snapshot.CartTotal.IsPositive() {
		percent = result.Discount.Div(snapshot.CartTotal).Mul(decimal.NewFromInt(100)).Round(2)
	}
	upper := strings.ToUpper(strings.TrimSpace(code))
	if err := s.carts.SetPromo(ctx, cart.ID, &upper, &percent); err != nil {
		return nil, fmt.Errorf("set promo: %w", err)
	}
	return s.refresh(ctx, owner)
}

func (s *CartService) RemovePromo(ctx context.Context, owner CartOwner) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if err := s.carts.SetPromo(ctx, cart.ID, nil, nil); err != nil {
		return nil, err
	}
	return s.refresh(ctx, owner)
}

// Merge folds a guest cart into the user's cart after login. For lines
// present in both, the larger quantity wins, capped at the per-line
// limit. The guest cart is deleted afterwards. When the user has no
// cart yet, the guest cart is simply re-owned.
func (s *CartService) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*dto.CartResponse, error) {
	guest, err := s.carts.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	owner := UserOwner(userID)
	if guest == nil {
		return s.Get(ctx, owner)
	}

	own, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		if err := s.carts.SetOwner(ctx, guest.ID, userID, time.Now().Add(model.AuthCartTTLDays*24*time.Hour)); err != nil {
			return nil, fmt.Errorf("adopt guest cart: %w", err)
		}
		return s.refresh(ctx, owner)
	}

	for _, gi := range guest.Items {
		quantity := gi.Quantity
		if existing := own.FindItem(gi.ProductID, gi.VariantID); existing != nil && existing.Quantity > quantity {
			quantity = existing.Quantity
		}
		if quantity > model.MaxLineQuantity {
			quantity = model.MaxLineQuantity
		}
		item := &model.CartItem{
			CartID:    own.ID,
			ProductID: gi.ProductID,
			VariantID: gi.VariantID,
			Quantity:  quantity,
			Price:     gi.Price,
		}
		if err := s.carts.AddItem(ctx, item); err != nil {
			return nil, fmt.Errorf("merge cart item: %w", err)
		}
	}
	if err := s.carts.Delete(ctx, guest.ID); err != nil {
		s.logger.Warn("failed to delete merged guest cart", "cart_id", guest.ID, "error", err)
	}
	return s.refresh(ctx, owner)
}

// DeleteExpired removes carts past their expiry. Called by the reaper.
func (s *CartService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.carts.DeleteExpired(ctx, time.Now())
}

func (s *CartService) refresh(ctx context.Context, owner CartOwner) (*dto.CartResponse, error) {
	cart, err := s.find(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return s.buildResponse(ctx, cart)
}

// snapshot projects the cart into the shape the promotion evaluator
// expects, priced at current catalog prices.
func (s *CartService) snapshot(ctx context.Context, cart *model.Cart) (CartSnapshot, error) {
	var snap CartSnapshot
	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return snap, err
		}
		if product == nil {
			continue
		}
		price := item.Price
		if variant := product.FindVariant(item.VariantID); variant != nil {
			price = variant.EffectivePrice(product)
		}
		snap.Items = append(snap.Items, SnapshotItem{
			ProductID:  item.ProductID,
			CategoryID: product.CategoryID,
			Price:      price,
			Quantity:   item.Quantity,
		})
		snap.CartTotal = snap.CartTotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return snap, nil
}

// buildResponse prices every line at the current catalog price, not the
// price captured at add time, and reports live stock per line.
func (s *CartService) buildResponse(ctx context.Context, cart *model.Cart) (*dto.CartResponse, error) {
	resp := &dto.CartResponse{
		ID:            cart.ID,
		Items:         []dto.CartItemResponse{},
		PromoCode:     cart.PromoCode,
		PromoDiscount: cart.PromoDiscount,
	}

	subtotal := decimal.Zero
	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue
		}
		variant := product.FindVariant(item.VariantID)

		price := item.Price
		inStock := false
		maxQuantity := 0
		variantInfo := dto.CartVariantInfo{ID: item.VariantID}
		if variant != nil {
			price = variant.EffectivePrice(product)
			inStock = variant.Stock >= item.Quantity
			maxQuantity = variant.Stock
			if maxQuantity > model.MaxLineQuantity {
				maxQuantity = model.MaxLineQuantity
			}
			variantInfo = dto.CartVariantInfo{
				ID:       variant.ID,
				Size:     variant.Size,
				Color:    variant.Color,
				ColorHex: variant.ColorHex,
			}
		}

		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		resp.Items = append(resp.Items, dto.CartItemResponse{
			ID: item.ID,
			Product: dto.CartProductInfo{
				ID:    product.ID,
				Name:  product.Name,
				Slug:  product.Slug,
				Image: product.MainImage(),
			},
			Variant:     variantInfo,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
			Price:       price,
			Total:       lineTotal,
			InStock:     inStock,
			MaxQuantity: maxQuantity,
			AddedAt:     item.AddedAt,
		})
	}

	discount := decimal.Zero
	if cart.PromoDiscount != nil {
		discount = subtotal.Mul(*cart.PromoDiscount).Div(decimal.NewFromInt(100)).Round(2)
	}
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	itemsCount := 0
	for _, it := range resp.Items {
		itemsCount += it.Quantity
	}
	resp.Totals = dto.CartTotals{
		Subtotal:   subtotal,
		Discount:   discount,
		Total:      total,
		ItemsCount: itemsCount,
	}
	return resp, nil
}
