package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
	"github.com/sportshop/api/internal/repository"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCannotCancel      = errors.New("order can no longer be cancelled")
	ErrAddressNotFound   = errors.New("shipping address not found")
	ErrAddressRequired   = errors.New("shipping address is required")
)

// shippingCosts is keyed by shipping method. Methods not in the table
// ship at zero cost.
var shippingCosts = map[string]decimal.Decimal{
	"courier": decimal.NewFromInt(500),
	"pickup":  decimal.Zero,
	"post":    decimal.NewFromInt(300),
}

const (
	emailQueue     = "emails"
	analyticsQueue = "analytics"
)

type OrderService struct {
	orders   repository.OrderRepository
	carts    repository.CartRepository
	products repository.ProductRepository
	users    repository.UserRepository
	promos   *PromotionService
	amqpCh   *amqp.Channel
	logger   *slog.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	promos *PromotionService,
	amqpCh *amqp.Channel,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		products: products,
		users:    users,
		promos:   promos,
		amqpCh:   amqpCh,
		logger:   logger,
	}
}

// Create turns the user's cart into an order. Lines are priced at the
// current catalog price and snapshotted; stock is decremented per line
// with a conditional update so concurrent orders cannot oversell.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*model.Order, error) {
	shippingBase, ok := shippingCosts[req.ShippingMethod]
	if !ok {
		shippingBase = decimal.Zero
	}

	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	lines, subtotal, err := s.buildLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	address, err := s.resolveAddress(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	promoCode := req.PromoCode
	discount := decimal.Zero
	freeShipping := false
	var appliedCode *string
	if promoCode != "" {
		snap := snapshotFromLines(lines, subtotal)
		result, err := s.promos.Validate(ctx, promoCode, &userID, snap)
		if err != nil {
			return nil, err
		}
		// An invalid code at checkout is dropped, not an error.
		if result.Valid {
			discount = result.Discount
			freeShipping = result.Type == model.PromoFreeShipping
			code := result.Code
			appliedCode = &code
		} else {
			s.logger.Info("promo code rejected at checkout", "code", promoCode, "reason", result.Message)
		}
	}

	shipping := shippingBase
	if freeShipping {
		shipping = decimal.Zero
	}
	total := subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	year := time.Now().Year()
	seq, err := s.orders.NextOrderNumber(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("SP-%d-%06d", year, seq)

	var promoDiscount *decimal.Decimal
	if appliedCode != nil {
		promoDiscount = &discount
	}
	order := &model.Order{
		OrderNumber:     orderNumber,
		UserID:          userID,
		Items:           lines,
		Subtotal:        subtotal,
		Discount:        discount,
		Shipping:        shipping,
		Total:           total,
		Status:          model.OrderPending,
		ShippingAddress: address,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   model.PaymentPending,
		PromoCode:       appliedCode,
		PromoDiscount:   promoDiscount,
		CustomerNote:    req.CustomerNote,
		History: []model.OrderHistoryEntry{{
			Status:    model.OrderPending,
			Comment:   "order created",
			CreatedAt: time.Now(),
			CreatedBy: &userID,
		}},
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Stock only moves once the order is durably persisted, so a failed
	// insert never strands decremented units.
	if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
		s.logger.Warn("failed to clear cart after order", "cart_id", cart.ID, "error", err)
	}
	_ = s.carts.SetPromo(ctx, cart.ID, nil, nil)

	s.reserveStock(ctx, lines)

	if appliedCode != nil {
		if err := s.promos.ApplyUsage(ctx, *appliedCode, &userID); err != nil {
			s.logger.Warn("failed to record promo usage", "code", *appliedCode, "error", err)
		}
	}

	for _, line := range lines {
		if err := s.products.IncrementSoldCount(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.Warn("failed to bump sold count", "product_id", line.ProductID, "error", err)
		}
	}

	s.notifyOrderCreated(ctx, order)
	s.publishAnalytics(ctx)

	return order, nil
}

// buildLines validates every cart line against the live catalog and
// snapshots it. Any failure aborts order creation before stock moves.
func (s *OrderService) buildLines(ctx context.Context, cart *model.Cart) ([]model.OrderLine, decimal.Decimal, error) {
	lines := make([]model.OrderLine, 0, len(cart.Items))
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if product == nil || product.Status != model.ProductActive {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		variant := product.FindVariant(item.VariantID)
		if variant == nil {
			return nil, decimal.Zero, fmt.Errorf("%w: %s/%s", ErrVariantNotFound, product.Name, item.VariantID)
		}
		if variant.Stock < item.Quantity {
			return nil, decimal.Zero, fmt.Errorf("%w: %s (%s %s)", ErrOutOfStock, product.Name, variant.Size, variant.Color)
		}

		price := variant.EffectivePrice(product)
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		lines = append(lines, model.OrderLine{
			ProductID: product.ID,
			VariantID: variant.ID,
			Name:      product.Name,
			SKU:       variant.SKU,
			Image:     product.MainImage(),
			Size:      variant.Size,
			Color:     variant.Color,
			Price:     price,
			Quantity:  item.Quantity,
			Total:     lineTotal,
		})
	}
	return lines, subtotal, nil
}

func (s *OrderService) resolveAddress(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (model.Address, error) {
	if req.ShippingAddressID != nil {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return model.Address{}, err
		}
		if user == nil {
			return model.Address{}, ErrUserNotFound
		}
		for _, addr := range user.Addresses {
			if addr.ID == *req.ShippingAddressID {
				return addr, nil
			}
		}
		return model.Address{}, ErrAddressNotFound
	}
	if req.ShippingAddress == nil {
		return model.Address{}, ErrAddressRequired
	}
	a := req.ShippingAddress
	return model.Address{
		ID:         "addr-" + uuid.NewString(),
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Phone:      a.Phone,
		City:       a.City,
		Street:     a.Street,
		Building:   a.Building,
		Apartment:  a.Apartment,
		PostalCode: a.PostalCode,
	}, nil
}

// reserveStock decrements each line with a stock-guarded update. The
// order is already persisted at this point, so failures are logged and
// the remaining lines still move; a line that lost a race since
// validation is floored at zero.
func (s *OrderService) reserveStock(ctx context.Context, lines []model.OrderLine) {
	for _, line := range lines {
		err := s.products.DecrementVariantStock(ctx, line.ProductID, line.VariantID, line.Quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			s.logger.Warn("stock raced below requested quantity, flooring at zero",
				"product_id", line.ProductID, "variant_id", line.VariantID)
			if err := s.products.SetVariantStock(ctx, line.ProductID, line.VariantID, 0); err != nil {
				s.logger.Warn("failed to floor stock", "product_id", line.ProductID, "variant_id", line.VariantID, "error", err)
			}
			continue
		}
		if err != nil {
			s.logger.Warn("failed to decrement stock", "product_id", line.ProductID, "variant_id", line.VariantID, "error", err)
		}
	}
}

func snapshotFromLines(lines []model.OrderLine, subtotal decimal.Decimal) CartSnapshot {
	snap := CartSnapshot{CartTotal: subtotal}
	for _, line := range lines {
		snap.Items = append(snap.Items, SnapshotItem{
			ProductID: line.ProductID,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return snap
}

// GetByID returns the order when it belongs to userID, or for any order
// when staff is true.
func (s *OrderService) GetByID(ctx context.Context, orderID uuid.UUID, userID uuid.UUID, staff bool) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !staff && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string, userID uuid.UUID, staff bool) (*model.Order, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !staff && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error) {
	return s.orders.ListByUserID(ctx, userID, limit, offset)
}

func (s *OrderService) ListAll(ctx context.Context, req dto.ListOrdersRequest) ([]model.Order, int, error) {
	return s.orders.List(ctx, repository.OrderFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		Search:        req.Search,
		Limit:         req.Limit,
		Offset:        req.Offset(),
	})
}

// UpdateStatus moves an order along the lifecycle. Transitions outside
// the allowed table are rejected. Moving to cancelled restores stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next model.OrderStatus, comment string, actor *uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if next == model.OrderCancelled {
		s.restoreStock(ctx, order)
	}

	history := append(order.History, model.OrderHistoryEntry{
		Status:    next,
		Comment:   comment,
		CreatedAt: time.Now(),
		CreatedBy: actor,
	})
	if err := s.orders.UpdateStatus(ctx, orderID, next, history); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = next
	order.History = history

	s.notifyStatusChanged(ctx, order)
	return order, nil
}

// Cancel cancels an order and restores its stock. Customers may only
// cancel their own orders while still pending or confirmed; staff may
// cancel any order that has not already reached a terminal state, even
// where the regular transition table would forbid it.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID uuid.UUID, staff bool, comment string) (*model.Order, error) {
	order, err := s.GetByID(ctx, orderID, userID, staff)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderCancelled || order.Status == model.OrderRefunded {
		return nil, ErrCannotCancel
	}
	if !staff && order.Status != model.OrderPending && order.Status != model.OrderConfirmed {
		return nil, ErrCannotCancel
	}
	if comment == "" {
		if staff {
			comment = "cancelled by administrator"
		} else {
			comment = "cancelled by customer"
		}
	}

	s.restoreStock(ctx, order)

	history := append(order.History, model.OrderHistoryEntry{
		Status:    model.OrderCancelled,
		Comment:   comment,
		CreatedAt: time.Now(),
		CreatedBy: &userID,
	})
	if err := s.orders.UpdateStatus(ctx, orderID, model.OrderCancelled, history); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	order.Status = model.OrderCancelled
	order.History = history

	s.notifyStatusChanged(ctx, order)
	return order, nil
}

func (s *OrderService) restoreStock(ctx context.Context, order *model.Order) {
	for _, line := range order.Items {
		if err := s.products.IncrementVariantStock(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			s.logger.Warn("failed to restore stock", "product_id", line.ProductID, "variant_id", line.VariantID, "error", err)
		}
		if err := s.products.IncrementSoldCount(ctx, line.ProductID, -line.Quantity); err != nil {
			s.logger.Warn("failed to roll back sold count", "product_id", line.ProductID, "error", err)
		}
	}
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status model.PaymentStatus) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.orders.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.PaymentStatus = status
	return order, nil
}

func (s *OrderService) Stats(ctx context.Context, from, to *time.Time) (*repository.OrderStats, error) {
	return s.orders.Stats(ctx, from, to)
}

func (s *OrderService) notifyOrderCreated(ctx context.Context, order *model.Order) {
	user, err := s.users.GetByID(ctx, order.UserID)
	if err != nil || user == nil {
		s.logger.Warn("could not load user for order email", "order_id", order.ID, "error", err)
		return
	}
	s.publishEmail(ctx, model.EmailMessage{
		ID:       uuid.New(),
		To:       user.Email,
		Subject:  "Order " + order.OrderNumber + " received",
		Template: "order-confirmation",
		Context: map[string]string{
			"order_number": order.OrderNumber,
			"first_name":   user.FirstName,
			"total":        order.Total.StringFixed(2),
		},
	})
}

func (s *OrderService) notifyStatusChanged(ctx context.Context, order *model.Order) {
	user, err := s.users.GetByID(ctx, order.UserID)
	if err != nil || user == nil {
		return
	}
	s.publishEmail(ctx, model.EmailMessage{
		ID:       uuid.New(),
		To:       user.Email,
		Subject:  "Order " + order.OrderNumber + " is now " + string(order.Status),
		Template: "order-status",
		Context: map[string]string{
			"order_number": order.OrderNumber,
			"first_name":   user.FirstName,
			"status":       string(order.Status),
		},
	})
}

func (s *OrderService) publishEmail(ctx context.Context, msg model.EmailMessage) {
	if s.amqpCh == nil {
		return
	}
	body, _ := json.Marshal(msg)
	err := s.amqpCh.PublishWithContext(ctx, "", emailQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.logger.Warn("failed to publish email message", "message_id", msg.ID, "error", err)
	}
}

func (s *OrderService) publishAnalytics(ctx context.Context) {
	if s.amqpCh == nil {
		return
	}
	msg := model.AnalyticsMessage{ID: uuid.New(), Date: time.Now().Format("2006-01-02")}
	body, _ := json.Marshal(msg)
	err := s.amqpCh.PublishWithContext(ctx, "", analyticsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.logger.Warn("failed to publish analytics message", "error", err)
	}
}

// ToOrderResponse maps an order to its API shape.
func ToOrderResponse(o *model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   string(o.PaymentStatus),
		PromoCode:       o.PromoCode,
		PromoDiscount:   o.PromoDiscount,
		CustomerNote:    o.CustomerNote,
		AdminNote:       o.AdminNote,
		History:         o.History,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
