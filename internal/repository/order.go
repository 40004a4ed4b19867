package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/model"
)

type OrderFilter struct {
	Status        string
	PaymentStatus string
	Search        string
	Limit         int
	Offset        int
}

type OrderStats struct {
	TotalOrders           int
	TotalRevenue          decimal.Decimal
	AverageOrderValue     decimal.Decimal
	OrdersByStatus        map[string]int
	OrdersByPaymentStatus map[string]int
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	List(ctx context.Context, f OrderFilter) ([]model.Order, int, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, history []model.OrderHistoryEntry) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error
	NextOrderNumber(ctx context.Context, year int) (int, error)
	Stats(ctx context.Context, from, to *time.Time) (*OrderStats, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, order_number, user_id, items, subtotal, discount, shipping, total,
	status, shipping_address, shipping_method, payment_method, payment_status,
	promo_code, promo_discount, customer_note, admin_note, history, created_at, updated_at`

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	order.ID = uuid.New()

	items, _ := json.Marshal(order.Items)
	address, _ := json.Marshal(order.ShippingAddress)
	history, _ := json.Marshal(order.History)

	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, items, subtotal, discount, shipping, total,
			status, shipping_address, shipping_method, payment_method, payment_status,
			promo_code, promo_discount, customer_note, history, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID, items,
		order.Subtotal, order.Discount, order.Shipping, order.Total,
		order.Status, address, order.ShippingMethod, order.PaymentMethod, order.PaymentStatus,
		order.PromoCode, order.PromoDiscount, order.CustomerNote, history,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *pgOrderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.getBy(ctx, "order_number = $1", orderNumber)
}

func (r *pgOrderRepo) getBy(ctx context.Context, where string, arg any) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE %s`, orderColumns, where), arg)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func scanOrder(row rowScanner) (*model.Order, error) {
	order := &model.Order{}
	var items, address, history []byte
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &items,
		&order.Subtotal, &order.Discount, &order.Shipping, &order.Total,
		&order.Status, &address, &order.ShippingMethod, &order.PaymentMethod, &order.PaymentStatus,
		&order.PromoCode, &order.PromoDiscount, &order.CustomerNote, &order.AdminNote, &history,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(items, &order.Items)
	_ = json.Unmarshal(address, &order.ShippingAddress)
	_ = json.Unmarshal(history, &order.History)
	return order, nil
}

func (r *pgOrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int, error) {
	where := `($1 = '' OR status = $1)
		AND ($2 = '' OR payment_status = $2)
		AND ($3 = '' OR order_number ILIKE '%' || $3 || '%')`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE `+where,
		f.Status, f.PaymentStatus, f.Search,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
			orderColumns, where),
		f.Status, f.PaymentStatus, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	return orders, total, err
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			orderColumns),
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list user orders: %w", err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	return orders, total, err
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateStatus replaces the status and persists the full appended history.
// History entries are never removed, only appended by the caller.
func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, history []model.OrderHistoryEntry) error {
	raw, _ := json.Marshal(history)
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, history = $3, updated_at = NOW() WHERE id = $1`,
		id, status, raw)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// NextOrderNumber hands out sequence values from a per-year counter row, so
// two concurrent order creations never race to the same number.
func (r *pgOrderRepo) NextOrderNumber(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO order_counters (year, seq) VALUES ($1, 1)
		 ON CONFLICT (year) DO UPDATE SET seq = order_counters.seq + 1
		 RETURNING seq`, year,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return seq, nil
}

func (r *pgOrderRepo) Stats(ctx context.Context, from, to *time.Time) (*OrderStats, error) {
	stats := &OrderStats{
		OrdersByStatus:        make(map[string]int),
		OrdersByPaymentStatus: make(map[string]int),
	}

	var revenue decimal.NullDecimal
	var paidCount int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE payment_status = 'paid'), 0),
			COUNT(*) FILTER (WHERE payment_status = 'paid')
		 FROM orders
		 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at <= $2)`,
		from, to,
	).Scan(&stats.TotalOrders, &revenue, &paidCount)
	if err != nil {
		return nil, fmt.Errorf("revenue stats: %w", err)
	}
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal
	}
	if paidCount > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(paidCount))).Round(2)
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.OrdersByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payRows, err := r.pool.Query(ctx, `SELECT payment_status, COUNT(*) FROM orders GROUP BY payment_status`)
	if err != nil {
		return nil, fmt.Errorf("count by payment status: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var status string
		var n int
		if err := payRows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan payment status count: %w", err)
		}
		stats.OrdersByPaymentStatus[status] = n
	}
	return stats, payRows.Err()
}
