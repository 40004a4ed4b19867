package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/model"
)

type CartRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetBySessionID(ctx context.Context, sessionID string) (*model.Cart, error)
	Create(ctx context.Context, cart *model.Cart) error
	SetOwner(ctx context.Context, cartID uuid.UUID, userID uuid.UUID, expiresAt time.Time) error
	AddItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	SetPromo(ctx context.Context, cartID uuid.UUID, code *string, discount *decimal.Decimal) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getBy(ctx, "user_id = $1", userID)
}

func (r *pgCartRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.Cart, error) {
	return r.getBy(ctx, "session_id = $1", sessionID)
}

func (r *pgCartRepo) getBy(ctx context.Context, where string, arg any) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, user_id, session_id, promo_code, promo_discount, expires_at, created_at, updated_at
			FROM carts WHERE %s`, where), arg,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionID, &cart.PromoCode, &cart.PromoDiscount,
		&cart.ExpiresAt, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, cart_id, product_id, variant_id, quantity, price, added_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY added_at`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.Price, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (r *pgCartRepo) Create(ctx context.Context, cart *model.Cart) error {
	cart.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (id, user_id, session_id, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING created_at, updated_at`,
		cart.ID, cart.UserID, cart.SessionID, cart.ExpiresAt,
	).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create cart: %w", err)
	}
	return nil
}

// SetOwner re-owns a guest cart after login and extends its expiry.
func (r *pgCartRepo) SetOwner(ctx context.Context, cartID uuid.UUID, userID uuid.UUID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET user_id = $2, session_id = NULL, expires_at = $3, updated_at = NOW() WHERE id = $1`,
		cartID, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("set cart owner: %w", err)
	}
	return nil
}

func (r *pgCartRepo) AddItem(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	query := `INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, price, added_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW())
			  ON CONFLICT (cart_id, product_id, variant_id)
			  DO UPDATE SET quantity = $5, price = $6
			  RETURNING id, added_at`
	err := r.pool.QueryRow(ctx, query,
		item.ID, item.CartID, item.ProductID, item.VariantID, item.Quantity, item.Price,
	).Scan(&item.ID, &item.AddedAt)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $2, price = $3 WHERE id = $1`,
		itemID, quantity, price)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgCartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *pgCartRepo) SetPromo(ctx context.Context, cartID uuid.UUID, code *string, discount *decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET promo_code = $2, promo_discount = $3, updated_at = NOW() WHERE id = $1`,
		cartID, code, discount)
	if err != nil {
		return fmt.Errorf("set cart promo: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Delete(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *pgCartRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired carts: %w", err)
	}
	return ct.RowsAffected(), nil
}
