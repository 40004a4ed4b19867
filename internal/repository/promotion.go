package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportshop/api/internal/model"
)

type PromotionRepository interface {
	Create(ctx context.Context, promo *model.Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error)
	GetByCode(ctx context.Context, code string) (*model.Promotion, error)
	List(ctx context.Context) ([]model.Promotion, error)
	Update(ctx context.Context, promo *model.Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementUsage(ctx context.Context, id uuid.UUID, userID *uuid.UUID) error
}

type pgPromotionRepo struct{ pool *pgxpool.Pool }

func NewPromotionRepository(pool *pgxpool.Pool) PromotionRepository {
	return &pgPromotionRepo{pool: pool}
}

const promotionColumns = `id, code, name, description, type, value, min_order_amount, max_discount,
	usage_limit, usage_limit_per_user, used_count, category_ids, product_ids, exclude_product_ids,
	start_date, end_date, is_active, user_usage, created_at, updated_at`

func (r *pgPromotionRepo) Create(ctx context.Context, promo *model.Promotion) error {
	promo.ID = uuid.New()

	categoryIDs, _ := json.Marshal(promo.CategoryIDs)
	productIDs, _ := json.Marshal(promo.ProductIDs)
	excludeIDs, _ := json.Marshal(promo.ExcludeProductIDs)

	err := r.pool.QueryRow(ctx,
		`INSERT INTO promotions (id, code, name, description, type, value, min_order_amount,
			max_discount, usage_limit, usage_limit_per_user, used_count, category_ids,
			product_ids, exclude_product_ids, start_date, end_date, is_active, user_usage,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $14, $15, $16, '{}',
			NOW(), NOW())
		 RETURNING created_at, updated_at`,
		promo.ID, promo.Code, promo.Name, promo.Description, promo.Type, promo.Value,
		promo.MinOrderAmount, promo.MaxDiscount, promo.UsageLimit, promo.UsageLimitPerUser,
		categoryIDs, productIDs, excludeIDs, promo.StartDate, promo.EndDate, promo.IsActive,
	).Scan(&promo.CreatedAt, &promo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}

func (r *pgPromotionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByCode matches case-insensitively; codes are stored upper-cased.
func (r *pgPromotionRepo) GetByCode(ctx context.Context, code string) (*model.Promotion, error) {
	return r.getBy(ctx, "code = UPPER($1)", code)
}

func (r *pgPromotionRepo) getBy(ctx context.Context, where string, arg any) (*model.Promotion, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM promotions WHERE %s`, promotionColumns, where), arg)
	promo, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return promo, nil
}

func scanPromotion(row rowScanner) (*model.Promotion, error) {
	promo := &model.Promotion{}
	var categoryIDs, productIDs, excludeIDs, userUsage []byte
	err := row.Scan(
		&promo.ID, &promo.Code, &promo.Name, &promo.Description, &promo.Type, &promo.Value,
		&promo.MinOrderAmount, &promo.MaxDiscount, &promo.UsageLimit, &promo.UsageLimitPerUser,
		&promo.UsedCount, &categoryIDs, &productIDs, &excludeIDs,
		&promo.StartDate, &promo.EndDate, &promo.IsActive, &userUsage,
		&promo.CreatedAt, &promo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(categoryIDs, &promo.CategoryIDs)
	_ = json.Unmarshal(productIDs, &promo.ProductIDs)
	_ = json.Unmarshal(excludeIDs, &promo.ExcludeProductIDs)
	_ = json.Unmarshal(userUsage, &promo.UserUsage)
	if promo.UserUsage == nil {
		promo.UserUsage = make(map[string]int)
	}
	return promo, nil
}

func (r *pgPromotionRepo) List(ctx context.Context) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM promotions ORDER BY created_at DESC`, promotionColumns))
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promos []model.Promotion
	for rows.Next() {
		promo, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		promos = append(promos, *promo)
	}
	return promos, rows.Err()
}

func (r *pgPromotionRepo) Update(ctx context.Context, promo *model.Promotion) error {
	categoryIDs, _ := json.Marshal(promo.CategoryIDs)
	productIDs, _ := json.Marshal(promo.ProductIDs)
	excludeIDs, _ := json.Marshal(promo.ExcludeProductIDs)

	err := r.pool.QueryRow(ctx,
		`UPDATE promotions SET code=$2, name=$3, description=$4, type=$5, value=$6,
			min_order_amount=$7, max_discount=$8, usage_limit=$9, usage_limit_per_user=$10,
			category_ids=$11, product_ids=$12, exclude_product_ids=$13, start_date=$14,
			end_date=$15, is_active=$16, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		promo.ID, promo.Code, promo.Name, promo.Description, promo.Type, promo.Value,
		promo.MinOrderAmount, promo.MaxDiscount, promo.UsageLimit, promo.UsageLimitPerUser,
		categoryIDs, productIDs, excludeIDs, promo.StartDate, promo.EndDate, promo.IsActive,
	).Scan(&promo.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update promotion: %w", err)
	}
	return nil
}

func (r *pgPromotionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementUsage bumps the global counter and, when a user is present, their
// per-user counter in a single statement. Counters only increase.
func (r *pgPromotionRepo) IncrementUsage(ctx context.Context, id uuid.UUID, userID *uuid.UUID) error {
	var err error
	if userID != nil {
		key := userID.String()
		_, err = r.pool.Exec(ctx,
			`UPDATE promotions
			 SET used_count = used_count + 1,
				 user_usage = jsonb_set(user_usage, ARRAY[$2],
					(COALESCE((user_usage->>$2)::int, 0) + 1)::text::jsonb),
				 updated_at = NOW()
			 WHERE id = $1`, id, key)
	} else {
		_, err = r.pool.Exec(ctx,
			`UPDATE promotions SET used_count = used_count + 1, updated_at = NOW() WHERE id = $1`, id)
	}
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
	}
	return nil
}
