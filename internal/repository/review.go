package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/model"
)

type ReviewFilter struct {
	ProductID  *uuid.UUID
	UserID     *uuid.UUID
	IsApproved *bool
	Rating     int
	Limit      int
	Offset     int
}

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error)
	GetByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*model.Review, error)
	List(ctx context.Context, f ReviewFilter) ([]model.Review, int, error)
	Update(ctx context.Context, review *model.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	ProductRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, int, error)
}

type pgReviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &pgReviewRepo{pool: pool}
}

const reviewColumns = `id, product_id, user_id, order_id, rating, title, text, images,
	is_approved, admin_reply, admin_reply_at, created_at, updated_at`

func (r *pgReviewRepo) Create(ctx context.Context, review *model.Review) error {
	review.ID = uuid.New()
	images, _ := json.Marshal(review.Images)

	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews (id, product_id, user_id, order_id, rating, title, text, images,
			is_approved, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		review.ID, review.ProductID, review.UserID, review.OrderID,
		review.Rating, review.Title, review.Text, images, review.IsApproved,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *pgReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns), id)
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

func (r *pgReviewRepo) GetByProductAndUser(ctx context.Context, productID, userID uuid.UUID) (*model.Review, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM reviews WHERE product_id = $1 AND user_id = $2`, reviewColumns),
		productID, userID)
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review by product and user: %w", err)
	}
	return review, nil
}

func scanReview(row rowScanner) (*model.Review, error) {
	review := &model.Review{}
	var images []byte
	err := row.Scan(
		&review.ID, &review.ProductID, &review.UserID, &review.OrderID,
		&review.Rating, &review.Title, &review.Text, &images,
		&review.IsApproved, &review.AdminReply, &review.AdminReplyAt,
		&review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(images, &review.Images)
	return review, nil
}

func (r *pgReviewRepo) List(ctx context.Context, f ReviewFilter) ([]model.Review, int, error) {
	where := `($1::uuid IS NULL OR product_id = $1)
		AND ($2::uuid IS NULL OR user_id = $2)
		AND ($3::bool IS NULL OR is_approved = $3)
		AND ($4 = 0 OR rating = $4)`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE `+where,
		f.ProductID, f.UserID, f.IsApproved, f.Rating,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM reviews WHERE %s ORDER BY created_at DESC LIMIT $5 OFFSET $6`,
			reviewColumns, where),
		f.ProductID, f.UserID, f.IsApproved, f.Rating, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	return reviews, total, rows.Err()
}

func (r *pgReviewRepo) Update(ctx context.Context, review *model.Review) error {
	images, _ := json.Marshal(review.Images)
	err := r.pool.QueryRow(ctx,
		`UPDATE reviews SET rating=$2, title=$3, text=$4, images=$5, is_approved=$6,
			admin_reply=$7, admin_reply_at=$8, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		review.ID, review.Rating, review.Title, review.Text, images,
		review.IsApproved, review.AdminReply, review.AdminReplyAt,
	).Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func (r *pgReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ProductRating averages approved reviews only, rounded to one decimal.
func (r *pgReviewRepo) ProductRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, int, error) {
	var avg decimal.NullDecimal
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT AVG(rating), COUNT(*) FROM reviews WHERE product_id = $1 AND is_approved`,
		productID,
	).Scan(&avg, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("product rating: %w", err)
	}
	if !avg.Valid || count == 0 {
		return decimal.Zero, 0, nil
	}
	return avg.Decimal.Round(1), count, nil
}
