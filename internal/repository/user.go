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

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateAddresses(ctx context.Context, id uuid.UUID, addresses []model.Address) error
	UpdateWishlist(ctx context.Context, id uuid.UUID, wishlist []uuid.UUID) error
}

type pgUserRepo struct{ pool *pgxpool.Pool }

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepo{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, role,
	addresses, wishlist, created_at, updated_at`

func (r *pgUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	addresses, _ := json.Marshal(user.Addresses)
	wishlist, _ := json.Marshal(user.Wishlist)

	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role,
			addresses, wishlist, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Password, user.FirstName, user.LastName, user.Phone,
		user.Role, addresses, wishlist,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *pgUserRepo) getBy(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	var addresses, wishlist []byte
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE %s`, userColumns, where), arg,
	).Scan(
		&user.ID, &user.Email, &user.Password, &user.FirstName, &user.LastName, &user.Phone,
		&user.Role, &addresses, &wishlist, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	_ = json.Unmarshal(addresses, &user.Addresses)
	_ = json.Unmarshal(wishlist, &user.Wishlist)
	return user, nil
}

func (r *pgUserRepo) UpdateAddresses(ctx context.Context, id uuid.UUID, addresses []model.Address) error {
	raw, _ := json.Marshal(addresses)
	ct, err := r.pool.Exec(ctx,
		`UPDATE users SET addresses = $2, updated_at = NOW() WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("update addresses: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgUserRepo) UpdateWishlist(ctx context.Context, id uuid.UUID, wishlist []uuid.UUID) error {
	raw, _ := json.Marshal(wishlist)
	ct, err := r.pool.Exec(ctx,
		`UPDATE users SET wishlist = $2, updated_at = NOW() WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("update wishlist: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
