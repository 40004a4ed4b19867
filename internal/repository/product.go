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

// ErrInsufficientStock is returned by conditional stock decrements when the
// variant has fewer units than requested.
var ErrInsufficientStock = errors.New("insufficient stock")

type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	Status     string
	Sort       string
	Order      string
	Limit      int
	Offset     int
	OnlyActive bool
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	GetBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, f ProductFilter) ([]model.Product, int, error)
	FindRelated(ctx context.Context, id uuid.UUID, categoryID uuid.UUID, limit int) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkDelete(ctx context.Context, ids []uuid.UUID) error
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.ProductStatus) error
	SetVariantStock(ctx context.Context, productID uuid.UUID, variantID string, stock int) error
	DecrementVariantStock(ctx context.Context, productID uuid.UUID, variantID string, quantity int) error
	IncrementVariantStock(ctx context.Context, productID uuid.UUID, variantID string, quantity int) error
	IncrementSoldCount(ctx context.Context, id uuid.UUID, quantity int) error
	UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, count int) error
	Count(ctx context.Context) (int, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, slug, description, short_description, sku, price, compare_at_price,
	category_id, tags, images, rating, reviews_count, sold_count, status, seo, is_visible,
	created_at, updated_at`

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()

	tags, _ := json.Marshal(product.Tags)
	images, _ := json.Marshal(product.Images)
	seo, _ := json.Marshal(product.SEO)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO products (id, name, slug, description, short_description, sku, price,
			compare_at_price, category_id, tags, images, rating, reviews_count, sold_count,
			status, seo, is_visible, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, 0, $12, $13, $14, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		product.ID, product.Name, product.Slug, product.Description, product.ShortDescription,
		product.SKU, product.Price, product.CompareAtPrice, product.CategoryID,
		tags, images, product.Status, seo, product.IsVisible,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertVariants(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variants []model.Variant) error {
	for _, v := range variants {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_variants (product_id, id, size, color, color_hex, sku, stock, price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			productID, v.ID, v.Size, v.Color, v.ColorHex, v.SKU, v.Stock, v.Price,
		)
		if err != nil {
			return fmt.Errorf("insert variant %s: %w", v.ID, err)
		}
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *pgProductRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return r.getBy(ctx, "slug = $1", slug)
}

func (r *pgProductRepo) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	return r.getBy(ctx, "sku = $1", sku)
}

func (r *pgProductRepo) getBy(ctx context.Context, where string, arg any) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE %s`, productColumns, where), arg)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.loadVariants(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[p.ID]
	return p, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var tags, images, seo []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.ShortDescription, &p.SKU,
		&p.Price, &p.CompareAtPrice, &p.CategoryID, &tags, &images,
		&p.Rating, &p.ReviewsCount, &p.SoldCount, &p.Status, &seo, &p.IsVisible,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(tags, &p.Tags)
	_ = json.Unmarshal(images, &p.Images)
	_ = json.Unmarshal(seo, &p.SEO)
	return p, nil
}

func (r *pgProductRepo) loadVariants(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]model.Variant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, id, size, color, color_hex, sku, stock, price
		 FROM product_variants WHERE product_id = ANY($1) ORDER BY id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.Variant)
	for rows.Next() {
		var pid uuid.UUID
		var v model.Variant
		if err := rows.Scan(&pid, &v.ID, &v.Size, &v.Color, &v.ColorHex, &v.SKU, &v.Stock, &v.Price); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[pid] = append(out[pid], v)
	}
	return out, rows.Err()
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "rating": true, "sold_count": true, "created_at": true}
	if !allowedSorts[f.Sort] {
		f.Sort = "created_at"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = "desc"
	}

	where := `($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
		AND ($2::uuid IS NULL OR category_id = $2)
		AND ($3 = '' OR status = $3)
		AND (NOT $4 OR (status = 'active' AND is_visible))`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE `+where,
		f.Search, f.CategoryID, f.Status, f.OnlyActive,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s %s LIMIT $5 OFFSET $6`,
		productColumns, where, f.Sort, f.Order)

	rows, err := r.pool.Query(ctx, query, f.Search, f.CategoryID, f.Status, f.OnlyActive, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *pgProductRepo) FindRelated(ctx context.Context, id uuid.UUID, categoryID uuid.UUID, limit int) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM products
			WHERE category_id = $1 AND id <> $2 AND status = 'active' AND is_visible
			ORDER BY sold_count DESC LIMIT $3`, productColumns),
		categoryID, id, limit)
	if err != nil {
		return nil, fmt.Errorf("find related: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func collectProducts(rows pgx.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *pgProductRepo) attachVariants(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	variants, err := r.loadVariants(ctx, ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}
	return nil
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	tags, _ := json.Marshal(product.Tags)
	images, _ := json.Marshal(product.Images)
	seo, _ := json.Marshal(product.SEO)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE products SET name=$2, slug=$3, description=$4, short_description=$5, sku=$6,
			price=$7, compare_at_price=$8, category_id=$9, tags=$10, images=$11, status=$12,
			seo=$13, is_visible=$14, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		product.ID, product.Name, product.Slug, product.Description, product.ShortDescription,
		product.SKU, product.Price, product.CompareAtPrice, product.CategoryID,
		tags, images, product.Status, seo, product.IsVisible,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update product: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("clear variants: %w", err)
	}
	if err := insertVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("bulk delete products: %w", err)
	}
	return nil
}

func (r *pgProductRepo) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status model.ProductStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, status)
	if err != nil {
		return fmt.Errorf("bulk update status: %w", err)
	}
	return nil
}

func (r *pgProductRepo) SetVariantStock(ctx context.Context, productID uuid.UUID, variantID string, stock int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE product_variants SET stock = $3 WHERE product_id = $1 AND id = $2`,
		productID, variantID, stock)
	if err != nil {
		return fmt.Errorf("set variant stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) DecrementVariantStock(ctx context.Context, productID uuid.UUID, variantID string, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE product_variants SET stock = stock - $3
		 WHERE product_id = $1 AND id = $2 AND stock >= $3`,
		productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("decrement variant stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *pgProductRepo) IncrementVariantStock(ctx context.Context, productID uuid.UUID, variantID string, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE product_variants SET stock = stock + $3 WHERE product_id = $1 AND id = $2`,
		productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("increment variant stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) IncrementSoldCount(ctx context.Context, id uuid.UUID, quantity int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET sold_count = sold_count + $2, updated_at = NOW() WHERE id = $1`,
		id, quantity)
	if err != nil {
		return fmt.Errorf("increment sold count: %w", err)
	}
	return nil
}

func (r *pgProductRepo) UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET rating = $2, reviews_count = $3, updated_at = NOW() WHERE id = $1`,
		id, rating, count)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
