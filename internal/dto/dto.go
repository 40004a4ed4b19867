package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportshop/api/internal/model"
)

// --- Pagination ---

type PageQuery struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

func (q PageQuery) Offset() int { return (q.Page - 1) * q.Limit }

type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPageMeta(page, limit, total int) PageMeta {
	pages := total / limit
	if total%limit > 0 {
		pages++
	}
	return PageMeta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
}

type AddressRequest struct {
	Title      string `json:"title"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	City       string `json:"city" binding:"required"`
	Street     string `json:"street" binding:"required"`
	Building   string `json:"building" binding:"required"`
	Apartment  string `json:"apartment"`
	PostalCode string `json:"postal_code" binding:"required"`
	IsDefault  bool   `json:"is_default"`
}

// --- Category ---

type CreateCategoryRequest struct {
	Name      string `json:"name" binding:"required"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sort_order"`
	IsVisible *bool  `json:"is_visible"`
}

type UpdateCategoryRequest struct {
	Name      *string `json:"name"`
	Slug      *string `json:"slug"`
	SortOrder *int    `json:"sort_order"`
	IsVisible *bool   `json:"is_visible"`
}

type CategoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sort_order"`
	IsVisible bool      `json:"is_visible"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Product ---

type VariantPayload struct {
	ID       string           `json:"id" binding:"required"`
	Size     string           `json:"size" binding:"required"`
	Color    string           `json:"color" binding:"required"`
	ColorHex string           `json:"color_hex"`
	SKU      string           `json:"sku" binding:"required"`
	Stock    int              `json:"stock" binding:"min=0"`
	Price    *decimal.Decimal `json:"price"`
}

type CreateProductRequest struct {
	Name             string               `json:"name" binding:"required"`
	Slug             string               `json:"slug"`
	Description      string               `json:"description" binding:"required"`
	ShortDescription string               `json:"short_description"`
	SKU              string               `json:"sku"`
	Price            decimal.Decimal      `json:"price" binding:"required"`
	CompareAtPrice   *decimal.Decimal     `json:"compare_at_price"`
	CategoryID       uuid.UUID            `json:"category_id" binding:"required"`
	Tags             []string             `json:"tags"`
	Images           []model.ProductImage `json:"images"`
	Variants         []VariantPayload     `json:"variants" binding:"required,min=1,dive"`
	Status           string               `json:"status" binding:"omitempty,oneof=draft active archived"`
	SEO              model.ProductSEO     `json:"seo"`
	IsVisible        *bool                `json:"is_visible"`
}

type UpdateProductRequest struct {
	Name             *string              `json:"name"`
	Slug             *string              `json:"slug"`
	Description      *string              `json:"description"`
	ShortDescription *string              `json:"short_description"`
	SKU              *string              `json:"sku"`
	Price            *decimal.Decimal     `json:"price"`
	CompareAtPrice   *decimal.Decimal     `json:"compare_at_price"`
	CategoryID       *uuid.UUID           `json:"category_id"`
	Tags             []string             `json:"tags"`
	Images           []model.ProductImage `json:"images"`
	Variants         []VariantPayload     `json:"variants" binding:"omitempty,dive"`
	Status           *string              `json:"status" binding:"omitempty,oneof=draft active archived"`
	SEO              *model.ProductSEO    `json:"seo"`
	IsVisible        *bool                `json:"is_visible"`
}

type ListProductsRequest struct {
	PageQuery
	Search   string `form:"search"`
	Category string `form:"category"`
	Status   string `form:"status" binding:"omitempty,oneof=draft active archived"`
	Sort     string `form:"sort,default=created_at" binding:"oneof=name price rating sold_count created_at"`
	Order    string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type UpdateStockRequest struct {
	Stock int `json:"stock" binding:"min=0"`
}

type BulkActionRequest struct {
	IDs    []uuid.UUID `json:"ids" binding:"required,min=1"`
	Status string      `json:"status" binding:"omitempty,oneof=draft active archived"`
}

type VariantResponse struct {
	ID       string           `json:"id"`
	Size     string           `json:"size"`
	Color    string           `json:"color"`
	ColorHex string           `json:"color_hex"`
	SKU      string           `json:"sku"`
	Stock    int              `json:"stock"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type ProductResponse struct {
	ID               uuid.UUID            `json:"id"`
	Name             string               `json:"name"`
	Slug             string               `json:"slug"`
	Description      string               `json:"description"`
	ShortDescription string               `json:"short_description"`
	SKU              string               `json:"sku"`
	Price            decimal.Decimal      `json:"price"`
	CompareAtPrice   *decimal.Decimal     `json:"compare_at_price,omitempty"`
	CategoryID       uuid.UUID            `json:"category_id"`
	Tags             []string             `json:"tags"`
	Images           []model.ProductImage `json:"images"`
	Variants         []VariantResponse    `json:"variants"`
	Rating           decimal.Decimal      `json:"rating"`
	ReviewsCount     int                  `json:"reviews_count"`
	SoldCount        int                  `json:"sold_count"`
	Status           string               `json:"status"`
	SEO              model.ProductSEO     `json:"seo"`
	IsVisible        bool                 `json:"is_visible"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Meta     PageMeta          `json:"meta"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	VariantID string    `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=10"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0,max=10"`
}

type ApplyPromoRequest struct {
	Code string `json:"code" binding:"required"`
}

type CartProductInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Image string    `json:"image,omitempty"`
}

type CartVariantInfo struct {
	ID       string `json:"id"`
	Size     string `json:"size"`
	Color    string `json:"color"`
	ColorHex string `json:"color_hex"`
}

type CartItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Product     CartProductInfo `json:"product"`
	Variant     CartVariantInfo `json:"variant"`
	VariantID   string          `json:"variant_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	InStock     bool            `json:"in_stock"`
	MaxQuantity int             `json:"max_quantity"`
	AddedAt     time.Time       `json:"added_at"`
}

type CartTotals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	ItemsCount int             `json:"items_count"`
}

type CartResponse struct {
	ID            uuid.UUID          `json:"id"`
	Items         []CartItemResponse `json:"items"`
	PromoCode     *string            `json:"promo_code,omitempty"`
	PromoDiscount *decimal.Decimal   `json:"promo_discount,omitempty"`
	Totals        CartTotals         `json:"totals"`
}

// --- Order ---

type CreateOrderRequest struct {
	ShippingAddressID *string         `json:"shipping_address_id"`
	ShippingAddress   *AddressRequest `json:"shipping_address"`
	ShippingMethod    string          `json:"shipping_method" binding:"required"`
	PaymentMethod     string          `json:"payment_method" binding:"required"`
	PromoCode         string          `json:"promo_code"`
	CustomerNote      string          `json:"customer_note"`
}

type UpdateOrderStatusRequest struct {
	Status  string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Comment string `json:"comment"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending paid failed refunded"`
}

type ListOrdersRequest struct {
	PageQuery
	Status        string `form:"status" binding:"omitempty,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	PaymentStatus string `form:"payment_status" binding:"omitempty,oneof=pending paid failed refunded"`
	Search        string `form:"search"`
}

type OrderResponse struct {
	ID              uuid.UUID                 `json:"id"`
	OrderNumber     string                    `json:"order_number"`
	UserID          uuid.UUID                 `json:"user_id"`
	Items           []model.OrderLine         `json:"items"`
	Subtotal        decimal.Decimal           `json:"subtotal"`
	Discount        decimal.Decimal           `json:"discount"`
	Shipping        decimal.Decimal           `json:"shipping"`
	Total           decimal.Decimal           `json:"total"`
	Status          string                    `json:"status"`
	ShippingAddress model.Address             `json:"shipping_address"`
	ShippingMethod  string                    `json:"shipping_method"`
	PaymentMethod   string                    `json:"payment_method"`
	PaymentStatus   string                    `json:"payment_status"`
	PromoCode       *string                   `json:"promo_code,omitempty"`
	PromoDiscount   *decimal.Decimal          `json:"promo_discount,omitempty"`
	CustomerNote    string                    `json:"customer_note,omitempty"`
	AdminNote       string                    `json:"admin_note,omitempty"`
	History         []model.OrderHistoryEntry `json:"history"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Meta   PageMeta        `json:"meta"`
}

type OrderStatsResponse struct {
	TotalOrders           int             `json:"total_orders"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	AverageOrderValue     decimal.Decimal `json:"average_order_value"`
	OrdersByStatus        map[string]int  `json:"orders_by_status"`
	OrdersByPaymentStatus map[string]int  `json:"orders_by_payment_status"`
}

// --- Promotion ---

type CreatePromotionRequest struct {
	Code              string           `json:"code" binding:"required"`
	Name              string           `json:"name" binding:"required"`
	Description       string           `json:"description"`
	Type              string           `json:"type" binding:"required,oneof=percentage fixed free_shipping"`
	Value             decimal.Decimal  `json:"value" binding:"required"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount"`
	MaxDiscount       *decimal.Decimal `json:"max_discount"`
	UsageLimit        *int             `json:"usage_limit"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user"`
	CategoryIDs       []uuid.UUID      `json:"category_ids"`
	ProductIDs        []uuid.UUID      `json:"product_ids"`
	ExcludeProductIDs []uuid.UUID      `json:"exclude_product_ids"`
	StartDate         time.Time        `json:"start_date" binding:"required"`
	EndDate           time.Time        `json:"end_date" binding:"required"`
	IsActive          *bool            `json:"is_active"`
}

type UpdatePromotionRequest struct {
	Code              *string          `json:"code"`
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Type              *string          `json:"type" binding:"omitempty,oneof=percentage fixed free_shipping"`
	Value             *decimal.Decimal `json:"value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount"`
	MaxDiscount       *decimal.Decimal `json:"max_discount"`
	UsageLimit        *int             `json:"usage_limit"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user"`
	CategoryIDs       []uuid.UUID      `json:"category_ids"`
	ProductIDs        []uuid.UUID      `json:"product_ids"`
	ExcludeProductIDs []uuid.UUID      `json:"exclude_product_ids"`
	StartDate         *time.Time       `json:"start_date"`
	EndDate           *time.Time       `json:"end_date"`
	IsActive          *bool            `json:"is_active"`
}

type ValidatePromoItem struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	CategoryID uuid.UUID       `json:"category_id"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	Price      decimal.Decimal `json:"price" binding:"required"`
}

type ValidatePromoRequest struct {
	Code      string              `json:"code" binding:"required"`
	CartTotal decimal.Decimal     `json:"cart_total" binding:"required"`
	Items     []ValidatePromoItem `json:"items" binding:"required,dive"`
}

type ValidatePromoResponse struct {
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Type     string          `json:"type,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type PromotionResponse struct {
	ID                uuid.UUID        `json:"id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Type              string           `json:"type"`
	Value             decimal.Decimal  `json:"value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty"`
	UsageLimit        *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user,omitempty"`
	UsedCount         int              `json:"used_count"`
	CategoryIDs       []uuid.UUID      `json:"category_ids"`
	ProductIDs        []uuid.UUID      `json:"product_ids"`
	ExcludeProductIDs []uuid.UUID      `json:"exclude_product_ids"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	IsActive          bool             `json:"is_active"`
}

// --- Review ---

type CreateReviewRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Rating  int       `json:"rating" binding:"required,min=1,max=5"`
	Title   string    `json:"title"`
	Text    string    `json:"text" binding:"required"`
	Images  []string  `json:"images"`
}

type UpdateReviewRequest struct {
	Rating *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Title  *string `json:"title"`
	Text   *string `json:"text"`
}

type AdminReplyRequest struct {
	Text string `json:"text" binding:"required"`
}

type ReviewResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	UserID       uuid.UUID  `json:"user_id"`
	OrderID      uuid.UUID  `json:"order_id"`
	Rating       int        `json:"rating"`
	Title        string     `json:"title,omitempty"`
	Text         string     `json:"text"`
	Images       []string   `json:"images"`
	IsApproved   bool       `json:"is_approved"`
	AdminReply   string     `json:"admin_reply,omitempty"`
	AdminReplyAt *time.Time `json:"admin_reply_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ReviewListResponse struct {
	Reviews []ReviewResponse `json:"reviews"`
	Meta    PageMeta         `json:"meta"`
}

type ListReviewsRequest struct {
	PageQuery
	Rating int `form:"rating" binding:"omitempty,min=1,max=5"`
}

// --- Wishlist ---

type AddWishlistRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

type MoveToCartRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
}

type WishlistItem struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Slug    string          `json:"slug"`
	Price   decimal.Decimal `json:"price"`
	Image   string          `json:"image,omitempty"`
	InStock bool            `json:"in_stock"`
}

type WishlistResponse struct {
	Items []WishlistItem `json:"items"`
	Total int            `json:"total"`
}

// --- Upload ---

type UploadResponse struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
}

// --- Analytics ---

type DashboardResponse struct {
	Orders       OrderStatsResponse `json:"orders"`
	ProductCount int                `json:"product_count"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
