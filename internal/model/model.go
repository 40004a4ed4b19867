package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleManager  UserRole = "manager"
	RoleAdmin    UserRole = "admin"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      UserRole
	Addresses []Address
	Wishlist  []uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is a value copy; orders keep their own snapshot and never
// re-join the user's address book.
type Address struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	Street     string `json:"street"`
	Building   string `json:"building"`
	Apartment  string `json:"apartment,omitempty"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

type Category struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	SortOrder int
	IsVisible bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

type ProductImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Alt   string `json:"alt"`
	Order int    `json:"order"`
}

type ProductSEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type Product struct {
	ID               uuid.UUID
	Name             string
	Slug             string
	Description      string
	ShortDescription string
	SKU              string
	Price            decimal.Decimal
	CompareAtPrice   *decimal.Decimal
	CategoryID       uuid.UUID
	Tags             []string
	Images           []ProductImage
	Variants         []Variant
	Rating           decimal.Decimal
	ReviewsCount     int
	SoldCount        int
	Status           ProductStatus
	SEO              ProductSEO
	IsVisible        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Variant identifiers are unique within a product. Stock is mutated only
// through conditional updates in the repository layer.
type Variant struct {
	ID       string
	Size     string
	Color    string
	ColorHex string
	SKU      string
	Stock    int
	Price    *decimal.Decimal
}

// EffectivePrice is the variant override when present, else the product price.
func (v Variant) EffectivePrice(p *Product) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return p.Price
}

func (p *Product) FindVariant(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

const (
	MaxLineQuantity  = 10
	GuestCartTTLDays = 7
	AuthCartTTLDays  = 30
)

// Cart is owned by exactly one of UserID / SessionID.
type Cart struct {
	ID            uuid.UUID
	UserID        *uuid.UUID
	SessionID     *string
	Items         []CartItem
	PromoCode     *string
	PromoDiscount *decimal.Decimal
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	VariantID string
	Quantity  int
	Price     decimal.Decimal
	AddedAt   time.Time
}

func (c *Cart) FindItem(productID uuid.UUID, variantID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantID == variantID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) FindItemByID(id uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// allowedTransitions is the full order lifecycle. Cancelled and refunded
// are terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
	OrderCancelled:  {},
	OrderRefunded:   {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

func ValidOrderStatus(s string) bool {
	_, ok := allowedTransitions[OrderStatus(s)]
	return ok
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderLine is an immutable denormalized snapshot of the product/variant
// at order time.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Image     string          `json:"image"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// OrderHistoryEntry records one status change. History is append-only.
type OrderHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Comment   string      `json:"comment,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	CreatedBy *uuid.UUID  `json:"created_by,omitempty"`
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	Items           []OrderLine
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
	Status          OrderStatus
	ShippingAddress Address
	ShippingMethod  string
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	PromoCode       *string
	PromoDiscount   *decimal.Decimal
	CustomerNote    string
	AdminNote       string
	History         []OrderHistoryEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PromotionType string

const (
	PromoPercentage   PromotionType = "percentage"
	PromoFixed        PromotionType = "fixed"
	PromoFreeShipping PromotionType = "free_shipping"
)

// Promotion codes are unique and stored upper-cased. Usage counters only
// increase.
type Promotion struct {
	ID                uuid.UUID
	Code              string
	Name              string
	Description       string
	Type              PromotionType
	Value             decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscount       *decimal.Decimal
	UsageLimit        *int
	UsageLimitPerUser *int
	UsedCount         int
	CategoryIDs       []uuid.UUID
	ProductIDs        []uuid.UUID
	ExcludeProductIDs []uuid.UUID
	StartDate         time.Time
	EndDate           time.Time
	IsActive          bool
	UserUsage         map[string]int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Review struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	UserID       uuid.UUID
	OrderID      uuid.UUID
	Rating       int
	Title        string
	Text         string
	Images       []string
	IsApproved   bool
	AdminReply   string
	AdminReplyAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EmailMessage struct {
	ID       uuid.UUID         `json:"id"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Context  map[string]string `json:"context"`
}

type AnalyticsMessage struct {
	ID   uuid.UUID `json:"id"`
	Date string    `json:"date"`
}
