package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	// ErrEmptyCart is returned when a checkout is attempted against a cart
	// with no entries.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when the requested order does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a status change violates the
	// order lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrIllegalCancellation is returned when a customer cancels an order
	// that has progressed beyond the cancellable statuses.
	ErrIllegalCancellation = errors.New("order cannot be cancelled at this stage")
	// ErrOrderNumberExhausted is returned when order number generation keeps
	// colliding with persisted numbers after the bounded retry budget.
	ErrOrderNumberExhausted = errors.New("order number generation exhausted")
	// ErrNumberTaken is returned by the store when the generated order number
	// already exists. The caller regenerates and retries.
	ErrNumberTaken = errors.New("order number already exists")
	// ErrIdempotencyConflict is returned by the store when an order with the
	// same (user, idempotency key) pair already exists.
	ErrIdempotencyConflict = errors.New("duplicate idempotency key")
)

// PaymentStatus enumerates the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// DefaultPaymentMethod is used when the checkout request does not name one.
const DefaultPaymentMethod = "COD"

// Address is a frozen copy of address data captured at order time. Later
// edits to the buyer's address book never alter a placed order.
type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Item is a single order line with product data snapshotted at creation,
// independent of later catalog edits.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// TrackingEntry is one row of the append-only tracking log. Entries are
// written at creation and on every status change, never edited or deleted.
type TrackingEntry struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the aggregate created exactly once per successful checkout. All
// monetary values are fixed at creation time and never recomputed from live
// product prices.
type Order struct {
	ID             string
	UserID         string
	Number         string
	Status         Status
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	PaymentStatus   PaymentStatus

	DiscountCode   string
	IdempotencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []Item
	Tracking []TrackingEntry
}

// ListFilter narrows and pages the order list.
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

// Page is one page of a user's order history.
type Page struct {
	Orders []Order
	Total  int
	Pages  int
}

// Repository defines persistence operations for order aggregates.
//
// Create must be atomic: the order row, all item rows, and the initial
// tracking row become visible together or not at all. GetForUpdate,
// UpdateStatus, and AppendTracking are meant to run inside a single WithTx
// closure so concurrent transitions serialize on the row lock.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error)
	List(ctx context.Context, userID string, f ListFilter) (*Page, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, st Status) error
	AppendTracking(ctx context.Context, id string, st Status, message string) error
	EnqueueCartClear(ctx context.Context, userID, orderID string) error
}
