// Package cart defines the port to the cart collaborator. The cart service
// owns the buyer's live cart; checkout only reads a snapshot of it and clears
// it after the order is durably persisted.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the cart collaborator is unreachable or
// answers with a server error. Cart access is a required dependency: the
// caller aborts checkout on this error.
var ErrUnavailable = errors.New("cart service unavailable")

// Item is one line of the remote cart at snapshot time, including the unit
// price captured when the item was added.
type Item struct {
	ProductID   string
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Snapshot is a read-only copy of a user's cart. A missing remote cart maps
// to a snapshot with no items, not an error.
type Snapshot struct {
	Items    []Item
	Subtotal decimal.Decimal
}

// Empty reports whether the snapshot has no entries.
func (s *Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// Client fetches and clears remote carts.
//
// Clear is the compensating action of the checkout saga. It runs only after
// the order aggregate is persisted; a failure leaves the order placed and is
// handled out of band (logged, queued for reconciliation).
type Client interface {
	Fetch(ctx context.Context, userID string) (*Snapshot, error)
	Clear(ctx context.Context, userID string) error
}

// ClearRetry is a cart clear that failed after order persistence and waits
// for the reconciler to retry it.
type ClearRetry struct {
	OrderID  string
	UserID   string
	Attempts int
}

// RetryQueue stores pending cart clears. Entries are keyed by order so a
// repeated enqueue for the same order is a no-op.
type RetryQueue interface {
	Due(ctx context.Context, limit int) ([]ClearRetry, error)
	Reschedule(ctx context.Context, orderID string, attempts int, next time.Time) error
	Delete(ctx context.Context, orderID string) error
}
