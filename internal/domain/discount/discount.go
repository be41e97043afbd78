// Package discount defines the port to the discount collaborator. Discount
// validation is best-effort: checkout never fails because this service is
// down or rejects a code.
package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the discount collaborator is unreachable
// or answers with a server error. Callers degrade to a zero discount.
var ErrUnavailable = errors.New("discount service unavailable")

// Decision is the collaborator's answer for a code and subtotal. When Valid,
// Amount is non-negative and already clamped to the code's configured cap.
type Decision struct {
	Valid       bool
	ID          string
	Amount      decimal.Decimal
	Description string
	Reason      string // set when Valid is false
}

// Client validates discount codes and records their usage.
type Client interface {
	// Validate checks code against subtotal and returns the decision. An
	// invalid code is a valid decision, not an error; errors mean the
	// collaborator could not answer.
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Decision, error)
	// Apply records discount usage for a placed order. Best-effort.
	Apply(ctx context.Context, decisionID, orderID string, amount decimal.Decimal) error
}
