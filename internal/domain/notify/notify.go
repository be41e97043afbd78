// Package notify defines the port to the notification collaborator. Every
// call is fire-and-forget: failures are logged by the caller and never fail
// the parent operation. At-most-once delivery is the accepted contract.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client signals order events downstream.
type Client interface {
	OrderCreated(ctx context.Context, userID, orderNumber string, total decimal.Decimal) error
	OrderStatusChanged(ctx context.Context, orderNumber, status string) error
}
