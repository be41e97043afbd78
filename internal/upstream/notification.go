package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/notify"
)

// NotificationClient talks to the notification service over HTTP. Deliveries
// are at-most-once: the caller logs failures and moves on.
type NotificationClient struct {
	c *client
}

func NewNotificationClient(baseURL string, timeout time.Duration, retry RetryConfig) *NotificationClient {
	return &NotificationClient{c: newClient(baseURL, timeout, retry)}
}

var _ notify.Client = (*NotificationClient)(nil)

type orderCreatedEvent struct {
	UserID      string          `json:"user_id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func (nc *NotificationClient) OrderCreated(ctx context.Context, userID, orderNumber string, total decimal.Decimal) error {
	err := nc.c.doJSON(ctx, http.MethodPost, "/notifications/order-created", orderCreatedEvent{
		UserID:      userID,
		OrderNumber: orderNumber,
		TotalAmount: total,
	}, nil)
	return errors.Wrap(err, "notify order created")
}

type orderStatusEvent struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

func (nc *NotificationClient) OrderStatusChanged(ctx context.Context, orderNumber, status string) error {
	err := nc.c.doJSON(ctx, http.MethodPost, "/notifications/order-status", orderStatusEvent{
		OrderNumber: orderNumber,
		Status:      status,
	}, nil)
	return errors.Wrap(err, "notify order status")
}
