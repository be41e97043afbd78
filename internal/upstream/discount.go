package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/discount"
)

// DiscountClient talks to the discount service over HTTP.
type DiscountClient struct {
	c *client
}

func NewDiscountClient(baseURL string, timeout time.Duration, retry RetryConfig) *DiscountClient {
	return &DiscountClient{c: newClient(baseURL, timeout, retry)}
}

var _ discount.Client = (*DiscountClient)(nil)

type validateRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type validateResponse struct {
	Valid          bool            `json:"valid"`
	DiscountID     string          `json:"discount_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Description    string          `json:"description"`
	Reason         string          `json:"reason"`
}

// Validate asks the discount service whether code applies to subtotal. A 4xx
// answer is a rejected code, not an outage: it comes back as an invalid
// decision so checkout can proceed without the discount.
func (dc *DiscountClient) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*discount.Decision, error) {
	var resp validateResponse
	err := dc.c.doJSON(ctx, http.MethodPost, "/discounts/validate", validateRequest{
		Code:     code,
		Subtotal: subtotal,
	}, &resp)
	if err != nil {
		if sc, ok := statusCode(err); ok && sc < 500 {
			return &discount.Decision{Valid: false, Reason: "code rejected"}, nil
		}
		return nil, discount.ErrUnavailable
	}

	return &discount.Decision{
		Valid:       resp.Valid,
		ID:          resp.DiscountID,
		Amount:      resp.DiscountAmount,
		Description: resp.Description,
		Reason:      resp.Reason,
	}, nil
}

type applyRequest struct {
	DiscountID string          `json:"discount_id"`
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Apply records discount usage for a placed order.
func (dc *DiscountClient) Apply(ctx context.Context, decisionID, orderID string, amount decimal.Decimal) error {
	err := dc.c.doJSON(ctx, http.MethodPost, "/discounts/apply", applyRequest{
		DiscountID: decisionID,
		OrderID:    orderID,
		Amount:     amount,
	}, nil)
	if err != nil {
		return discount.ErrUnavailable
	}
	return nil
}
