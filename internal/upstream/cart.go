package upstream

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/cart"
)

// CartClient talks to the cart service over HTTP.
type CartClient struct {
	c *client
}

func NewCartClient(baseURL string, timeout time.Duration, retry RetryConfig) *CartClient {
	return &CartClient{c: newClient(baseURL, timeout, retry)}
}

var _ cart.Client = (*CartClient)(nil)

type cartItemPayload struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type cartPayload struct {
	Items []cartItemPayload `json:"items"`
}

// Fetch returns a snapshot of the user's cart. A 404 means the user has no
// cart yet and maps to an empty snapshot; anything the service cannot answer
// maps to cart.ErrUnavailable. The subtotal is summed locally from the lines
// rather than trusted from the wire.
func (cc *CartClient) Fetch(ctx context.Context, userID string) (*cart.Snapshot, error) {
	var payload cartPayload
	err := cc.c.doJSON(ctx, http.MethodGet, "/cart?user_id="+url.QueryEscape(userID), nil, &payload)
	if err != nil {
		if code, ok := statusCode(err); ok && code == http.StatusNotFound {
			return &cart.Snapshot{Subtotal: decimal.Zero}, nil
		}
		return nil, cart.ErrUnavailable
	}

	snap := &cart.Snapshot{
		Items:    make([]cart.Item, 0, len(payload.Items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range payload.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		snap.Subtotal = snap.Subtotal.Add(line)
		snap.Items = append(snap.Items, cart.Item{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return snap, nil
}

// Clear deletes the user's cart. A 404 counts as cleared.
func (cc *CartClient) Clear(ctx context.Context, userID string) error {
	err := cc.c.doJSON(ctx, http.MethodDelete, "/cart?user_id="+url.QueryEscape(userID), nil, nil)
	if err != nil {
		if code, ok := statusCode(err); ok && code == http.StatusNotFound {
			return nil
		}
		return cart.ErrUnavailable
	}
	return nil
}
