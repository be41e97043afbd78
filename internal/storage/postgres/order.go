package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/order"
)

// OrderRepository persists order aggregates. Every method joins the ambient
// transaction when one is present in the context.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) db(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const insertOrderQuery = `
INSERT INTO orders (
	id, user_id, order_number, status,
	subtotal, discount_amount, tax_amount, shipping_amount, total_amount,
	shipping_address, billing_address, payment_method, payment_status,
	discount_code, idempotency_key, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

const insertItemQuery = `
INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertTrackingQuery = `
INSERT INTO order_tracking (order_id, status, message, created_at)
VALUES ($1, $2, $3, $4)`

// Create inserts the order row, all item rows, and the initial tracking rows
// in one transaction. Unique-constraint violations are mapped to domain
// sentinels so the caller can tell a number collision from an idempotency
// replay.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.WithTx(ctx, func(ctx context.Context) error {
		q := r.db(ctx)

		shipping, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return errors.Wrap(err, "encode shipping address")
		}
		billing, err := json.Marshal(o.BillingAddress)
		if err != nil {
			return errors.Wrap(err, "encode billing address")
		}

		_, err = q.Exec(ctx, insertOrderQuery,
			o.ID, o.UserID, o.Number, o.Status,
			o.Subtotal, o.DiscountAmount, o.TaxAmount, o.ShippingAmount, o.TotalAmount,
			shipping, billing, o.PaymentMethod, o.PaymentStatus,
			o.DiscountCode, nullable(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		for _, item := range o.Items {
			_, err = q.Exec(ctx, insertItemQuery,
				o.ID, item.ProductID, item.ProductName, item.ProductSKU,
				item.Quantity, item.UnitPrice, item.LineTotal,
			)
			if err != nil {
				return errors.Wrap(err, "insert order item")
			}
		}

		for _, entry := range o.Tracking {
			_, err = q.Exec(ctx, insertTrackingQuery, o.ID, entry.Status, entry.Message, entry.CreatedAt)
			if err != nil {
				return errors.Wrap(err, "insert tracking entry")
			}
		}

		return nil
	})
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "orders_order_number_key":
				return order.ErrNumberTaken
			case "orders_user_idempotency_key":
				return order.ErrIdempotencyConflict
			}
		}
		return err
	}
	return nil
}

const selectOrderQuery = `
SELECT id, user_id, order_number, status,
	subtotal, discount_amount, tax_amount, shipping_amount, total_amount,
	shipping_address, billing_address, payment_method, payment_status,
	discount_code, idempotency_key, created_at, updated_at
FROM orders`

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderQuery+" WHERE id = $1", id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderQuery+" WHERE order_number = $1", number)
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderQuery+" WHERE user_id = $1 AND idempotency_key = $2", userID, key)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, selectOrderQuery+" WHERE id = $1 FOR UPDATE", id)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	o, err := scanOrder(r.db(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	if err := r.loadTracking(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

const countOrdersQuery = `
SELECT count(*) FROM orders WHERE user_id = $1 AND ($2 = '' OR status = $2)`

const listOrdersQuery = selectOrderQuery + `
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

// List returns one page of a user's orders, newest first, with items loaded.
// Tracking history is omitted from list responses.
func (r *OrderRepository) List(ctx context.Context, userID string, f order.ListFilter) (*order.Page, error) {
	q := r.db(ctx)

	var total int
	if err := q.QueryRow(ctx, countOrdersQuery, userID, string(f.Status)).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := q.Query(ctx, listOrdersQuery, userID, string(f.Status), f.Limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	page := &order.Page{
		Orders: make([]order.Order, 0, f.Limit),
		Total:  total,
		Pages:  (total + f.Limit - 1) / f.Limit,
	}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		page.Orders = append(page.Orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}

	for i := range page.Orders {
		if err := r.loadItems(ctx, &page.Orders[i]); err != nil {
			return nil, err
		}
	}

	return page, nil
}

const updateStatusQuery = `
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, st order.Status) error {
	tag, err := r.db(ctx).Exec(ctx, updateStatusQuery, id, st)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) AppendTracking(ctx context.Context, id string, st order.Status, message string) error {
	_, err := r.db(ctx).Exec(ctx, insertTrackingQuery, id, st, message, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "append tracking entry")
	}
	return nil
}

const selectItemsQuery = `
SELECT product_id, product_name, product_sku, quantity, unit_price, line_total
FROM order_items WHERE order_id = $1 ORDER BY id`

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.db(ctx).Query(ctx, selectItemsQuery, o.ID)
	if err != nil {
		return errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item order.Item
		err := rows.Scan(&item.ProductID, &item.ProductName, &item.ProductSKU,
			&item.Quantity, &item.UnitPrice, &item.LineTotal)
		if err != nil {
			return errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, item)
	}
	return errors.Wrap(rows.Err(), "iterate order items")
}

const selectTrackingQuery = `
SELECT status, message, created_at
FROM order_tracking WHERE order_id = $1 ORDER BY id`

func (r *OrderRepository) loadTracking(ctx context.Context, o *order.Order) error {
	rows, err := r.db(ctx).Query(ctx, selectTrackingQuery, o.ID)
	if err != nil {
		return errors.Wrap(err, "query tracking entries")
	}
	defer rows.Close()

	for rows.Next() {
		var entry order.TrackingEntry
		if err := rows.Scan(&entry.Status, &entry.Message, &entry.CreatedAt); err != nil {
			return errors.Wrap(err, "scan tracking entry")
		}
		o.Tracking = append(o.Tracking, entry)
	}
	return errors.Wrap(rows.Err(), "iterate tracking entries")
}

const enqueueCartClearQuery = `
INSERT INTO cart_clear_retries (order_id, user_id, attempts, next_attempt_at)
VALUES ($1, $2, 0, now())
ON CONFLICT (order_id) DO NOTHING`

func (r *OrderRepository) EnqueueCartClear(ctx context.Context, userID, orderID string) error {
	_, err := r.db(ctx).Exec(ctx, enqueueCartClearQuery, orderID, userID)
	if err != nil {
		return errors.Wrap(err, "enqueue cart clear retry")
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOrder(row scannable) (*order.Order, error) {
	var (
		o        order.Order
		shipping []byte
		billing  []byte
		idemKey  *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Number, &o.Status,
		&o.Subtotal, &o.DiscountAmount, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount,
		&shipping, &billing, &o.PaymentMethod, &o.PaymentStatus,
		&o.DiscountCode, &idemKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if idemKey != nil {
		o.IdempotencyKey = *idemKey
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, errors.Wrap(err, "decode shipping address")
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, errors.Wrap(err, "decode billing address")
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
