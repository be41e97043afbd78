package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/cart"
)

// RetryQueue stores failed cart clears in the cart_clear_retries table.
type RetryQueue struct {
	pool *pgxpool.Pool
}

func NewRetryQueue(pool *pgxpool.Pool) *RetryQueue {
	return &RetryQueue{pool: pool}
}

var _ cart.RetryQueue = (*RetryQueue)(nil)

const dueRetriesQuery = `
SELECT order_id, user_id, attempts
FROM cart_clear_retries
WHERE next_attempt_at <= now()
ORDER BY next_attempt_at
LIMIT $1`

func (q *RetryQueue) Due(ctx context.Context, limit int) ([]cart.ClearRetry, error) {
	rows, err := q.pool.Query(ctx, dueRetriesQuery, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query due retries")
	}
	defer rows.Close()

	var retries []cart.ClearRetry
	for rows.Next() {
		var r cart.ClearRetry
		if err := rows.Scan(&r.OrderID, &r.UserID, &r.Attempts); err != nil {
			return nil, errors.Wrap(err, "scan retry")
		}
		retries = append(retries, r)
	}
	return retries, errors.Wrap(rows.Err(), "iterate retries")
}

const rescheduleRetryQuery = `
UPDATE cart_clear_retries SET attempts = $2, next_attempt_at = $3 WHERE order_id = $1`

func (q *RetryQueue) Reschedule(ctx context.Context, orderID string, attempts int, next time.Time) error {
	_, err := q.pool.Exec(ctx, rescheduleRetryQuery, orderID, attempts, next)
	return errors.Wrap(err, "reschedule retry")
}

const deleteRetryQuery = `DELETE FROM cart_clear_retries WHERE order_id = $1`

func (q *RetryQueue) Delete(ctx context.Context, orderID string) error {
	_, err := q.pool.Exec(ctx, deleteRetryQuery, orderID)
	return errors.Wrap(err, "delete retry")
}
