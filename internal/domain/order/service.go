package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/cart"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/notify"
	"github.com/xenking/orderflow/internal/domain/pricing"
)

// numberAttempts bounds order-number regeneration on store collisions.
const numberAttempts = 3

const (
	placedMessage    = "Order placed successfully"
	cancelledMessage = "Order cancelled by customer"
)

// PlaceOrderRequest holds the input for placing an order. BillingAddress is
// optional and defaults to the shipping address; PaymentMethod defaults to
// cash on delivery. IdempotencyKey, when set, makes retried requests return
// the originally created order instead of a second one.
type PlaceOrderRequest struct {
	UserID          string
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	DiscountCode    string
	IdempotencyKey  string
}

// PlaceOrderResult holds the outcome of a checkout. Created is false when an
// idempotency-key replay returned a previously created order.
type PlaceOrderResult struct {
	Order   *Order
	Created bool
}

// TransitionRequest holds the input for a privileged status change.
type TransitionRequest struct {
	OrderID string
	Status  Status
	Message string
}

// Service sequences the order-placement saga and owns the order lifecycle
// operations. There is no shared transaction across collaborators: the one
// atomic step is aggregate persistence, the cart clear is an explicitly
// compensating step, and discount/notification are best-effort.
type Service struct {
	orders    Repository
	carts     cart.Client
	discounts discount.Client
	notifier  notify.Client
	pricing   pricing.Config

	now       func() time.Time
	newNumber func() string
}

// NewService creates an order Service with the required collaborators.
func NewService(
	orders Repository,
	carts cart.Client,
	discounts discount.Client,
	notifier notify.Client,
	cfg pricing.Config,
) *Service {
	return &Service{
		orders:    orders,
		carts:     carts,
		discounts: discounts,
		notifier:  notifier,
		pricing:   cfg,
		now:       time.Now,
		newNumber: NewNumber,
	}
}

// PlaceOrder runs the checkout saga: read the cart snapshot, resolve the
// optional discount, price the order, persist the aggregate atomically,
// clear the cart, and notify downstream. Completed steps are not rolled back
// when a later step fails; the cart clear compensates out of band via the
// reconciliation queue when it cannot run inline.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	lg := zctx.From(ctx)

	snap, err := s.carts.Fetch(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch cart")
	}
	if snap.Empty() {
		return nil, ErrEmptyCart
	}

	decision := s.resolveDiscount(ctx, req.DiscountCode, snap.Subtotal)

	discountAmount := decimal.Zero
	if decision != nil && decision.Valid {
		discountAmount = decision.Amount
	}
	quote := pricing.Compute(s.pricing, snap.Subtotal, discountAmount)

	o := s.buildOrder(req, snap, quote)

	created, existing, err := s.persist(ctx, req, o)
	if err != nil {
		return nil, err
	}
	if !created {
		lg.Info("Idempotent replay, returning existing order",
			zap.String("order_id", existing.ID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
		return &PlaceOrderResult{Order: existing, Created: false}, nil
	}

	// Compensation: clear the source cart now that the order is durable. A
	// failure does not unwind the order; the reconciler retries the clear.
	// The order outlives the request, so these steps must not die with it:
	// detach from the caller's cancellation and rely on the upstream client
	// timeouts as the bound.
	ctx = context.WithoutCancel(ctx)
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		lg.Error("Cart clear failed after order persisted, enqueueing reconciliation",
			zap.String("order_id", o.ID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		if qErr := s.orders.EnqueueCartClear(ctx, req.UserID, o.ID); qErr != nil {
			lg.Error("Cart clear reconciliation enqueue failed, cart may be double-charged on retry",
				zap.String("order_id", o.ID),
				zap.Error(qErr),
			)
		}
	}

	if decision != nil && decision.Valid && decision.ID != "" {
		if err := s.discounts.Apply(ctx, decision.ID, o.ID, discountAmount); err != nil {
			lg.Warn("Discount usage recording failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}

	if err := s.notifier.OrderCreated(ctx, req.UserID, o.Number, o.TotalAmount); err != nil {
		lg.Warn("Order created notification failed",
			zap.String("order_number", o.Number),
			zap.Error(err),
		)
	}

	return &PlaceOrderResult{Order: o, Created: true}, nil
}

// resolveDiscount validates the supplied code, failing open: any collaborator
// failure or rejection degrades to no discount instead of blocking checkout.
func (s *Service) resolveDiscount(ctx context.Context, code string, subtotal decimal.Decimal) *discount.Decision {
	if code == "" {
		return nil
	}

	lg := zctx.From(ctx)

	decision, err := s.discounts.Validate(ctx, code, subtotal)
	if err != nil {
		lg.Warn("Discount validation degraded, proceeding without discount",
			zap.String("code", code),
			zap.Error(err),
		)
		return nil
	}
	if !decision.Valid {
		lg.Info("Discount code rejected, proceeding without discount",
			zap.String("code", code),
			zap.String("reason", decision.Reason),
		)
	}
	return decision
}

func (s *Service) buildOrder(req PlaceOrderRequest, snap *cart.Snapshot, quote pricing.Quote) *Order {
	now := s.now()

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	method := req.PaymentMethod
	if method == "" {
		method = DefaultPaymentMethod
	}

	items := make([]Item, len(snap.Items))
	for i, it := range snap.Items {
		items[i] = Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2),
		}
	}

	return &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Number:          s.newNumber(),
		Status:          StatusPending,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.Discount,
		TaxAmount:       quote.Tax,
		ShippingAmount:  quote.Shipping,
		TotalAmount:     quote.Total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		DiscountCode:    req.DiscountCode,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
		Tracking: []TrackingEntry{{
			Status:    StatusPending,
			Message:   placedMessage,
			CreatedAt: now,
		}},
	}
}

// persist writes the aggregate, regenerating the order number on a store
// uniqueness collision and resolving idempotency-key conflicts to the
// previously created order.
func (s *Service) persist(ctx context.Context, req PlaceOrderRequest, o *Order) (created bool, existing *Order, err error) {
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err = s.orders.Create(ctx, o)
		switch {
		case err == nil:
			return true, nil, nil
		case errors.Is(err, ErrNumberTaken):
			zctx.From(ctx).Warn("Order number collision, regenerating",
				zap.String("order_number", o.Number),
				zap.Int("attempt", attempt+1),
			)
			o.Number = s.newNumber()
		case errors.Is(err, ErrIdempotencyConflict):
			existing, err = s.orders.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return false, nil, errors.Wrap(err, "resolve idempotency conflict")
			}
			return false, existing, nil
		default:
			return false, nil, errors.Wrap(err, "create order")
		}
	}
	return false, nil, ErrOrderNumberExhausted
}

// Get returns the full aggregate for an order the caller owns.
func (s *Service) Get(ctx context.Context, orderID, userID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns a page of the caller's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}
	return s.orders.List(ctx, userID, f)
}

// Track returns an order by its public order number. No ownership check:
// order numbers are unguessable and the tracking view exposes limited fields.
func (s *Service) Track(ctx context.Context, number string) (*Order, error) {
	return s.orders.GetByNumber(ctx, number)
}

// Transition applies a privileged status change. The state machine check,
// the status write, and the tracking append run inside one transaction with
// the order row locked, so concurrent transitions serialize.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) error {
	if !req.Status.Valid() {
		return ErrInvalidTransition
	}

	message := req.Message
	if message == "" {
		message = "Order status updated to " + req.Status.String()
	}

	var number string
	err := s.orders.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, req.Status) {
			return ErrInvalidTransition
		}
		if err := s.orders.UpdateStatus(ctx, req.OrderID, req.Status); err != nil {
			return err
		}
		number = o.Number
		return s.orders.AppendTracking(ctx, req.OrderID, req.Status, message)
	})
	if err != nil {
		return err
	}

	s.notifyStatusChanged(ctx, number, req.Status)
	return nil
}

// Cancel performs a customer-initiated cancellation, legal only while the
// order is pending or confirmed.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) error {
	var number string
	err := s.orders.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrNotFound
		}
		if !CanCancel(o.Status) {
			return ErrIllegalCancellation
		}
		if err := s.orders.UpdateStatus(ctx, orderID, StatusCancelled); err != nil {
			return err
		}
		number = o.Number
		return s.orders.AppendTracking(ctx, orderID, StatusCancelled, cancelledMessage)
	})
	if err != nil {
		return err
	}

	s.notifyStatusChanged(ctx, number, StatusCancelled)
	return nil
}

func (s *Service) notifyStatusChanged(ctx context.Context, number string, st Status) {
	if err := s.notifier.OrderStatusChanged(ctx, number, st.String()); err != nil {
		zctx.From(ctx).Warn("Order status notification failed",
			zap.String("order_number", number),
			zap.String("status", st.String()),
			zap.Error(err),
		)
	}
}
