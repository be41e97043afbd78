package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/order"
)

// maxBodySize bounds request bodies; order placement payloads are small.
const maxBodySize = 1 << 20

type addressDTO struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type placeOrderRequest struct {
	ShippingAddress addressDTO  `json:"shipping_address"`
	BillingAddress  *addressDTO `json:"billing_address,omitempty"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	DiscountCode    string      `json:"discount_code,omitempty"`
}

type orderItemDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type trackingDTO struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type orderDTO struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress addressDTO      `json:"shipping_address"`
	BillingAddress  addressDTO      `json:"billing_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	DiscountCode    string          `json:"discount_code,omitempty"`
	Items           []orderItemDTO  `json:"items"`
	Tracking        []trackingDTO   `json:"tracking,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type orderListResponse struct {
	Orders []orderDTO `json:"orders"`
	Total  int        `json:"total"`
	Page   int        `json:"page"`
	Pages  int        `json:"pages"`
}

// trackingResponse is the public tracking view: no addresses, no payment
// details, no buyer identity.
type trackingResponse struct {
	OrderNumber string          `json:"order_number"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Tracking    []trackingDTO   `json:"tracking"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PlaceOrder handles POST /orders. An optional Idempotency-Key header makes
// retried requests return the originally created order with 200 instead of
// creating a second one.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ShippingAddress.Line1 == "" || req.ShippingAddress.City == "" || req.ShippingAddress.Country == "" {
		respondError(w, http.StatusBadRequest, "invalid_address", "shipping address requires line1, city, and country")
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          identity.UserID,
		ShippingAddress: toDomainAddress(req.ShippingAddress),
		BillingAddress:  toDomainAddressPtr(req.BillingAddress),
		PaymentMethod:   req.PaymentMethod,
		DiscountCode:    req.DiscountCode,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	respondJSON(w, status, toOrderDTO(result.Order, true))
}

// ListOrders handles GET /orders with optional status, page, and limit query
// parameters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	filter := order.ListFilter{
		Status: order.Status(r.URL.Query().Get("status")),
		Page:   intQuery(r, "page"),
		Limit:  intQuery(r, "limit"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	page, err := h.orders.List(r.Context(), identity.UserID, filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderDTO, 0, len(page.Orders)),
		Total:  page.Total,
		Page:   filter.Page,
		Pages:  page.Pages,
	}
	if resp.Page < 1 {
		resp.Page = 1
	}
	for i := range page.Orders {
		resp.Orders = append(resp.Orders, toOrderDTO(&page.Orders[i], false))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /orders/{orderID}, scoped to the caller's own orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"), identity.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(o, true))
}

// TrackOrder handles GET /track/{orderNumber}. The endpoint is public: order
// numbers are unguessable and the view hides addresses and payment data.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Track(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := trackingResponse{
		OrderNumber: o.Number,
		Status:      o.Status.String(),
		TotalAmount: o.TotalAmount,
		Tracking:    toTrackingDTOs(o.Tracking),
		CreatedAt:   o.CreatedAt,
	}
	respondJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UpdateStatus handles PATCH /orders/{orderID}/status, admin only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.orders.Transition(r.Context(), order.TransitionRequest{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  order.Status(req.Status),
		Message: req.Message,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// CancelOrder handles POST /orders/{orderID}/cancel for the order's owner.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())

	err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"), identity.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": order.StatusCancelled.String()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return false
	}
	return true
}

func intQuery(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func toDomainAddress(a addressDTO) order.Address {
	return order.Address{
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func toDomainAddressPtr(a *addressDTO) *order.Address {
	if a == nil {
		return nil
	}
	addr := toDomainAddress(*a)
	return &addr
}

func toAddressDTO(a order.Address) addressDTO {
	return addressDTO{
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func toTrackingDTOs(entries []order.TrackingEntry) []trackingDTO {
	out := make([]trackingDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, trackingDTO{
			Status:    e.Status.String(),
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func toOrderDTO(o *order.Order, withTracking bool) orderDTO {
	dto := orderDTO{
		ID:              o.ID,
		OrderNumber:     o.Number,
		Status:          o.Status.String(),
		Subtotal:        o.Subtotal,
		DiscountAmount:  o.DiscountAmount,
		TaxAmount:       o.TaxAmount,
		ShippingAmount:  o.ShippingAmount,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: toAddressDTO(o.ShippingAddress),
		BillingAddress:  toAddressDTO(o.BillingAddress),
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   string(o.PaymentStatus),
		DiscountCode:    o.DiscountCode,
		Items:           make([]orderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, orderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	if withTracking {
		dto.Tracking = toTrackingDTOs(o.Tracking)
	}
	return dto
}
