// Package handler exposes the order service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/orderflow/internal/domain/auth"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/pkg/health"
)

// Handler wires the HTTP surface to the order service and the token
// introspector.
type Handler struct {
	orders       *order.Service
	introspector auth.TokenIntrospector
	health       *health.Health
}

func New(orders *order.Service, introspector auth.TokenIntrospector, h *health.Health) *Handler {
	return &Handler{
		orders:       orders,
		introspector: introspector,
		health:       h,
	}
}

// Routes builds the router. Tracking and health probes are public; every
// order route requires a verified bearer token, and status updates
// additionally require the admin role.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/livez", h.health.LiveEndpoint)
	r.Get("/readyz", h.health.ReadyEndpoint)
	r.Get("/track/{orderNumber}", h.TrackOrder)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Post("/orders/{orderID}/cancel", h.CancelOrder)

		r.With(RequireAdmin).Patch("/orders/{orderID}/status", h.UpdateStatus)
	})

	return r
}
