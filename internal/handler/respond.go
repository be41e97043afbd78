package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/cart"
	"github.com/xenking/orderflow/internal/domain/order"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Code: code, Message: message})
}

// respondDomainError maps domain sentinels onto the HTTP error taxonomy.
// Anything unmapped is a 500 with the detail kept out of the response body.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, cart.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "upstream_unavailable", "cart service is unavailable, try again later")
	case errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, order.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, "invalid_transition", "status transition is not allowed")
	case errors.Is(err, order.ErrIllegalCancellation):
		respondError(w, http.StatusBadRequest, "illegal_cancellation", "order can no longer be cancelled")
	case errors.Is(err, order.ErrOrderNumberExhausted):
		respondError(w, http.StatusServiceUnavailable, "try_again", "could not allocate an order number, try again")
	default:
		zctx.From(r.Context()).Error("Unhandled domain error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
