// Binary stub-upstream emulates the cart, discount, notification, and auth
// collaborators with canned data. It exists for local development and the
// integration test environment, where the real services are out of reach.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tokens = map[string]struct {
	ID   string
	Role string
}{
	"user-token":  {ID: "user-1", Role: "customer"},
	"empty-token": {ID: "user-empty", Role: "customer"},
	"admin-token": {ID: "admin-1", Role: "admin"},
}

// stub holds no state: the cart refills after every clear so integration
// tests stay independent of each other.
type stub struct{}

func (s *stub) verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	user, ok := tokens[req.Token]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  map[string]string{"id": user.ID, "role": user.Role},
	})
}

func (s *stub) getCart(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("user_id") == "user-empty" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "product_name": "Widget", "quantity": 2, "unit_price": "60.00"},
			{"product_id": "p2", "product_name": "Gadget", "quantity": 1, "unit_price": "5.50"},
		},
	})
}

func (s *stub) clearCart(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *stub) validateDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string          `json:"code"`
		Subtotal decimal.Decimal `json:"subtotal"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Code != "SAVE20" {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "reason": "unknown code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":           true,
		"discount_id":     "disc-20",
		"discount_amount": "20.00",
		"description":     "20 off",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func main() {
	addr := flag.String("addr", "0.0.0.0:9090", "listen address")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		s := &stub{}

		r := chi.NewRouter()
		r.Post("/verify", s.verify)
		r.Get("/cart", s.getCart)
		r.Delete("/cart", s.clearCart)
		r.Post("/discounts/validate", s.validateDiscount)
		r.Post("/discounts/apply", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/notifications/order-created", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		r.Post("/notifications/order-status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})

		server := &http.Server{Addr: *addr, Handler: r}
		go func() {
			<-ctx.Done()
			_ = server.Shutdown(context.Background())
		}()

		lg.Info("Stub collaborators listening", zap.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}
