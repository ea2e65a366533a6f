package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/courierhq/dispatchd/core/dispatch"
	"github.com/courierhq/dispatchd/core/logger"
	"github.com/courierhq/dispatchd/core/model"
)

// activeOrder is the wire shape of an in-flight order.
type activeOrder struct {
	ID               string    `json:"id"`
	DeliveryID       string    `json:"delivery_id,omitempty"`
	ClientID         string    `json:"client_id"`
	PickupAddress    string    `json:"pickup_address"`
	DeliveryAddress  string    `json:"delivery_address"`
	VehicleType      string    `json:"vehicle_type,omitempty"`
	EstimatedPrice   float64   `json:"estimated_price"`
	CreatedAt        time.Time `json:"created_at"`
	Candidates       int       `json:"candidates"`
	CurrentCandidate int       `json:"current_candidate"`
}

// NewActiveHandler returns an HTTP handler exposing in-flight orders via
// GET /api/orders/active.
func NewActiveHandler(reg *dispatch.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		clientID := r.URL.Query().Get("client_id")
		var out []activeOrder
		for _, o := range reg.ListActive() {
			if clientID != "" && o.Facts.ClientID != clientID {
				continue
			}
			out = append(out, activeOrder{
				ID:               o.ID,
				DeliveryID:       o.Facts.DeliveryID,
				ClientID:         o.Facts.ClientID,
				PickupAddress:    o.Facts.PickupAddress,
				DeliveryAddress:  o.Facts.DeliveryAddress,
				VehicleType:      o.Facts.VehicleType,
				EstimatedPrice:   o.Facts.EstimatedPrice,
				CreatedAt:        o.CreatedAt,
				Candidates:       len(o.Candidates),
				CurrentCandidate: o.CurrentCandidate,
			})
		}
		writeJSON(w, out)
	})
}

// NewIntakeHandler returns an HTTP handler accepting new orders via
// POST /api/orders. The search runs in the background; the order id comes
// back immediately.
func NewIntakeHandler(coord *dispatch.Coordinator, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var facts model.OrderFacts
		if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
			http.Error(w, "invalid order payload", http.StatusBadRequest)
			return
		}
		if facts.ClientID == "" {
			http.Error(w, "client_id is required", http.StatusBadRequest)
			return
		}
		order := coord.CreateOrderRequest(facts)
		// The request context dies with the response; the search outlives it.
		go func() {
			if err := coord.StartDriverSearch(context.Background(), order); err != nil {
				log.Errorf("driver search for order %s: %v", order.ID, err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"order_id": order.ID})
	})
}

// NewAttachDeliveryHandler returns an HTTP handler backfilling a persisted
// delivery id onto an in-flight order via
// PATCH /api/orders?id=<id>&delivery_id=<delivery_id>. Drivers responding
// with either identifier then resolve to the same order.
func NewAttachDeliveryHandler(reg *dispatch.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		deliveryID := r.URL.Query().Get("delivery_id")
		if id == "" || deliveryID == "" {
			http.Error(w, "id and delivery_id are required", http.StatusBadRequest)
			return
		}
		if !reg.SetDeliveryID(id, deliveryID) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// NewCancelHandler returns an HTTP handler cancelling an order via
// DELETE /api/orders?id=<id>.
func NewCancelHandler(coord *dispatch.Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		coord.RemoveActiveRequest(id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
