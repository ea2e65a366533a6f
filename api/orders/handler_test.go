package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/courierhq/dispatchd/core/dispatch"
	"github.com/courierhq/dispatchd/core/dispatch/logging"
	"github.com/courierhq/dispatchd/core/model"
	"github.com/courierhq/dispatchd/infra/delivery"
	"github.com/courierhq/dispatchd/infra/logger"
	"github.com/courierhq/dispatchd/infra/mqtt"
)

type memStore struct{ recs []logging.LogRecord }

func (m *memStore) Append(_ context.Context, r logging.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	var res []logging.LogRecord
	for _, r := range m.recs {
		if q.ClientID != "" && r.ClientID != q.ClientID {
			continue
		}
		if q.Outcome != "" && r.Outcome != q.Outcome {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func testCoordinator(t *testing.T) *dispatch.Coordinator {
	t.Helper()
	coord, err := dispatch.NewCoordinator(
		dispatch.SimpleCandidateFilter{},
		mqtt.MockLocator{},
		mqtt.NewMockGateway(),
		delivery.NewMemoryStore(),
		dispatch.Config{ResponseWindowSeconds: 1},
		nil, nil, logger.NopLogger{},
	)
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	return coord
}

func TestActiveHandler(t *testing.T) {
	coord := testCoordinator(t)
	coord.CreateOrderRequest(model.OrderFacts{ClientID: "c1", PickupAddress: "A"})
	coord.CreateOrderRequest(model.OrderFacts{ClientID: "c2", PickupAddress: "B"})

	h := NewActiveHandler(coord.Registry())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/active?client_id=c1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out []activeOrder
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].ClientID != "c1" {
		t.Fatalf("unexpected result: %#v", out)
	}
}

func TestActiveHandler_MethodNotAllowed(t *testing.T) {
	h := NewActiveHandler(testCoordinator(t).Registry())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/active", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIntakeHandler(t *testing.T) {
	coord := testCoordinator(t)
	h := NewIntakeHandler(coord, logger.NopLogger{})
	body := `{"client_id":"c1","pickup_address":"A","delivery_address":"B"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["order_id"] == "" {
		t.Fatal("missing order id")
	}
}

func TestIntakeHandler_MissingClient(t *testing.T) {
	h := NewIntakeHandler(testCoordinator(t), logger.NopLogger{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAttachDeliveryHandler(t *testing.T) {
	coord := testCoordinator(t)
	order := coord.CreateOrderRequest(model.OrderFacts{ClientID: "c1"})
	h := NewAttachDeliveryHandler(coord.Registry())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/orders?id="+order.ID+"&delivery_id=d-55", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if got := coord.GetActiveRequest("d-55"); got == nil || got.ID != order.ID {
		t.Fatal("delivery id did not resolve to the order after backfill")
	}
	if order.Facts.DeliveryID != "d-55" {
		t.Fatal("delivery id not backfilled on the order")
	}
}

func TestAttachDeliveryHandler_Errors(t *testing.T) {
	h := NewAttachDeliveryHandler(testCoordinator(t).Registry())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/orders?id=o1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/orders?id=ghost&delivery_id=d-55", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	coord := testCoordinator(t)
	order := coord.CreateOrderRequest(model.OrderFacts{ClientID: "c1"})
	h := NewCancelHandler(coord)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders?id="+order.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if coord.GetActiveRequest(order.ID) != nil {
		t.Fatal("order should be removed")
	}
}

func TestOutcomesHandler(t *testing.T) {
	store := &memStore{recs: []logging.LogRecord{
		{Timestamp: time.Now(), OrderID: "o1", ClientID: "c1", Outcome: logging.OutcomeAccepted},
		{Timestamp: time.Now(), OrderID: "o2", ClientID: "c2", Outcome: logging.OutcomeExhausted},
	}}
	h := NewOutcomesHandler(store, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/outcomes?outcome=accepted", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var out []logging.LogRecord
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].OrderID != "o1" {
		t.Fatalf("unexpected result: %#v", out)
	}
}

func TestOutcomesHandler_Unauthorized(t *testing.T) {
	h := NewOutcomesHandler(&memStore{}, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/outcomes", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/outcomes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}
