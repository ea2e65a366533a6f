package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/courierhq/dispatchd/core/dispatch/logging"
	"github.com/courierhq/dispatchd/core/model"
)

func lateAccept(t *testing.T, f *fixture, orderID, driverID string, ctx *model.OrderSummary) {
	t.Helper()
	handled, err := f.coord.HandleDriverResponse(context.Background(), model.DriverResponse{
		DriverID:  driverID,
		OrderID:   orderID,
		Accepted:  true,
		Timestamp: time.Now(),
		Context:   ctx,
	})
	if err != nil {
		t.Fatalf("late acceptance: %v", err)
	}
	if !handled {
		t.Fatal("late acceptance dropped")
	}
}

func TestRecovery_FromExpiredSnapshot(t *testing.T) {
	f := newFixture(t, candidates("d1"))
	order := f.start(t, model.OrderFacts{ClientID: "c1", PickupAddress: "12 Rue A", EstimatedPrice: 18.5})

	// The window runs out, the order exhausts, then the driver accepts.
	f.coord.HandleTimeout(order.ID, 0)
	if f.coord.GetActiveRequest(order.ID) != nil {
		t.Fatal("order should be exhausted")
	}
	lateAccept(t, f, order.ID, "d1", nil)

	if f.store.Count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", f.store.Count())
	}
	rec, ok := f.store.Get(firstDeliveryID(t, f))
	if !ok || rec.Facts.PickupAddress != "12 Rue A" || rec.Facts.EstimatedPrice != 18.5 {
		t.Fatalf("snapshot facts not preserved: %#v", rec.Facts)
	}
	out := f.log.outcomes()
	if len(out) != 2 || out[0] != logging.OutcomeExhausted || out[1] != logging.OutcomeRecovered {
		t.Fatalf("wrong outcomes: %v", out)
	}
	recs, _ := f.log.Query(context.Background(), logging.LogQuery{})
	if recs[1].RecoverySource != "expired_snapshot" {
		t.Fatalf("wrong recovery source: %s", recs[1].RecoverySource)
	}
	events := f.gw.EventsFor("c1")
	if len(events) != 2 || events[1].Type != model.ClientEventAccepted {
		t.Fatalf("client not told of the recovery: %#v", events)
	}
}

func TestRecovery_SnapshotConsumedOnce(t *testing.T) {
	f := newFixture(t, candidates("d1"))
	order := f.start(t, model.OrderFacts{ClientID: "c1"})
	f.coord.HandleTimeout(order.ID, 0)

	lateAccept(t, f, order.ID, "d1", nil)
	// The replayed acceptance must not mint a second delivery.
	lateAccept(t, f, order.ID, "d1", nil)

	if f.store.Count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", f.store.Count())
	}
}

func TestRecovery_FromResponseContext(t *testing.T) {
	f := newFixture(t, candidates("d1"))
	order := f.start(t, model.OrderFacts{ClientID: "c1"})
	summary := order.Summary()
	f.coord.HandleTimeout(order.ID, 0)

	// Past the TTL the snapshot is gone; the echoed offer payload remains.
	f.coord.registry.Remove(order.ID)
	lateAccept(t, f, order.ID, "d1", &summary)

	if f.store.Count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", f.store.Count())
	}
	rec, ok := f.store.Get(firstDeliveryID(t, f))
	if !ok || rec.Facts.ClientID != "c1" {
		t.Fatalf("context facts not used: %#v", rec.Facts)
	}
	recs, _ := f.log.Query(context.Background(), logging.LogQuery{})
	last := recs[len(recs)-1]
	if last.RecoverySource != "response_context" {
		t.Fatalf("wrong recovery source: %s", last.RecoverySource)
	}
}

func TestRecovery_PlaceholderAsLastResort(t *testing.T) {
	f := newFixture(t, nil)

	// Acceptance for an order this process never knew.
	lateAccept(t, f, "foreign-order", "d9", nil)

	if f.store.Count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", f.store.Count())
	}
	rec, ok := f.store.Get(firstDeliveryID(t, f))
	if !ok || !strings.Contains(rec.Facts.PickupAddress, "unknown pickup") {
		t.Fatalf("placeholder facts expected: %#v", rec.Facts)
	}
	if !rec.Accepted || rec.DriverID != "d9" {
		t.Fatalf("recovered delivery not accepted: %#v", rec)
	}
	recs, _ := f.log.Query(context.Background(), logging.LogQuery{})
	if recs[len(recs)-1].RecoverySource != "placeholder" {
		t.Fatalf("wrong recovery source: %s", recs[len(recs)-1].RecoverySource)
	}
}

func TestRecovery_CommitFailureSurfaces(t *testing.T) {
	f := newFixture(t, nil)
	f.store.FailCreate = true

	handled, err := f.coord.HandleDriverResponse(context.Background(), model.DriverResponse{
		DriverID: "d1", OrderID: "ghost", Accepted: true,
	})
	if err == nil || handled {
		t.Fatal("failed recovery commit must surface an error")
	}
}

func TestRecovery_UsesExistingDeliveryRecord(t *testing.T) {
	f := newFixture(t, candidates("d1"))
	f.store.Seed("d-31", model.OrderFacts{ClientID: "c1"})
	order := f.start(t, model.OrderFacts{DeliveryID: "d-31", ClientID: "c1"})
	f.coord.HandleTimeout(order.ID, 0)

	lateAccept(t, f, "d-31", "d1", nil)

	if f.store.Count() != 1 {
		t.Fatalf("recovery duplicated the persisted delivery: %d", f.store.Count())
	}
	rec, _ := f.store.Get("d-31")
	if !rec.Accepted || rec.DriverID != "d1" {
		t.Fatalf("persisted delivery not accepted: %#v", rec)
	}
}

// firstDeliveryID digs the committed delivery id out of the outcome log.
func firstDeliveryID(t *testing.T, f *fixture) string {
	t.Helper()
	recs, err := f.log.Query(context.Background(), logging.LogQuery{})
	if err != nil {
		t.Fatalf("query outcomes: %v", err)
	}
	for _, r := range recs {
		if r.DeliveryID != "" {
			return r.DeliveryID
		}
	}
	t.Fatal("no delivery id recorded")
	return ""
}
