package delivery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/courierhq/dispatchd/core/model"
)

func TestSQLiteStore_CreateAcceptUpdate(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	facts := model.OrderFacts{
		ClientID:        "c1",
		PickupAddress:   "1 Main St",
		DeliveryAddress: "2 Oak Ave",
		EstimatedPrice:  12.5,
		VehicleType:     "bike",
	}
	id, err := s.CreateDelivery(ctx, facts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("empty delivery id")
	}

	if err := s.AcceptDelivery(ctx, id, "d1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	facts.EstimatedPrice = 15
	if err := s.UpdateDelivery(ctx, id, facts); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestSQLiteStore_MissingDelivery(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.AcceptDelivery(ctx, "missing", "d1"); err == nil {
		t.Fatal("expected error for missing delivery")
	}
	if err := s.UpdateDelivery(ctx, "missing", model.OrderFacts{}); err == nil {
		t.Fatal("expected error for missing delivery")
	}
}
