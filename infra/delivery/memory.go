package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	coredelivery "github.com/courierhq/dispatchd/core/delivery"
	"github.com/courierhq/dispatchd/core/model"
)

// Store mirrors the core delivery store interface.
type Store = coredelivery.Store

// Record is one persisted delivery.
type Record struct {
	ID        string
	Facts     model.OrderFacts
	DriverID  string
	Accepted  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemoryStore keeps delivery records in memory. Used in tests and as the
// default backend when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	// FailCreate and FailAccept simulate persistence failures in tests.
	FailCreate bool
	FailAccept bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) CreateDelivery(_ context.Context, facts model.OrderFacts) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate {
		return "", fmt.Errorf("create rejected")
	}
	id := uuid.NewString()
	now := time.Now()
	s.records[id] = &Record{ID: id, Facts: facts, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *MemoryStore) AcceptDelivery(_ context.Context, deliveryID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAccept {
		return fmt.Errorf("accept rejected")
	}
	r, ok := s.records[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %s not found", deliveryID)
	}
	r.DriverID = driverID
	r.Accepted = true
	r.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateDelivery(_ context.Context, deliveryID string, facts model.OrderFacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %s not found", deliveryID)
	}
	r.Facts = facts
	r.UpdatedAt = time.Now()
	return nil
}

// Seed inserts a record with a fixed id, for tests exercising the update
// path.
func (s *MemoryStore) Seed(id string, facts model.OrderFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.records[id] = &Record{ID: id, Facts: facts, CreatedAt: now, UpdatedAt: now}
}

// Get returns a copy of the record, if present.
func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Count returns the number of records.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
