package mqtt

import (
	"context"
	"fmt"
	"sync"

	coregateway "github.com/courierhq/dispatchd/core/gateway"
	"github.com/courierhq/dispatchd/core/model"
)

// Gateway mirrors the core gateway interface.
type Gateway = coregateway.Gateway

// MockGateway is a simple gateway used in tests. It records outgoing offers
// and client events and lets tests push driver responses inbound.
type MockGateway struct {
	mu           sync.Mutex
	Offers       []model.DriverCandidate
	Summaries    map[string]model.OrderSummary
	ClientEvents map[string][]model.ClientEvent
	FailIDs      map[string]bool
	FailNotify   bool
	responses    chan model.DriverResponse
}

// NewMockGateway creates a new MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Summaries:    make(map[string]model.OrderSummary),
		ClientEvents: make(map[string][]model.ClientEvent),
		FailIDs:      make(map[string]bool),
		responses:    make(chan model.DriverResponse, 16),
	}
}

// Offer records the offer or fails if the candidate is configured to fail or
// has no notification address.
func (m *MockGateway) Offer(_ context.Context, cand model.DriverCandidate, summary model.OrderSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cand.NotifyAddress == "" {
		return coregateway.ErrUnreachableDriver
	}
	if m.FailIDs[cand.ID] {
		return fmt.Errorf("publish failed")
	}
	m.Offers = append(m.Offers, cand)
	m.Summaries[cand.ID] = summary
	return nil
}

// NotifyClient records the event or fails when configured to.
func (m *MockGateway) NotifyClient(_ context.Context, clientID string, event model.ClientEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNotify {
		return fmt.Errorf("notify failed")
	}
	m.ClientEvents[clientID] = append(m.ClientEvents[clientID], event)
	return nil
}

// Responses yields the responses pushed via PushResponse.
func (m *MockGateway) Responses() <-chan model.DriverResponse {
	return m.responses
}

// PushResponse feeds a driver response to the consumer.
func (m *MockGateway) PushResponse(resp model.DriverResponse) {
	m.responses <- resp
}

// OfferedIDs returns the candidate ids in offer order.
func (m *MockGateway) OfferedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Offers))
	for i, c := range m.Offers {
		out[i] = c.ID
	}
	return out
}

// EventsFor returns the recorded notices for a client.
func (m *MockGateway) EventsFor(clientID string) []model.ClientEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ClientEvent(nil), m.ClientEvents[clientID]...)
}

// MockLocator is a canned candidate locator used in tests.
type MockLocator struct {
	Candidates []model.DriverCandidate
	Err        error
}

func (m MockLocator) FindCandidates(ctx context.Context, origin model.LatLng, radiusKm float64) ([]model.DriverCandidate, error) {
	_ = ctx
	_ = origin
	_ = radiusKm
	return m.Candidates, m.Err
}
