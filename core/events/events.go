package events

import (
	"time"

	"github.com/courierhq/dispatchd/core/model"
)

// OrderEvent is published when a new order request enters the coordinator.
type OrderEvent struct {
	Order *model.OrderRequest
}

// OfferEvent is published each time an offer is sent to a candidate.
type OfferEvent struct {
	OrderID  string
	DriverID string
	Index    int
	SentAt   time.Time
}

// ResponseEvent is published for each driver response processed.
type ResponseEvent struct {
	Response model.DriverResponse
	// Known reports whether the order was still tracked when the response
	// arrived.
	Known bool
}

// TimeoutEvent is published when a candidate's response window elapses.
type TimeoutEvent struct {
	OrderID string
	Index   int
}

// ExhaustedEvent is published when an order runs out of candidates.
type ExhaustedEvent struct {
	OrderID string
	Tried   int
}

// RecoverySource identifies which branch of late-response recovery produced
// the committed delivery.
type RecoverySource string

const (
	RecoveryExpiredSnapshot RecoverySource = "expired_snapshot"
	RecoveryResponseContext RecoverySource = "response_context"
	RecoveryPlaceholder     RecoverySource = "placeholder"
)

// RecoveredEvent is published when a late acceptance is honored through the
// recovery path.
type RecoveredEvent struct {
	OrderID    string
	DriverID   string
	DeliveryID string
	Source     RecoverySource
}
