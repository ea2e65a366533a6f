package gateway

import (
	"context"

	"github.com/courierhq/dispatchd/core/model"
)

// Gateway abstracts the notification transport between the coordinator, the
// drivers and the ordering clients. A nil-error Offer only means the
// transport accepted the message; it says nothing about whether the driver
// will answer.
type Gateway interface {
	// Offer sends the order summary to the candidate's notification address.
	Offer(ctx context.Context, candidate model.DriverCandidate, summary model.OrderSummary) error

	// NotifyClient delivers a best-effort notice to the ordering client.
	NotifyClient(ctx context.Context, clientID string, event model.ClientEvent) error

	// Responses yields driver answers as they arrive. The channel stays open
	// for the lifetime of the gateway.
	Responses() <-chan model.DriverResponse
}
