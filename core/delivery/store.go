package delivery

import (
	"context"

	"github.com/courierhq/dispatchd/core/model"
)

// Store persists delivery records. Implementations surface failures as
// errors; the coordinator does not retry writes, that policy belongs to the
// store or its caller.
type Store interface {
	// CreateDelivery persists a new delivery from the order facts and
	// returns its identifier.
	CreateDelivery(ctx context.Context, facts model.OrderFacts) (string, error)

	// AcceptDelivery marks the delivery as taken by the driver.
	AcceptDelivery(ctx context.Context, deliveryID, driverID string) error

	// UpdateDelivery overwrites the address and price fields of an existing
	// delivery with the order's current values.
	UpdateDelivery(ctx context.Context, deliveryID string, facts model.OrderFacts) error
}
