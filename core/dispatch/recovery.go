package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/courierhq/dispatchd/core/dispatch/logging"
	"github.com/courierhq/dispatchd/core/events"
	"github.com/courierhq/dispatchd/core/model"
)

// recoverLateAcceptance honors an acceptance whose order is no longer tracked
// as active. An accepting driver is never ignored just because local
// bookkeeping moved on: the facts are recovered from the freshest source
// still available, trying the expired snapshot before the response context
// before a placeholder. Callers must hold the coordinator mutex.
func (c *Coordinator) recoverLateAcceptance(ctx context.Context, resp model.DriverResponse) (bool, error) {
	if deliveryID, ok := c.committedDelivery(resp.OrderID); ok {
		// Replay of an acceptance already committed; one record per order.
		c.logger.Debugf("order %s already committed as delivery %s, duplicate dropped", resp.OrderID, deliveryID)
		return true, nil
	}

	var facts model.OrderFacts
	source := events.RecoveryPlaceholder
	if snap := c.registry.ConsumeExpired(resp.OrderID); snap != nil {
		facts = snap.Facts
		source = events.RecoveryExpiredSnapshot
	} else if resp.Context != nil {
		facts = resp.Context.Facts()
		source = events.RecoveryResponseContext
	} else {
		facts = placeholderFacts()
	}

	deliveryID, err := c.commitDelivery(ctx, facts, resp.DriverID)
	if err != nil {
		// At this point the order is gone from the registry: an accepted but
		// uncommitted delivery. Surface it loudly instead of swallowing.
		c.logger.Errorf("ACCEPTED ORDER %s LOST: recovery commit failed: %v", resp.OrderID, err)
		return false, fmt.Errorf("recover order %s: %w", resp.OrderID, err)
	}
	c.rememberCommit(resp.OrderID, facts.DeliveryID, deliveryID)

	if c.bus != nil {
		c.bus.Publish(events.RecoveredEvent{
			OrderID:    resp.OrderID,
			DriverID:   resp.DriverID,
			DeliveryID: deliveryID,
			Source:     source,
		})
	}
	c.notifyClient(ctx, facts.ClientID, model.ClientEvent{
		Type:      model.ClientEventAccepted,
		OrderID:   resp.OrderID,
		DriverID:  resp.DriverID,
		Timestamp: time.Now(),
	})
	c.appendOutcome(logging.LogRecord{
		Timestamp:      time.Now(),
		OrderID:        resp.OrderID,
		DeliveryID:     deliveryID,
		ClientID:       facts.ClientID,
		VehicleType:    facts.VehicleType,
		Outcome:        logging.OutcomeRecovered,
		DriverID:       resp.DriverID,
		EstimatedPrice: facts.EstimatedPrice,
		RecoverySource: string(source),
	})
	c.logger.Warnf("order %s: late acceptance by %s recovered from %s (delivery %s)", resp.OrderID, resp.DriverID, source, deliveryID)
	return true, nil
}

// placeholderFacts is the last-resort commit payload: a human reconciles
// these records later, which beats silently losing an acceptance.
func placeholderFacts() model.OrderFacts {
	return model.OrderFacts{
		PickupAddress:   "unknown pickup (recovered order)",
		DeliveryAddress: "unknown destination (recovered order)",
		EstimatedPrice:  0,
	}
}
