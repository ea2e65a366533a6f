// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - OrderEvent: new order request created
//   - OfferEvent: offer sent to a candidate
//   - ResponseEvent: driver response processed
//   - TimeoutEvent: candidate response window elapsed
//   - ExhaustedEvent: candidate list exhausted
//   - RecoveredEvent: late acceptance honored through recovery
package events
