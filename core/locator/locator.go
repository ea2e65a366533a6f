package locator

import (
	"context"

	"github.com/courierhq/dispatchd/core/model"
)

// CandidateLocator finds drivers eligible for an order around a pickup point.
// The returned order is arbitrary but deterministic for a given snapshot, and
// the list may be empty.
type CandidateLocator interface {
	FindCandidates(ctx context.Context, origin model.LatLng, radiusKm float64) ([]model.DriverCandidate, error)
}
