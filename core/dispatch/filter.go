package dispatch

import "github.com/courierhq/dispatchd/core/model"

// CandidateFilter narrows the located drivers down to those eligible for a
// specific order.
type CandidateFilter interface {
	Filter(candidates []model.DriverCandidate, facts model.OrderFacts) []model.DriverCandidate
}

// SimpleCandidateFilter keeps available drivers whose vehicle type matches
// the order. An order without a vehicle type accepts any vehicle.
type SimpleCandidateFilter struct{}

func (SimpleCandidateFilter) Filter(candidates []model.DriverCandidate, facts model.OrderFacts) []model.DriverCandidate {
	var out []model.DriverCandidate
	for _, c := range candidates {
		if !c.Available {
			continue
		}
		if facts.VehicleType != "" && c.VehicleType != "" && c.VehicleType != facts.VehicleType {
			continue
		}
		out = append(out, c)
	}
	return out
}
