package model

import "time"

// DriverCandidate is a driver eligible to receive an offer. Candidates are
// sourced fresh per order and stay immutable for the lifetime of the search.
type DriverCandidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// NotifyAddress is the transport-level address offers are sent to. An
	// empty address makes the candidate unreachable.
	NotifyAddress string  `json:"notify_address"`
	VehicleType   string  `json:"vehicle_type"`
	Location      LatLng  `json:"location"`
	Rating        float64 `json:"rating"`
	Available     bool    `json:"available"`
}

// DriverResponse is a driver's answer to an offer, pushed in by the gateway.
// OrderID may carry either the canonical or the external order identifier.
type DriverResponse struct {
	DriverID  string    `json:"driver_id"`
	OrderID   string    `json:"order_id"`
	Accepted  bool      `json:"accepted"`
	Timestamp time.Time `json:"timestamp"`
	// Context is the order snapshot the driver's client echoed back from the
	// offer payload. It is only consulted when the order is no longer known
	// locally.
	Context *OrderSummary `json:"context,omitempty"`
}
