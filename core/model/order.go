package model

import (
	"time"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate carries no position.
func (p LatLng) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }

// OrderFacts are the immutable facts of a placed order, fixed at creation.
type OrderFacts struct {
	// DeliveryID references an already persisted delivery record, when one
	// exists before dispatch starts. It doubles as the order's external id.
	DeliveryID       string  `json:"delivery_id,omitempty"`
	ClientID         string  `json:"client_id"`
	ClientName       string  `json:"client_name"`
	PickupAddress    string  `json:"pickup_address"`
	DeliveryAddress  string  `json:"delivery_address"`
	PickupLocation   LatLng  `json:"pickup_location"`
	DeliveryLocation LatLng  `json:"delivery_location"`
	EstimatedPrice   float64 `json:"estimated_price"`
	VehicleType      string  `json:"vehicle_type"`
	// TimeoutSeconds overrides the configured per-candidate response window
	// when positive.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// OrderRequest is one outstanding dispatch attempt. The facts are immutable;
// only the candidate cursor and the persisted delivery id are updated by the
// coordinator after creation.
type OrderRequest struct {
	ID        string
	Facts     OrderFacts
	CreatedAt time.Time

	// Candidates is fetched once per order and never refreshed during
	// escalation.
	Candidates []DriverCandidate
	// CurrentCandidate indexes the candidate currently awaiting a response.
	// It only grows until acceptance or exhaustion.
	CurrentCandidate int
	// OfferSentAt marks when the current offer left the gateway.
	OfferSentAt time.Time
}

// ExternalID returns the secondary identifier of the order, if any.
func (o *OrderRequest) ExternalID() string { return o.Facts.DeliveryID }

// Exhausted reports whether every candidate has been tried.
func (o *OrderRequest) Exhausted() bool {
	return o.CurrentCandidate >= len(o.Candidates)
}

// Summary flattens the order into the payload shared with the notification
// gateway. The same shape comes back as the recovery context of a late
// acceptance.
func (o *OrderRequest) Summary() OrderSummary {
	return OrderSummary{
		OrderID:         o.ID,
		DeliveryID:      o.Facts.DeliveryID,
		ClientID:        o.Facts.ClientID,
		ClientName:      o.Facts.ClientName,
		PickupAddress:   o.Facts.PickupAddress,
		DeliveryAddress: o.Facts.DeliveryAddress,
		PickupLat:       o.Facts.PickupLocation.Lat,
		PickupLng:       o.Facts.PickupLocation.Lng,
		DeliveryLat:     o.Facts.DeliveryLocation.Lat,
		DeliveryLng:     o.Facts.DeliveryLocation.Lng,
		EstimatedPrice:  o.Facts.EstimatedPrice,
		VehicleType:     o.Facts.VehicleType,
	}
}

// OrderSummary is the flat key-value contract between the coordinator and the
// notification gateway. Every field is optional on the way back in: a driver
// client echoes whatever subset it received.
type OrderSummary struct {
	OrderID         string  `json:"order_id,omitempty"`
	DeliveryID      string  `json:"delivery_id,omitempty"`
	ClientID        string  `json:"client_id,omitempty"`
	ClientName      string  `json:"client_name,omitempty"`
	PickupAddress   string  `json:"pickup_address,omitempty"`
	DeliveryAddress string  `json:"delivery_address,omitempty"`
	PickupLat       float64 `json:"pickup_lat,omitempty"`
	PickupLng       float64 `json:"pickup_lng,omitempty"`
	DeliveryLat     float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     float64 `json:"delivery_lng,omitempty"`
	EstimatedPrice  float64 `json:"estimated_price,omitempty"`
	VehicleType     string  `json:"vehicle_type,omitempty"`
}

// Facts reassembles order facts from the summary. Missing fields stay zero.
func (s OrderSummary) Facts() OrderFacts {
	return OrderFacts{
		DeliveryID:       s.DeliveryID,
		ClientID:         s.ClientID,
		ClientName:       s.ClientName,
		PickupAddress:    s.PickupAddress,
		DeliveryAddress:  s.DeliveryAddress,
		PickupLocation:   LatLng{Lat: s.PickupLat, Lng: s.PickupLng},
		DeliveryLocation: LatLng{Lat: s.DeliveryLat, Lng: s.DeliveryLng},
		EstimatedPrice:   s.EstimatedPrice,
		VehicleType:      s.VehicleType,
	}
}

// ClientEventType enumerates the notices sent back to the ordering client.
type ClientEventType string

const (
	// ClientEventAccepted tells the client a driver took the order.
	ClientEventAccepted ClientEventType = "accepted"
	// ClientEventNoAvailability tells the client no driver accepted.
	ClientEventNoAvailability ClientEventType = "no_availability"
)

// ClientEvent is a best-effort notice delivered to the ordering client.
type ClientEvent struct {
	Type       ClientEventType `json:"type"`
	OrderID    string          `json:"order_id"`
	DriverID   string          `json:"driver_id,omitempty"`
	DriverName string          `json:"driver_name,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
