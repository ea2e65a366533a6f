package logging

import (
	"context"
	"time"
)

// Outcome classifies how a dispatch attempt ended.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeRecovered Outcome = "recovered"
	OutcomeCancelled Outcome = "cancelled"
)

// LogRecord captures one terminal dispatch outcome.
type LogRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	OrderID         string    `json:"order_id"`
	DeliveryID      string    `json:"delivery_id,omitempty"`
	ClientID        string    `json:"client_id,omitempty"`
	VehicleType     string    `json:"vehicle_type,omitempty"`
	Outcome         Outcome   `json:"outcome"`
	DriverID        string    `json:"driver_id,omitempty"`
	CandidatesTried int       `json:"candidates_tried"`
	EstimatedPrice  float64   `json:"estimated_price,omitempty"`
	RecoverySource  string    `json:"recovery_source,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	ClientID string
	Outcome  Outcome
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
