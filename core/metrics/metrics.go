package metrics

import "time"

// OfferResult represents one per-candidate offer decision to be recorded.
type OfferResult struct {
	OrderID     string
	DriverID    string
	VehicleType string
	Accepted    bool
	PriceEst    float64
	OfferTime   time.Time
}

// MetricsSink records offer results for observability purposes.
type MetricsSink interface {
	RecordOfferResults(results []OfferResult) error
}

// OfferLatency captures the delay between sending an offer and the decision
// taken for it (response, timeout or transport failure).
type OfferLatency struct {
	OrderID  string
	DriverID string
	Accepted bool
	Latency  time.Duration
}

// LatencyRecorder is implemented by sinks that track offer latencies.
type LatencyRecorder interface {
	RecordOfferLatency(recs []OfferLatency) error
}

// CandidateCountRecorder is implemented by sinks that track how many
// candidates a search returned.
type CandidateCountRecorder interface {
	RecordCandidateCount(n int) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordOfferResults([]OfferResult) error  { return nil }
func (NopSink) RecordOfferLatency([]OfferLatency) error { return nil }
func (NopSink) RecordCandidateCount(int) error          { return nil }
