package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/courierhq/dispatchd/core/metrics"
)

// PromSink records offer events in Prometheus metrics.
type PromSink struct {
	events     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	candidates prometheus.Gauge
}

// NewPromSink registers offer metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using the configured
// port.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_events_total",
		Help: "Total number of offer decision events",
	}, []string{"driver_id", "vehicle_type", "accepted"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offer_decision_latency_seconds",
		Help:    "Time between offer send and the decision taken for it",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver_id", "accepted"})
	candidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "search_candidates_total",
		Help: "Number of candidates returned by the last driver search",
	})

	if err := reg.Register(events); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			events = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(candidates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			candidates = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{events: events, latency: latency, candidates: candidates}, nil
}

// RecordOfferResults increments the counter for each offer result.
func (s *PromSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	for _, r := range res {
		s.events.WithLabelValues(r.DriverID, r.VehicleType, strconv.FormatBool(r.Accepted)).Inc()
	}
	return nil
}

// RecordOfferLatency records the offer decision latency histogram.
func (s *PromSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(r.DriverID, strconv.FormatBool(r.Accepted)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordCandidateCount sets the gauge to the size of the last search result.
func (s *PromSink) RecordCandidateCount(n int) error {
	if s.candidates != nil {
		s.candidates.Set(float64(n))
	}
	return nil
}
