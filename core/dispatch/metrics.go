package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offersSent     *prometheus.CounterVec
	offerLatency   *prometheus.HistogramVec
	acceptanceRate *prometheus.GaugeVec
	notifySuccess  prometheus.Counter
	notifyFailure  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec, prometheus.Counter, prometheus.Counter) {
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_sent_total",
			Help: "Number of offers sent to driver candidates",
		},
		[]string{"vehicle_type"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offer_response_latency_seconds",
			Help:    "Latency between sending an offer and the decision taken for it",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vehicle_type"},
	)
	acc := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offer_acceptance_rate",
			Help: "Fraction of offers accepted per completed order",
		},
		[]string{"vehicle_type"},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_publish_success_total",
			Help: "Number of successful notification publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_publish_failure_total",
			Help: "Number of failed notification publish operations",
		},
	)
	return sent, lat, acc, suc, fail
}

func init() {
	offersSent, offerLatency, acceptanceRate, notifySuccess, notifyFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersSent, offerLatency, acceptanceRate, notifySuccess, notifyFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersSent, offerLatency, acceptanceRate, notifySuccess, notifyFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
