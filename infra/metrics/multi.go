package metrics

import (
	"errors"

	coremetrics "github.com/courierhq/dispatchd/core/metrics"
)

// MultiSink fans records out to several sinks, collecting every error.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink combines the given sinks into one.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordOfferResults(res []coremetrics.OfferResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordOfferResults(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	var errs []error
	for _, s := range m.sinks {
		if lr, ok := s.(coremetrics.LatencyRecorder); ok {
			if err := lr.RecordOfferLatency(recs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCandidateCount(n int) error {
	var errs []error
	for _, s := range m.sinks {
		if cr, ok := s.(coremetrics.CandidateCountRecorder); ok {
			if err := cr.RecordCandidateCount(n); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
