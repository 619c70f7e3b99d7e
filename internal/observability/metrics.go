package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for the ephemeris and
// submission pipeline and provides a ready-to-serve /metrics handler.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	EphemerisRequests  *prometheus.CounterVec
	EphemerisCacheHits prometheus.Counter
	DocumentsBuilt     prometheus.Counter
	UploadAttempts     *prometheus.CounterVec
	UploadDuration     prometheus.Histogram
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ephemeris_requests_total",
		Help: "Total requests issued to the ephemeris source, labeled by outcome.",
	}, []string{"outcome"})
	requests, err := registerCounterVec(reg, requests, "ephemeris_requests_total")
	if err != nil {
		return nil, err
	}

	cacheHits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ephemeris_cache_hits_total",
		Help: "Ephemeris queries answered from the local cache.",
	}), "ephemeris_cache_hits_total")
	if err != nil {
		return nil, err
	}

	built, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_built_total",
		Help: "ET documents successfully built and written.",
	}), "documents_built_total")
	if err != nil {
		return nil, err
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_attempts_total",
		Help: "Per-document upload attempts, labeled by resulting delivery state.",
	}, []string{"state"})
	attempts, err = registerCounterVec(reg, attempts, "upload_attempts_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_duration_seconds",
		Help:    "Wall time for one document's upload including retries.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "upload_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:           gatherer,
		EphemerisRequests:  requests,
		EphemerisCacheHits: cacheHits,
		DocumentsBuilt:     built,
		UploadAttempts:     attempts,
		UploadDuration:     duration,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// nil-tolerant recording helpers; a nil collector drops all observations
// so library code never has to guard.

func (c *PipelineCollector) RecordEphemerisRequest(outcome string) {
	if c == nil || c.EphemerisRequests == nil {
		return
	}
	c.EphemerisRequests.WithLabelValues(outcome).Inc()
}

func (c *PipelineCollector) RecordCacheHit() {
	if c == nil || c.EphemerisCacheHits == nil {
		return
	}
	c.EphemerisCacheHits.Inc()
}

func (c *PipelineCollector) RecordDocumentBuilt() {
	if c == nil || c.DocumentsBuilt == nil {
		return
	}
	c.DocumentsBuilt.Inc()
}

func (c *PipelineCollector) RecordUploadAttempt(state string) {
	if c == nil || c.UploadAttempts == nil {
		return
	}
	c.UploadAttempts.WithLabelValues(state).Inc()
}

func (c *PipelineCollector) ObserveUploadDuration(seconds float64) {
	if c == nil || c.UploadDuration == nil {
		return
	}
	c.UploadDuration.Observe(seconds)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
