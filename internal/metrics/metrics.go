package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medical_chatbot_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medical_chatbot_request_latency_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medical_chatbot_errors_total",
			Help: "Total number of errors by endpoint and type",
		},
		[]string{"endpoint", "error_type"},
	)

	// ExtractionFailures counts confirmed conversations whose profile could
	// not be extracted.
	ExtractionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medical_chatbot_extraction_failures_total",
			Help: "Confirmed conversations whose profile extraction failed",
		},
	)

	FormExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_extractions_total",
			Help: "Form extraction attempts by result",
		},
		[]string{"result"},
	)

	BenefitDiagnostics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medical_chatbot_benefit_diagnostics",
			Help: "Benefit table lines skipped at load time",
		},
	)
)
