// Package metrics holds the Prometheus collectors shared by the engine and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI completion requests by outcome",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI completion latency in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"model"},
	)
	cacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cache_operations_total",
			Help: "AI response cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	mappingTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingredient_mappings_total",
			Help: "Ingredients mapped to catalog products by confidence tier",
		},
		[]string{"tier"},
	)
	allergenDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergen_detections_total",
			Help: "Allergens detected by source",
		},
		[]string{"source"},
	)
	aiDetectionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergen_ai_outcomes_total",
			Help: "AI allergen detection outcomes",
		},
		[]string{"outcome"},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveAIRequest records one completion call.
func ObserveAIRequest(model string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	aiRequestsTotal.WithLabelValues(model, status).Inc()
	aiRequestDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func CacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheOperations.WithLabelValues(backend, result).Inc()
}

// MappingTier counts one mapped ingredient.
func MappingTier(tier string) {
	mappingTiers.WithLabelValues(tier).Inc()
}

// AllergenDetected adds n detections for source.
func AllergenDetected(source string, n int) {
	if n > 0 {
		allergenDetections.WithLabelValues(source).Add(float64(n))
	}
}

// AIDetectionOutcome counts an ok or unavailable AI detection.
func AIDetectionOutcome(outcome string) {
	aiDetectionOutcomes.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
