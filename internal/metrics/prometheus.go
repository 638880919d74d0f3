package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AssistDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketmind_assist_duration_seconds",
			Help:    "Assist request processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	AssistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmind_assist_total",
			Help: "Total number of assist requests processed",
		},
		[]string{"operation", "status"},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketmind_retrieval_results_count",
			Help:    "Number of knowledge base candidates per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	RetrievalDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketmind_retrieval_degraded_total",
			Help: "Total assists answered with retrieval unavailable",
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketmind_confidence_score",
			Help:    "Top candidate confidence per assist",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmind_provider_requests_total",
			Help: "Total AI provider round-trips",
		},
		[]string{"provider", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmind_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmind_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	UserSatisfaction = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmind_feedback_total",
			Help: "User feedback votes by helpfulness",
		},
		[]string{"helpful"},
	)
)

func Init() {
	prometheus.MustRegister(AssistDuration)
	prometheus.MustRegister(AssistTotal)
	prometheus.MustRegister(RetrievalResultsCount)
	prometheus.MustRegister(RetrievalDegraded)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ProviderRequests)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(UserSatisfaction)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
