package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 10, 30},
		},
		[]string{"route"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_llm_requests_total",
			Help: "Total LLM requests by kind",
		},
		[]string{"kind", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 90},
		},
		[]string{"kind"},
	)

	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_executions_total",
			Help: "Total sandbox executions by mode",
		},
		[]string{"mode", "status"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_execution_duration_seconds",
			Help:    "Sandbox execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	RAGRetrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_rag_retrievals_total",
			Help: "Total retrieval attempts",
		},
		[]string{"status"},
	)

	RAGChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datachat_rag_chunks_indexed_total",
			Help: "Total dataset chunks indexed",
		},
	)

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datachat_sessions_created_total",
			Help: "Total upload sessions created",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AnalysisSections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_analysis_sections_total",
			Help: "Total analysis sections executed",
		},
		[]string{"section_type", "status"},
	)
)

func Init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LLMRequests)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(Executions)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(RAGRetrievals)
	prometheus.MustRegister(RAGChunksIndexed)
	prometheus.MustRegister(SessionsCreated)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(AnalysisSections)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request count and latency. The route label uses the
// registered pattern rather than the raw path to keep cardinality bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		HTTPRequests.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		return err
	}
}

// ObserveLLM records one provider round-trip.
func ObserveLLM(kind string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LLMRequests.WithLabelValues(kind, status).Inc()
	LLMRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveExecution records one sandbox run.
func ObserveExecution(mode string, start time.Time, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	Executions.WithLabelValues(mode, status).Inc()
	ExecutionDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
