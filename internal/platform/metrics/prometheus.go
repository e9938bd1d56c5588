package metrics

import (
	"net/http"

	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds custom Prometheus metrics for the media lifecycle.
type MetricsManager struct {
	Registry                  *prometheus.Registry
	MediaAttachesTotal        prometheus.Counter
	MediaDetachesTotal        prometheus.Counter
	CompensationsTotal        *prometheus.CounterVec
	CompensationFailuresTotal *prometheus.CounterVec
	ReconcilerSweepsTotal     prometheus.Counter
	ReconciledIntentsTotal    prometheus.Counter
	OperationLatency          *prometheus.HistogramVec
	OperationErrorsTotal      *prometheus.CounterVec
}

// NewMetricsManager initializes and registers custom Prometheus metrics.
func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	mediaAttachesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "media_attaches_total",
		Help:      "Total number of media assets successfully attached.",
	})
	mediaDetachesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "media_detaches_total",
		Help:      "Total number of media assets successfully detached.",
	})
	compensationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "compensations_total",
		Help:      "Total number of compensating actions attempted, by direction.",
	}, []string{"direction"}) // "rollback" (attach path) or "restore" (detach path)
	compensationFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "compensation_failures_total",
		Help:      "Total number of compensating actions that themselves failed.",
	}, []string{"direction"})
	reconcilerSweepsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "reconciler_sweeps_total",
		Help:      "Total number of reconciler sweep runs.",
	})
	reconciledIntentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "reconciled_intents_total",
		Help:      "Total number of stale saga intents resolved by the reconciler.",
	})
	operationLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: serviceName,
		Name:      "operation_latency_seconds",
		Help:      "Latency of media lifecycle operations by name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	operationErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "operation_errors_total",
		Help:      "Total number of failed media lifecycle operations by name and error class.",
	}, []string{"operation", "error_class"})

	registry.MustRegister(
		mediaAttachesTotal,
		mediaDetachesTotal,
		compensationsTotal,
		compensationFailuresTotal,
		reconcilerSweepsTotal,
		reconciledIntentsTotal,
		operationLatency,
		operationErrorsTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &MetricsManager{
		Registry:                  registry,
		MediaAttachesTotal:        mediaAttachesTotal,
		MediaDetachesTotal:        mediaDetachesTotal,
		CompensationsTotal:        compensationsTotal,
		CompensationFailuresTotal: compensationFailuresTotal,
		ReconcilerSweepsTotal:     reconcilerSweepsTotal,
		ReconciledIntentsTotal:    reconciledIntentsTotal,
		OperationLatency:          operationLatency,
		OperationErrorsTotal:      operationErrorsTotal,
	}
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics.
func StartMetricsServer(port string, appLogger *logger.Logger, registry *prometheus.Registry) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appLogger.Info("Prometheus metrics server starting", zap.String("port", port), zap.String("path", "/metrics"))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	return server.ListenAndServe()
}
