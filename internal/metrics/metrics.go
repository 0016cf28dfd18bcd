package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	Predictions       *prometheus.CounterVec
	PredictionLatency prometheus.Histogram
	EmailsSent        *prometheus.CounterVec
	TokensConsumed    prometheus.Counter
	TokensPurchased   prometheus.Counter
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route and status code.",
			}, []string{"route", "status"}),
			HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency distribution for HTTP requests by route.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total classifier predictions by label or outcome.",
			}, []string{"result"}),
			PredictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "Latency distribution for classifier inference.",
				Buckets:   prometheus.DefBuckets,
			}),
			EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_emails_total",
				Help:      "Total disease alert emails by outcome.",
			}, []string{"status"}),
			TokensConsumed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_consumed_total",
				Help:      "Total detection tokens debited from user balances.",
			}),
			TokensPurchased: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_purchased_total",
				Help:      "Total detection tokens credited through purchases.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.HTTPRequests,
			metricsInstance.HTTPDuration,
			metricsInstance.Predictions,
			metricsInstance.PredictionLatency,
			metricsInstance.EmailsSent,
			metricsInstance.TokensConsumed,
			metricsInstance.TokensPurchased,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
