package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Catalog and stock sync runs by kind and result.",
		},
		[]string{"kind", "result"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Duration of sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)
	syncProductsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_products_total",
			Help: "Products handled by sync runs, by outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncDuration)
	prometheus.MustRegister(syncProductsTotal)
}

// RecordRequest 记录HTTP请求指标
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordSync records one finished run. kind is "catalog" or "stock"; outcomes
// maps an outcome label (created, updated, ...) to its count.
func RecordSync(kind string, err error, duration time.Duration, outcomes map[string]int) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	syncRunsTotal.WithLabelValues(kind, result).Inc()
	syncDuration.WithLabelValues(kind).Observe(duration.Seconds())
	for outcome, n := range outcomes {
		if n > 0 {
			syncProductsTotal.WithLabelValues(kind, outcome).Add(float64(n))
		}
	}
}

func classifyStatus(statusCode int) string {
	if statusCode >= 100 && statusCode < 600 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	return "unknown"
}

// MetricsHandler 返回Prometheus指标导出处理器
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
