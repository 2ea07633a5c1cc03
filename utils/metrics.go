package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Уровни каскада пересчета
const (
	CascadeContract = "contract"
	CascadeProject  = "project"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	requestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fabrika_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})

	cascadeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_cascade_runs_total",
		Help: "Financial recomputations by level.",
	}, []string{"level"})

	cascadeNoops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_cascade_noops_total",
		Help: "Recomputations skipped because the target record was missing.",
	}, []string{"level"})

	reconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_reconcile_runs_total",
		Help: "Full reconciliation passes.",
	})

	notificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_notification_errors_total",
		Help: "Failed email notifications.",
	})
)

// RecordRequest записывает метрики запроса
func RecordRequest(method string, status int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	requestLatency.Observe(duration.Seconds())
}

// RecordCascade отмечает выполненный пересчет
func RecordCascade(level string) {
	cascadeRuns.WithLabelValues(level).Inc()
}

// RecordCascadeNoop отмечает пересчет, пропущенный из-за отсутствия записи
func RecordCascadeNoop(level string) {
	cascadeNoops.WithLabelValues(level).Inc()
}

// RecordReconcile отмечает полную сверку
func RecordReconcile() {
	reconcileRuns.Inc()
}

// RecordNotificationError отмечает неудачную отправку уведомления
func RecordNotificationError() {
	notificationErrors.Inc()
}
