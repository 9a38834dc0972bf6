// Package metrics exposes the tracker's Prometheus instrumentation.
// Collectors are registered on the default registry via promauto and
// served by the api package at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntryMutations counts engine protocol executions by operation and
	// outcome ("ok" / "error").
	EntryMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "financeiro",
		Name:      "entry_mutations_total",
		Help:      "Entry mutation protocols executed, by operation and outcome.",
	}, []string{"op", "outcome"})

	// BalanceAdjustments counts individual balance deltas applied to
	// accounts, including zero-valued ones (neutral and unpaid entries).
	BalanceAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "financeiro",
		Name:      "balance_adjustments_total",
		Help:      "Balance deltas applied to account rows.",
	})

	// InstallmentsExpanded counts entries created through the installment
	// expander.
	InstallmentsExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "financeiro",
		Name:      "installments_expanded_total",
		Help:      "Entries created by installment expansion.",
	})

	// RemindersSent counts WhatsApp payment reminders by outcome.
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "financeiro",
		Name:      "reminders_sent_total",
		Help:      "Payment reminder messages, by outcome.",
	}, []string{"outcome"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "financeiro",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// HTTPMiddleware records request latency on the default registry.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		class := strconv.Itoa(sw.status/100) + "xx"
		httpDuration.WithLabelValues(r.Method, class).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
