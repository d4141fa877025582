// Package metrics публикует счётчики пакетных операций выезда и расчётов стоимости.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frontdesk"

// Metrics собирает метрики стойки. Нулевое значение и nil безопасны и ничего не пишут.
type Metrics struct {
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	quotes   *prometheus.CounterVec
}

// New регистрирует метрики в reg. При reg == nil метрики не собираются.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_rows_total",
		Help:      "Checkout rows processed by batch actions.",
	}, []string{"action", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_action_seconds",
		Help:      "Duration of checkout batch actions in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Quotes calculated, by source.",
	}, []string{"source"})
	reg.MustRegister(rows, duration, quotes)
	return &Metrics{rows: rows, duration: duration, quotes: quotes}
}

// ObserveAction записывает длительность операции и число успешных и неудачных строк.
func (m *Metrics) ObserveAction(action string, elapsed time.Duration, succeeded, failed int) {
	if m == nil || m.duration == nil {
		return
	}
	action = normalizeLabel(action)
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
	m.rows.WithLabelValues(action, "succeeded").Add(float64(succeeded))
	m.rows.WithLabelValues(action, "failed").Add(float64(failed))
}

// IncQuote увеличивает счётчик расчётов по источнику.
func (m *Metrics) IncQuote(source string) {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.WithLabelValues(normalizeLabel(source)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
