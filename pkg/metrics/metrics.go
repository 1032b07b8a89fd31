package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records checkout and gateway activity.
type StorefrontMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkoutTotal    *prometheus.CounterVec
	gatewayCalls     *prometheus.CounterVec
	workspaces       prometheus.Gauge
}

// New registers the storefront metrics on the provided registerer. A nil registerer
// yields a no-op recorder.
func New(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout price verification in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	checkoutTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Calls to the remote storefront gateway by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	workspaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_workspaces",
		Help: "Session workspaces currently held in memory.",
	})
	reg.MustRegister(checkoutDuration, checkoutTotal, gatewayCalls, workspaces)
	return &StorefrontMetrics{
		checkoutDuration: checkoutDuration,
		checkoutTotal:    checkoutTotal,
		gatewayCalls:     gatewayCalls,
		workspaces:       workspaces,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *StorefrontMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkoutTotal == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.checkoutTotal.WithLabelValues(label).Inc()
	m.checkoutDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncGatewayCall counts a gateway call.
func (m *StorefrontMetrics) IncGatewayCall(endpoint string, ok bool) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(endpoint), outcome).Inc()
}

// SetWorkspaces reports the number of in-memory session workspaces.
func (m *StorefrontMetrics) SetWorkspaces(n int) {
	if m == nil || m.workspaces == nil {
		return
	}
	m.workspaces.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
