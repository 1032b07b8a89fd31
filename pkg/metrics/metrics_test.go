package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontMetricsExportsCheckoutAndGateway(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCheckout("succeeded", 250*time.Millisecond)
	m.ObserveCheckout("failed", 10*time.Millisecond)
	m.ObserveCheckout("failed", 10*time.Millisecond)
	m.IncGatewayCall("verify-packet-price", true)
	m.IncGatewayCall("", false)
	m.SetWorkspaces(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_submissions_total", "outcome", "failed"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected failed=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "checkout_duration_seconds", "outcome", "succeeded"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "gateway_calls_total", "endpoint", "unknown"); err != nil {
		t.Fatalf("fetch gateway: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown endpoint=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "session_workspaces")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected session_workspaces=3")
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *StorefrontMetrics
	m.ObserveCheckout("succeeded", time.Second)
	m.IncGatewayCall("profile", true)
	m.SetWorkspaces(1)
	New(nil).ObserveCheckout("failed", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
