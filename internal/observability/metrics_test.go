package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveDeliveryRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewHarnessCollector(reg)
	if err != nil {
		t.Fatalf("NewHarnessCollector: %v", err)
	}

	collector.ObserveDelivery("adaptive", true, 2)
	collector.ObserveDelivery("adaptive", false, 0)
	collector.ObserveDelivery("baseline", true, 1)

	if got := testutil.ToFloat64(collector.Deliveries.WithLabelValues("adaptive", "delivered")); got != 1 {
		t.Fatalf("adaptive delivered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Deliveries.WithLabelValues("adaptive", "failed")); got != 1 {
		t.Fatalf("adaptive failed = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "meshsim_delivery_hops", map[string]string{"policy": "adaptive"}); count != 2 {
		t.Fatalf("meshsim_delivery_hops sample_count = %d, want 2", count)
	}
}

func TestRateSuccessAndScenarioGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewHarnessCollector(reg)
	if err != nil {
		t.Fatalf("NewHarnessCollector: %v", err)
	}

	collector.SetRateSuccess("baseline", 0.1, 0.75)
	collector.ObserveScenario(20*time.Millisecond, 25)

	if got := testutil.ToFloat64(collector.RateSuccess.WithLabelValues("baseline", "0.1")); got != 0.75 {
		t.Fatalf("rate success = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(collector.TopologyNodes); got != 25 {
		t.Fatalf("topology nodes = %v, want 25", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"meshsim_rate_success_ratio",
		"meshsim_scenario_duration_seconds",
		"meshsim_topology_nodes",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestCollectorReusesExistingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewHarnessCollector(reg)
	if err != nil {
		t.Fatalf("first NewHarnessCollector: %v", err)
	}
	second, err := NewHarnessCollector(reg)
	if err != nil {
		t.Fatalf("second NewHarnessCollector: %v", err)
	}
	second.ObserveDelivery("adaptive", true, 1)
	if got := testutil.ToFloat64(first.Deliveries.WithLabelValues("adaptive", "delivered")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *HarnessCollector
	c.ObserveDelivery("adaptive", true, 1)
	c.SetRateSuccess("adaptive", 0, 1)
	c.ObserveScenario(time.Second, 3)
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
