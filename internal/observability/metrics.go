package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HarnessCollector bundles Prometheus metrics for the resilience harness and
// exposes them over HTTP.
type HarnessCollector struct {
	gatherer prometheus.Gatherer

	Deliveries       *prometheus.CounterVec
	DeliveryHops     *prometheus.HistogramVec
	RateSuccess      *prometheus.GaugeVec
	ScenarioDuration prometheus.Histogram
	TopologyNodes    prometheus.Gauge
}

// NewHarnessCollector registers harness metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewHarnessCollector(reg prometheus.Registerer) (*HarnessCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	deliveries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meshsim_deliveries_total",
		Help: "Simulated delivery attempts, labeled by hop policy and outcome.",
	}, []string{"policy", "outcome"}), "meshsim_deliveries_total")
	if err != nil {
		return nil, err
	}

	hops, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshsim_delivery_hops",
		Help:    "Hops used per simulated delivery attempt.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
	}, []string{"policy"}), "meshsim_delivery_hops")
	if err != nil {
		return nil, err
	}

	rateSuccess, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meshsim_rate_success_ratio",
		Help: "Delivery success ratio of the last batch run at each failure rate.",
	}, []string{"policy", "failure_rate"}), "meshsim_rate_success_ratio")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meshsim_scenario_duration_seconds",
		Help:    "Wall-clock duration of complete harness scenarios.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}), "meshsim_scenario_duration_seconds")
	if err != nil {
		return nil, err
	}

	nodes, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meshsim_topology_nodes",
		Help: "Number of nodes in the most recently generated topology.",
	}), "meshsim_topology_nodes")
	if err != nil {
		return nil, err
	}

	return &HarnessCollector{
		gatherer:         gatherer,
		Deliveries:       deliveries,
		DeliveryHops:     hops,
		RateSuccess:      rateSuccess,
		ScenarioDuration: duration,
		TopologyNodes:    nodes,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *HarnessCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveDelivery records one delivery attempt.
func (c *HarnessCollector) ObserveDelivery(policy string, success bool, hops int) {
	if c == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "delivered"
	}
	if c.Deliveries != nil {
		c.Deliveries.WithLabelValues(policy, outcome).Inc()
	}
	if c.DeliveryHops != nil {
		c.DeliveryHops.WithLabelValues(policy).Observe(float64(hops))
	}
}

// SetRateSuccess records the success ratio for a policy at a failure rate.
func (c *HarnessCollector) SetRateSuccess(policy string, failureRate, ratio float64) {
	if c == nil || c.RateSuccess == nil {
		return
	}
	c.RateSuccess.WithLabelValues(policy, strconv.FormatFloat(failureRate, 'f', -1, 64)).Set(ratio)
}

// ObserveScenario records a scenario's duration and topology size.
func (c *HarnessCollector) ObserveScenario(d time.Duration, nodes int) {
	if c == nil {
		return
	}
	if c.ScenarioDuration != nil {
		c.ScenarioDuration.Observe(d.Seconds())
	}
	if c.TopologyNodes != nil {
		c.TopologyNodes.Set(float64(nodes))
	}
}

// register adds c to reg, reusing an already registered collector of the
// same type so that several harnesses can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}
