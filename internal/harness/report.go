package harness

import (
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/mesh-simulator/model"
)

// DeliveryRecord is one row of the per-message table: the same message run
// under both policies on the failure-free topology.
type DeliveryRecord struct {
	MessageID          string         `json:"message_id"`
	Origin             string         `json:"origin"`
	Target             string         `json:"target"`
	Priority           model.Priority `json:"priority"`
	OriginBatteryLevel float64        `json:"origin_battery_level"`
	OriginIsCharging   bool           `json:"origin_is_charging"`
	NetworkDensity     int            `json:"network_density"`
	AdaptiveMaxHops    int            `json:"adaptive_max_hops"`
	BaselineMaxHops    int            `json:"baseline_max_hops"`
	AdaptiveSuccess    bool           `json:"adaptive_success"`
	BaselineSuccess    bool           `json:"baseline_success"`
	AdaptiveHopsUsed   int            `json:"adaptive_hops_used"`
	BaselineHopsUsed   int            `json:"baseline_hops_used"`
	AdaptivePathLength int            `json:"adaptive_path_length"`
	BaselinePathLength int            `json:"baseline_path_length"`
}

// RateResult compares both policies at one failure rate.
type RateResult struct {
	FailureRate         float64 `json:"failure_rate"`
	FailedNodes         int     `json:"failed_nodes"`
	Messages            int     `json:"messages"`
	AdaptiveSuccessRate float64 `json:"adaptive_success_rate"`
	BaselineSuccessRate float64 `json:"baseline_success_rate"`
	Improvement         float64 `json:"improvement"`
}

// SweepPoint is one battery/charging combination of the battery sweep.
type SweepPoint struct {
	BatteryLevel    float64 `json:"battery_level"`
	IsCharging      bool    `json:"is_charging"`
	AdaptiveMaxHops int     `json:"adaptive_max_hops"`
	BaselineMaxHops int     `json:"baseline_max_hops"`
	Advantage       int     `json:"adaptive_advantage"`
}

// Report is the aggregate result document. It holds no maps or timestamps so
// identical runs marshal to identical bytes.
type Report struct {
	TotalNodes        int               `json:"total_nodes"`
	TotalMessages     int               `json:"total_messages"`
	NetworkDensity    int               `json:"network_density"`
	MessageDelivery   MessageDelivery   `json:"message_delivery"`
	BatteryAdaptive   BatteryAdaptive   `json:"battery_adaptive"`
	NetworkResilience NetworkResilience `json:"network_resilience"`
	SuccessCriteria   SuccessCriteria   `json:"success_criteria"`
}

type MessageDelivery struct {
	AdaptiveSuccessRate float64 `json:"adaptive_success_rate"`
	BaselineSuccessRate float64 `json:"baseline_success_rate"`
	ImprovementPct      float64 `json:"improvement_pct"`
}

type BatteryAdaptive struct {
	AvgAdaptiveAdvantage      float64      `json:"avg_adaptive_advantage"`
	AvgChargingAdvantage      float64      `json:"avg_charging_advantage"`
	AvgNonChargingAdvantage   float64      `json:"avg_non_charging_advantage"`
	ChargingAlwaysNonNegative bool         `json:"charging_always_nonnegative"`
	Sweep                     []SweepPoint `json:"sweep"`
}

type NetworkResilience struct {
	PerRate                []RateResult `json:"per_rate"`
	AvgAdaptiveSuccessRate float64      `json:"avg_adaptive_success_rate"`
	AvgBaselineSuccessRate float64      `json:"avg_baseline_success_rate"`
	Improvement            float64      `json:"improvement"`
}

type SuccessCriteria struct {
	AdaptiveBetterDelivery bool `json:"adaptive_better_delivery"`
	BatteryAdaptiveWorks   bool `json:"battery_adaptive_works"`
	ResilienceImprovement  bool `json:"resilience_improvement"`
}

// Rate returns successes/total, or 0 for an empty batch.
func Rate(successes, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

// ImprovementPct is the relative gain of adaptive over baseline in percent,
// 0 when the baseline never succeeded.
func ImprovementPct(adaptive, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (adaptive - baseline) / baseline * 100
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func summarizeDelivery(records []DeliveryRecord) MessageDelivery {
	adaptive, baseline := 0, 0
	for _, r := range records {
		if r.AdaptiveSuccess {
			adaptive++
		}
		if r.BaselineSuccess {
			baseline++
		}
	}
	a := Rate(adaptive, len(records))
	b := Rate(baseline, len(records))
	return MessageDelivery{
		AdaptiveSuccessRate: a,
		BaselineSuccessRate: b,
		ImprovementPct:      ImprovementPct(a, b),
	}
}

func summarizeResilience(rates []RateResult) NetworkResilience {
	adaptive := make([]float64, len(rates))
	baseline := make([]float64, len(rates))
	for i, r := range rates {
		adaptive[i] = r.AdaptiveSuccessRate
		baseline[i] = r.BaselineSuccessRate
	}
	a, b := mean(adaptive), mean(baseline)
	perRate := rates
	if perRate == nil {
		perRate = []RateResult{}
	}
	return NetworkResilience{
		PerRate:                perRate,
		AvgAdaptiveSuccessRate: a,
		AvgBaselineSuccessRate: b,
		Improvement:            a - b,
	}
}

func buildReport(nodes, density int, records []DeliveryRecord, battery BatteryAdaptive, rates []RateResult) Report {
	delivery := summarizeDelivery(records)
	resilience := summarizeResilience(rates)
	return Report{
		TotalNodes:        nodes,
		TotalMessages:     len(records),
		NetworkDensity:    density,
		MessageDelivery:   delivery,
		BatteryAdaptive:   battery,
		NetworkResilience: resilience,
		SuccessCriteria: SuccessCriteria{
			AdaptiveBetterDelivery: delivery.AdaptiveSuccessRate > delivery.BaselineSuccessRate,
			BatteryAdaptiveWorks:   battery.AvgAdaptiveAdvantage > 0,
			ResilienceImprovement:  len(rates) > 0 && resilience.Improvement > 0,
		},
	}
}
