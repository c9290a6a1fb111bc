// core/hop_policy.go
package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/mesh-simulator/model"
)

// ErrInvalidArgument indicates inputs outside the domain of a policy or the
// router.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	// BaseHops is the hop budget before any scaling.
	BaseHops = 2
	// MinHops and MaxHops bound every adaptive budget.
	MinHops = 1
	MaxHops = 5
	// BaselineMaxHops is the fixed budget of the non-adaptive comparison policy.
	BaselineMaxHops = 2
)

// ComputeMaxHops derives a hop budget from a node's power state, the local
// network density and the message priority. The result is always in
// [MinHops, MaxHops].
//
//	max_hops = floor(BaseHops * battery * density * priority) + charging_bonus
func ComputeMaxHops(level float64, state model.BatteryState, charging bool, density int, priority model.Priority) (int, error) {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return 0, fmt.Errorf("%w: battery level %v outside [0,1]", ErrInvalidArgument, level)
	}
	if density < 0 {
		return 0, fmt.Errorf("%w: negative network density %d", ErrInvalidArgument, density)
	}
	if !state.Valid() {
		return 0, fmt.Errorf("%w: unknown battery state %d", ErrInvalidArgument, int(state))
	}
	pf, err := priorityFactor(priority)
	if err != nil {
		return 0, err
	}

	hops := int(math.Floor(BaseHops*batteryFactor(level)*densityFactor(density)*pf)) + chargingBonus(state, charging)
	return max(MinHops, min(MaxHops, hops)), nil
}

// Thresholds are strict: exactly 0.2 or 0.5 lands in the higher bucket.
func batteryFactor(level float64) float64 {
	switch {
	case level < 0.2:
		return 0.5
	case level < 0.5:
		return 0.75
	default:
		return 1.0
	}
}

func chargingBonus(state model.BatteryState, charging bool) int {
	if charging || state == model.BatteryFull {
		return 1
	}
	return 0
}

func densityFactor(density int) float64 {
	switch {
	case density < 3:
		return 0.75
	case density < 10:
		return 1.0
	default:
		return 1.25
	}
}

func priorityFactor(p model.Priority) (float64, error) {
	switch p {
	case model.PriorityLow:
		return 0.75, nil
	case model.PriorityMedium:
		return 1.0, nil
	case model.PriorityHigh:
		return 1.25, nil
	case model.PriorityCritical:
		return 1.5, nil
	}
	return 0, fmt.Errorf("%w: unknown priority %d", ErrInvalidArgument, int(p))
}

// HopPolicy assigns a hop budget to a message leaving a node.
type HopPolicy interface {
	Name() string
	MaxHops(origin model.Node, density int, priority model.Priority) (model.HopBudget, error)
}

// AdaptivePolicy scales the budget with battery, charging, density and
// priority via ComputeMaxHops.
type AdaptivePolicy struct{}

func (AdaptivePolicy) Name() string { return "adaptive" }

func (AdaptivePolicy) MaxHops(origin model.Node, density int, priority model.Priority) (model.HopBudget, error) {
	hops, err := ComputeMaxHops(origin.BatteryLevel, origin.BatteryState, origin.IsCharging, density, priority)
	if err != nil {
		return model.HopBudget{}, fmt.Errorf("node %q: %w", origin.ID, err)
	}
	return model.Bounded(hops), nil
}

// BaselinePolicy is the fixed comparison point: BaselineMaxHops for every
// message regardless of node state or priority.
type BaselinePolicy struct{}

func (BaselinePolicy) Name() string { return "baseline" }

func (BaselinePolicy) MaxHops(model.Node, int, model.Priority) (model.HopBudget, error) {
	return model.Bounded(BaselineMaxHops), nil
}
