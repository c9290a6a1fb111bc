package harness

import (
	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// SweepLevels are the battery levels BatterySweep evaluates.
var SweepLevels = []float64{0.1, 0.3, 0.5, 0.7, 0.9}

// BatterySweep compares adaptive and baseline budgets across SweepLevels for
// charging and discharging nodes at a fixed density and priority.
func BatterySweep(density int, priority model.Priority) (BatteryAdaptive, error) {
	var adaptivePolicy core.AdaptivePolicy
	var baselinePolicy core.BaselinePolicy

	points := make([]SweepPoint, 0, 2*len(SweepLevels))
	var all, charging, discharging []float64
	nonNegative := true

	for _, level := range SweepLevels {
		for _, isCharging := range []bool{false, true} {
			state := model.BatteryDischarging
			if isCharging {
				state = model.BatteryCharging
			}
			n := model.NewNode("sweep", level, state, isCharging, model.Position{})

			a, err := adaptivePolicy.MaxHops(n, density, priority)
			if err != nil {
				return BatteryAdaptive{}, err
			}
			b, err := baselinePolicy.MaxHops(n, density, priority)
			if err != nil {
				return BatteryAdaptive{}, err
			}
			aHops, _ := a.Limit()
			bHops, _ := b.Limit()
			adv := aHops - bHops

			points = append(points, SweepPoint{
				BatteryLevel:    level,
				IsCharging:      isCharging,
				AdaptiveMaxHops: aHops,
				BaselineMaxHops: bHops,
				Advantage:       adv,
			})
			all = append(all, float64(adv))
			if isCharging {
				charging = append(charging, float64(adv))
				if adv < 0 {
					nonNegative = false
				}
			} else {
				discharging = append(discharging, float64(adv))
			}
		}
	}

	return BatteryAdaptive{
		AvgAdaptiveAdvantage:      mean(all),
		AvgChargingAdvantage:      mean(charging),
		AvgNonChargingAdvantage:   mean(discharging),
		ChargingAlwaysNonNegative: nonNegative,
		Sweep:                     points,
	}, nil
}
