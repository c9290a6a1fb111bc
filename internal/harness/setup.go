package harness

import (
	"fmt"
	"os"

	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/config"
)

// Setup is everything Run needs, derived from a config file.
type Setup struct {
	Scenario Scenario
	Topology TopologyGenerator
	Messages MessageGenerator
}

// FromConfig validates cfg and turns it into a scenario and its generators.
// A file topology is loaded eagerly; its messages replace the random
// workload when present.
func FromConfig(cfg config.Config) (Setup, error) {
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		return Setup{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s := Setup{
		Scenario: Scenario{
			FailureRates:    cfg.FailureRates,
			MessagesPerRate: *cfg.MessagesPerRate,
			Density:         *cfg.DensityHint,
			DeriveDensity:   cfg.DeriveDensity,
			Seed:            *cfg.RNGSeed,
		},
		Messages: RandomMessages{Count: *cfg.MessageCount},
	}

	t := cfg.Topology
	power := PowerProfile{ChargingRatio: *t.ChargingRatio, BatteryMin: t.BatteryMin, BatteryMax: t.BatteryMax}
	switch t.Kind {
	case config.TopologyGrid:
		s.Topology = GridTopology{Size: t.GridSize, Power: power}
	case config.TopologyRandom:
		s.Topology = RandomTopology{Count: t.NodeCount, Width: t.Width, Height: t.Height, Power: power}
	case config.TopologyFile:
		f, err := os.Open(t.Path)
		if err != nil {
			return Setup{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		defer f.Close()
		w, err := core.LoadWorkload(f)
		if err != nil {
			return Setup{}, fmt.Errorf("%w: %s: %w", ErrConfiguration, t.Path, err)
		}
		s.Topology = StaticTopology{Topology: w.Topology}
		if len(w.Messages) > 0 {
			s.Messages = StaticMessages{Messages: w.Messages}
		}
	}
	return s, nil
}

// HarnessOptions returns the options implied by cfg.
func HarnessOptions(cfg config.Config) []Option {
	return []Option{WithWorkers(cfg.Workers), WithRadioRange(cfg.RadioRange)}
}
