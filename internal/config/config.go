package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	TopologyGrid   = "grid"
	TopologyRandom = "random"
	TopologyFile   = "file"

	DefaultGridSize        = 5
	DefaultNodeCount       = 25
	DefaultAreaSize        = 5.0
	DefaultChargingRatio   = 0.2
	DefaultBatteryMin      = 0.2
	DefaultBatteryMax      = 1.0
	DefaultMessageCount    = 100
	DefaultMessagesPerRate = 20
	DefaultDensityHint     = 4
	DefaultSeed            = 42
)

// DefaultFailureRates are the failure fractions swept when none are configured.
var DefaultFailureRates = []float64{0.0, 0.1, 0.2, 0.3}

// Config describes one resilience scenario.
type Config struct {
	FailureRates []float64 `yaml:"failure_rates"`
	// MessageCount and MessagesPerRate keep an explicit 0, which runs the
	// scenario with an empty workload.
	MessageCount    *int `yaml:"message_count,omitempty"`
	MessagesPerRate *int `yaml:"messages_per_rate,omitempty"`
	// DensityHint is the network density fed to the hop policy unless
	// DeriveDensity is set, in which case the average neighbour count within
	// RadioRange is used instead.
	DensityHint   *int    `yaml:"density_hint,omitempty"`
	DeriveDensity bool    `yaml:"derive_density"`
	RNGSeed       *uint64 `yaml:"rng_seed,omitempty"`
	// RadioRange restricts next hops to nodes within this distance. Zero
	// leaves every active node reachable.
	RadioRange float64 `yaml:"radio_range"`
	Workers    int     `yaml:"workers"`

	Topology TopologyConfig `yaml:"topology"`
	Output   OutputConfig   `yaml:"output"`
}

// TopologyConfig selects and parameterises the topology generator.
type TopologyConfig struct {
	Kind          string   `yaml:"kind"` // grid | random | file
	GridSize      int      `yaml:"grid_size"`
	NodeCount     int      `yaml:"node_count"`
	Width         float64  `yaml:"width"`
	Height        float64  `yaml:"height"`
	ChargingRatio *float64 `yaml:"charging_ratio,omitempty"`
	BatteryMin    float64  `yaml:"battery_min"`
	BatteryMax    float64  `yaml:"battery_max"`
	Path          string   `yaml:"path"` // workload JSON when Kind == file
}

// OutputConfig names where reports are written. Empty paths are skipped.
type OutputConfig struct {
	CSVPath      string `yaml:"csv_path"`
	JSONPath     string `yaml:"json_path"`
	SweepCSVPath string `yaml:"sweep_csv_path"`
	RatesCSVPath string `yaml:"rates_csv_path"`
}

// Default returns a fully defaulted config: a 5x5 grid with 100 messages
// swept over DefaultFailureRates.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.FailureRates == nil {
		cfg.FailureRates = append([]float64(nil), DefaultFailureRates...)
	}
	if cfg.MessageCount == nil {
		n := DefaultMessageCount
		cfg.MessageCount = &n
	}
	if cfg.MessagesPerRate == nil {
		n := DefaultMessagesPerRate
		cfg.MessagesPerRate = &n
	}
	if cfg.DensityHint == nil {
		d := DefaultDensityHint
		cfg.DensityHint = &d
	}
	if cfg.RNGSeed == nil {
		s := uint64(DefaultSeed)
		cfg.RNGSeed = &s
	}

	t := &cfg.Topology
	if t.Kind == "" {
		t.Kind = TopologyGrid
	}
	if t.GridSize == 0 {
		t.GridSize = DefaultGridSize
	}
	if t.NodeCount == 0 {
		t.NodeCount = DefaultNodeCount
	}
	if t.Width == 0 {
		t.Width = DefaultAreaSize
	}
	if t.Height == 0 {
		t.Height = DefaultAreaSize
	}
	if t.ChargingRatio == nil {
		r := DefaultChargingRatio
		t.ChargingRatio = &r
	}
	if t.BatteryMin == 0 && t.BatteryMax == 0 {
		t.BatteryMin = DefaultBatteryMin
		t.BatteryMax = DefaultBatteryMax
	}
}

// Validate performs validation of ranges and required fields.
func Validate(cfg Config) error {
	for _, r := range cfg.FailureRates {
		if math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("failure_rates: %v outside [0,1]", r)
		}
	}
	if cfg.MessageCount != nil && *cfg.MessageCount < 0 {
		return fmt.Errorf("message_count must be non-negative")
	}
	if cfg.MessagesPerRate != nil && *cfg.MessagesPerRate < 0 {
		return fmt.Errorf("messages_per_rate must be non-negative")
	}
	if cfg.DensityHint != nil && *cfg.DensityHint < 0 {
		return fmt.Errorf("density_hint must be non-negative")
	}
	if cfg.RadioRange < 0 {
		return fmt.Errorf("radio_range must be non-negative")
	}
	if cfg.DeriveDensity && cfg.RadioRange <= 0 {
		return fmt.Errorf("derive_density requires a positive radio_range")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	t := cfg.Topology
	switch t.Kind {
	case TopologyGrid:
		if t.GridSize < 1 {
			return fmt.Errorf("topology.grid_size must be positive")
		}
	case TopologyRandom:
		if t.NodeCount < 1 {
			return fmt.Errorf("topology.node_count must be positive")
		}
		if t.Width <= 0 || t.Height <= 0 {
			return fmt.Errorf("topology.width and topology.height must be positive")
		}
	case TopologyFile:
		if t.Path == "" {
			return fmt.Errorf("topology.path is required for kind %q", TopologyFile)
		}
	default:
		return fmt.Errorf("topology.kind %q is not one of grid, random, file", t.Kind)
	}
	if t.ChargingRatio != nil && (*t.ChargingRatio < 0 || *t.ChargingRatio > 1) {
		return fmt.Errorf("topology.charging_ratio must be in [0,1]")
	}
	if t.BatteryMin < 0 || t.BatteryMax > 1 || t.BatteryMin > t.BatteryMax {
		return fmt.Errorf("topology battery range [%v,%v] must be ordered within [0,1]", t.BatteryMin, t.BatteryMax)
	}
	return nil
}
