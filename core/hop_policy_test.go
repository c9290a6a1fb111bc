package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/mesh-simulator/model"
)

func TestComputeMaxHopsWorkedExamples(t *testing.T) {
	got, err := ComputeMaxHops(0.1, model.BatteryDischarging, false, 4, model.PriorityMedium)
	if err != nil {
		t.Fatalf("ComputeMaxHops: %v", err)
	}
	if got != 1 {
		t.Fatalf("critical battery, normal density, medium priority: got %d, want 1", got)
	}

	got, err = ComputeMaxHops(0.9, model.BatteryCharging, true, 12, model.PriorityCritical)
	if err != nil {
		t.Fatalf("ComputeMaxHops: %v", err)
	}
	if got != 4 {
		t.Fatalf("charging, dense, critical: got %d, want floor(3.75)+1 = 4", got)
	}
}

func TestComputeMaxHopsTable(t *testing.T) {
	cases := []struct {
		name     string
		level    float64
		state    model.BatteryState
		charging bool
		density  int
		priority model.Priority
		want     int
	}{
		{"low battery boundary is higher bucket", 0.2, model.BatteryDischarging, false, 4, model.PriorityMedium, 1},
		{"half battery boundary is full factor", 0.5, model.BatteryDischarging, false, 4, model.PriorityMedium, 2},
		{"just under half", 0.4999, model.BatteryDischarging, false, 4, model.PriorityMedium, 1},
		{"full state earns bonus without charging flag", 0.9, model.BatteryFull, false, 4, model.PriorityMedium, 3},
		{"unknown state no bonus", 0.9, model.BatteryUnknown, false, 4, model.PriorityMedium, 2},
		{"sparse network", 0.9, model.BatteryDischarging, false, 2, model.PriorityMedium, 1},
		{"density boundary 3 is normal", 0.9, model.BatteryDischarging, false, 3, model.PriorityMedium, 2},
		{"density boundary 10 is dense", 0.9, model.BatteryDischarging, false, 10, model.PriorityHigh, 3},
		{"low priority", 1.0, model.BatteryDischarging, false, 4, model.PriorityLow, 1},
		{"high priority", 1.0, model.BatteryDischarging, false, 4, model.PriorityHigh, 2},
		{"critical priority", 1.0, model.BatteryDischarging, false, 4, model.PriorityCritical, 3},
		{"floor of zero clamps to one", 0.1, model.BatteryDischarging, false, 0, model.PriorityLow, 1},
		{"empty battery still allowed", 0, model.BatteryDischarging, false, 4, model.PriorityMedium, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeMaxHops(tc.level, tc.state, tc.charging, tc.density, tc.priority)
			if err != nil {
				t.Fatalf("ComputeMaxHops: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func mustMaxHops(t *testing.T, level float64, state model.BatteryState, charging bool, density int, p model.Priority) int {
	t.Helper()
	got, err := ComputeMaxHops(level, state, charging, density, p)
	if err != nil {
		t.Fatalf("ComputeMaxHops(%v, %s, %v, %d, %s): %v", level, state, charging, density, p, err)
	}
	return got
}

func TestComputeMaxHopsProperties(t *testing.T) {
	states := []model.BatteryState{model.BatteryUnknown, model.BatteryCharging, model.BatteryDischarging, model.BatteryFull}
	for _, p := range model.Priorities {
		for density := 0; density <= 15; density++ {
			for _, state := range states {
				for step := 0; step <= 20; step++ {
					level := float64(step) / 20
					for _, charging := range []bool{false, true} {
						got := mustMaxHops(t, level, state, charging, density, p)
						if got < MinHops || got > MaxHops {
							t.Fatalf("hops %d outside [%d,%d] (level=%v state=%s density=%d priority=%s)", got, MinHops, MaxHops, level, state, density, p)
						}
					}
				}

				low := mustMaxHops(t, 0.1, state, false, density, p)
				high := mustMaxHops(t, 0.6, state, false, density, p)
				if low > high {
					t.Errorf("lower battery earned more hops: %d > %d (state=%s density=%d priority=%s)", low, high, state, density, p)
				}
			}

			for step := 0; step <= 20; step++ {
				level := float64(step) / 20
				off := mustMaxHops(t, level, model.BatteryDischarging, false, density, p)
				on := mustMaxHops(t, level, model.BatteryDischarging, true, density, p)
				if on < off {
					t.Errorf("charging reduced hops: %d < %d (level=%v density=%d priority=%s)", on, off, level, density, p)
				}
			}
		}
	}
}

func TestComputeMaxHopsRejectsInvalidInput(t *testing.T) {
	cases := map[string]func() (int, error){
		"negative density": func() (int, error) {
			return ComputeMaxHops(0.5, model.BatteryDischarging, false, -1, model.PriorityMedium)
		},
		"battery above one": func() (int, error) {
			return ComputeMaxHops(1.01, model.BatteryDischarging, false, 4, model.PriorityMedium)
		},
		"battery below zero": func() (int, error) {
			return ComputeMaxHops(-0.1, model.BatteryDischarging, false, 4, model.PriorityMedium)
		},
		"battery NaN": func() (int, error) {
			return ComputeMaxHops(math.NaN(), model.BatteryDischarging, false, 4, model.PriorityMedium)
		},
		"unknown priority": func() (int, error) {
			return ComputeMaxHops(0.5, model.BatteryDischarging, false, 4, model.Priority(42))
		},
		"unknown battery state": func() (int, error) {
			return ComputeMaxHops(0.5, model.BatteryState(42), false, 4, model.PriorityMedium)
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := fn(); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestPolicies(t *testing.T) {
	origin := model.NewNode("n1", 0.9, model.BatteryCharging, true, model.Position{})

	budget, err := AdaptivePolicy{}.MaxHops(origin, 12, model.PriorityCritical)
	if err != nil {
		t.Fatalf("adaptive MaxHops: %v", err)
	}
	if limit, bounded := budget.Limit(); !bounded || limit != 4 {
		t.Fatalf("adaptive budget = %s, want 4", budget)
	}

	for _, p := range model.Priorities {
		budget, err := BaselinePolicy{}.MaxHops(origin, 0, p)
		if err != nil {
			t.Fatalf("baseline MaxHops: %v", err)
		}
		if limit, bounded := budget.Limit(); !bounded || limit != BaselineMaxHops {
			t.Fatalf("baseline budget for priority %s = %s, want %d", p, budget, BaselineMaxHops)
		}
	}

	bad := origin
	bad.BatteryLevel = 2
	if _, err := (AdaptivePolicy{}).MaxHops(bad, 4, model.PriorityLow); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
