package model

import (
	"fmt"
	"math"
)

// Position is a planar node location. Units are whatever the topology
// generator uses (grid cells for the built-in generators).
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DistanceTo returns the Euclidean distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Node is a mesh participant together with its power state.
//
// Nodes are stored by value in an immutable topology table. IsActive is the
// node's state as generated; simulated failures are layered on top through a
// failure view and never flip this flag.
type Node struct {
	ID           string       `json:"id"`
	BatteryLevel float64      `json:"battery_level"`
	BatteryState BatteryState `json:"battery_state"`
	IsCharging   bool         `json:"is_charging"`
	IsActive     bool         `json:"is_active"`
	Position     Position     `json:"position"`
}

// NewNode builds an active node, clamping the battery level into [0,1].
func NewNode(id string, level float64, state BatteryState, charging bool, pos Position) Node {
	return Node{
		ID:           id,
		BatteryLevel: ClampBattery(level),
		BatteryState: state,
		IsCharging:   charging,
		IsActive:     true,
		Position:     pos,
	}
}

// Validate checks the node invariants.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node: empty id")
	}
	if math.IsNaN(n.BatteryLevel) || n.BatteryLevel < 0 || n.BatteryLevel > 1 {
		return fmt.Errorf("node %q: battery level %v outside [0,1]", n.ID, n.BatteryLevel)
	}
	if !n.BatteryState.Valid() {
		return fmt.Errorf("node %q: unknown battery state %d", n.ID, int(n.BatteryState))
	}
	return nil
}

// ClampBattery forces a battery level into [0,1]. NaN maps to 0.
func ClampBattery(level float64) float64 {
	switch {
	case math.IsNaN(level), level < 0:
		return 0
	case level > 1:
		return 1
	default:
		return level
	}
}
