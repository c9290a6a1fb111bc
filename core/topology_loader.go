// core/topology_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// Workload is what an external generator hands the simulator: a topology and
// an optional batch of messages.
type Workload struct {
	Topology *kb.Topology
	Messages []model.Message
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
type workloadJSON struct {
	Nodes    []nodeJSON    `json:"nodes"`
	Messages []messageJSON `json:"messages"`
}

type nodeJSON struct {
	ID           string             `json:"id"`
	BatteryLevel *float64           `json:"battery_level"` // required
	BatteryState model.BatteryState `json:"battery_state"`
	IsCharging   bool               `json:"is_charging"`
	IsActive     *bool              `json:"is_active"` // optional; defaults to true
	Position     model.Position     `json:"position"`
}

type messageJSON struct {
	ID       string          `json:"id"`
	Origin   string          `json:"origin"`
	Target   string          `json:"target"`
	Priority *model.Priority `json:"priority"` // required
}

// LoadWorkload decodes a JSON workload from r. Battery levels are clamped
// into [0,1]. Nodes without a battery_level and messages without a priority
// are rejected with ErrInvalidArgument, as are unknown enum strings; duplicate
// node IDs and messages that reference nodes outside the topology fail too.
func LoadWorkload(r io.Reader) (*Workload, error) {
	var payload workloadJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadWorkload: decode failed: %w", err)
	}

	nodes := make([]model.Node, 0, len(payload.Nodes))
	for _, jsN := range payload.Nodes {
		if jsN.BatteryLevel == nil {
			return nil, fmt.Errorf("LoadWorkload: %w: node %q has no battery_level", ErrInvalidArgument, jsN.ID)
		}
		n := model.NewNode(jsN.ID, *jsN.BatteryLevel, jsN.BatteryState, jsN.IsCharging, jsN.Position)
		if jsN.IsActive != nil {
			n.IsActive = *jsN.IsActive
		}
		nodes = append(nodes, n)
	}

	topo, err := kb.NewTopology(nodes)
	if err != nil {
		return nil, fmt.Errorf("LoadWorkload: %w", err)
	}

	msgs := make([]model.Message, 0, len(payload.Messages))
	for _, jsM := range payload.Messages {
		if jsM.Priority == nil {
			return nil, fmt.Errorf("LoadWorkload: %w: message %q has no priority", ErrInvalidArgument, jsM.ID)
		}
		m := model.NewMessage(jsM.ID, jsM.Origin, jsM.Target, *jsM.Priority)
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("LoadWorkload: %w: %v", ErrInvalidArgument, err)
		}
		for _, id := range []string{m.Origin, m.Target} {
			if _, ok := topo.Index(id); !ok {
				return nil, fmt.Errorf("LoadWorkload: message %q: %w: %q", m.ID, kb.ErrNodeNotFound, id)
			}
		}
		msgs = append(msgs, m)
	}

	return &Workload{Topology: topo, Messages: msgs}, nil
}
