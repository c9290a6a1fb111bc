package harness

import (
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// TopologyGenerator builds a topology from an injected random source.
type TopologyGenerator interface {
	Generate(rng *rand.Rand) (*kb.Topology, error)
}

// MessageGenerator builds a message batch over topo from an injected random
// source. Messages start at their origin with hop 0.
type MessageGenerator interface {
	Generate(rng *rand.Rand, topo *kb.Topology) ([]model.Message, error)
}

// PowerProfile describes how generated nodes draw their battery state.
type PowerProfile struct {
	ChargingRatio float64
	BatteryMin    float64
	BatteryMax    float64
}

func (p PowerProfile) draw(rng *rand.Rand) (float64, model.BatteryState, bool) {
	level := p.BatteryMin + rng.Float64()*(p.BatteryMax-p.BatteryMin)
	charging := rng.Float64() < p.ChargingRatio
	state := model.BatteryDischarging
	if charging {
		state = model.BatteryCharging
	}
	return level, state, charging
}

// GridTopology lays Size x Size nodes on unit spacing.
type GridTopology struct {
	Size  int
	Power PowerProfile
}

func (g GridTopology) Generate(rng *rand.Rand) (*kb.Topology, error) {
	if g.Size < 1 {
		return nil, fmt.Errorf("grid size %d: %w", g.Size, kb.ErrEmptyTopology)
	}
	nodes := make([]model.Node, 0, g.Size*g.Size)
	for x := range g.Size {
		for y := range g.Size {
			level, state, charging := g.Power.draw(rng)
			nodes = append(nodes, model.NewNode(
				fmt.Sprintf("node_%d", len(nodes)),
				level, state, charging,
				model.Position{X: float64(x), Y: float64(y)},
			))
		}
	}
	return kb.NewTopology(nodes)
}

// RandomTopology scatters Count nodes uniformly over a Width x Height area.
type RandomTopology struct {
	Count  int
	Width  float64
	Height float64
	Power  PowerProfile
}

func (r RandomTopology) Generate(rng *rand.Rand) (*kb.Topology, error) {
	if r.Count < 1 {
		return nil, fmt.Errorf("node count %d: %w", r.Count, kb.ErrEmptyTopology)
	}
	nodes := make([]model.Node, 0, r.Count)
	for i := range r.Count {
		pos := model.Position{X: rng.Float64() * r.Width, Y: rng.Float64() * r.Height}
		level, state, charging := r.Power.draw(rng)
		nodes = append(nodes, model.NewNode(fmt.Sprintf("node_%d", i), level, state, charging, pos))
	}
	return kb.NewTopology(nodes)
}

// StaticTopology returns a topology supplied by an external generator.
type StaticTopology struct {
	Topology *kb.Topology
}

func (s StaticTopology) Generate(*rand.Rand) (*kb.Topology, error) {
	if s.Topology == nil {
		return nil, kb.ErrEmptyTopology
	}
	return s.Topology, nil
}

// RandomMessages draws Count messages with distinct origin and target and a
// uniformly chosen priority.
type RandomMessages struct {
	Count int
}

func (r RandomMessages) Generate(rng *rand.Rand, topo *kb.Topology) ([]model.Message, error) {
	if r.Count < 0 {
		return nil, fmt.Errorf("negative message count %d", r.Count)
	}
	if r.Count == 0 {
		return nil, nil
	}
	if topo == nil || topo.Len() < 2 {
		return nil, fmt.Errorf("random messages need at least two nodes")
	}
	ids := topo.IDs()
	msgs := make([]model.Message, 0, r.Count)
	for i := range r.Count {
		o := rng.IntN(len(ids))
		t := rng.IntN(len(ids) - 1)
		if t >= o {
			t++
		}
		p := model.Priorities[rng.IntN(len(model.Priorities))]
		msgs = append(msgs, model.NewMessage(fmt.Sprintf("msg_%d", i), ids[o], ids[t], p))
	}
	return msgs, nil
}

// StaticMessages returns a fixed batch, checking it against the topology.
type StaticMessages struct {
	Messages []model.Message
}

func (s StaticMessages) Generate(_ *rand.Rand, topo *kb.Topology) ([]model.Message, error) {
	if topo == nil {
		return nil, kb.ErrEmptyTopology
	}
	out := make([]model.Message, len(s.Messages))
	for i, m := range s.Messages {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		for _, id := range []string{m.Origin, m.Target} {
			if _, ok := topo.Index(id); !ok {
				return nil, fmt.Errorf("message %q: %w: %q", m.ID, kb.ErrNodeNotFound, id)
			}
		}
		out[i] = m
	}
	return out, nil
}
