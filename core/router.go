package core

import (
	"fmt"

	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// SafetyHopCap bounds the walk when the budget is unlimited.
const SafetyHopCap = 10

type routeOptions struct {
	radioRange float64
}

// RouteOption customises SimulateDelivery.
type RouteOption func(*routeOptions)

// WithRadioRange limits next-hop candidates to nodes within r of the node
// currently holding the message. r <= 0 means every active node is reachable.
func WithRadioRange(r float64) RouteOption {
	return func(o *routeOptions) {
		o.radioRange = r
	}
}

// SimulateDelivery walks msg across view using greedy geographic routing,
// consulting ShouldForward before every relay.
//
// Failing to reach the target is reported through the outcome, never as an
// error. The error return is reserved for unusable inputs: an empty
// topology, an invalid message or budget, or an origin/target that is not in
// the topology.
func SimulateDelivery(msg model.Message, view kb.View, budget model.HopBudget, opts ...RouteOption) (model.DeliveryOutcome, error) {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if view.Len() == 0 {
		return model.DeliveryOutcome{}, kb.ErrEmptyTopology
	}
	if err := msg.Validate(); err != nil {
		return model.DeliveryOutcome{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	limit, bounded := budget.Limit()
	if !bounded {
		limit = SafetyHopCap
	} else if limit < 1 {
		return model.DeliveryOutcome{}, fmt.Errorf("%w: hop budget %d", ErrInvalidArgument, limit)
	}

	topo := view.Topology()
	if _, ok := topo.Index(msg.Origin); !ok {
		return model.DeliveryOutcome{}, fmt.Errorf("origin %w: %q", kb.ErrNodeNotFound, msg.Origin)
	}
	target, ok := topo.Node(msg.Target)
	if !ok {
		return model.DeliveryOutcome{}, fmt.Errorf("target %w: %q", kb.ErrNodeNotFound, msg.Target)
	}

	visited := make([]bool, topo.Len())
	for _, id := range msg.Path {
		if i, ok := topo.Index(id); ok {
			visited[i] = true
		}
	}

	cur := msg
	for cur.CurrentHop < limit {
		here, ok := view.Node(cur.Current())
		if !ok || !here.IsActive {
			return failed(cur), nil
		}
		if here.ID == msg.Target {
			return model.DeliveryOutcome{Success: true, HopsUsed: cur.CurrentHop, Path: cur.Path}, nil
		}

		next := nextHopCandidate(view, visited, here.Position, target.Position, o.radioRange)
		if next < 0 {
			return failed(cur), nil
		}
		if !ShouldForward(cur.CurrentHop+1, budget, msg.Priority) {
			return failed(cur), nil
		}

		visited[next] = true
		cur = cur.Forward(topo.NodeAt(next).ID)
	}
	return failed(cur), nil
}

func failed(m model.Message) model.DeliveryOutcome {
	return model.DeliveryOutcome{Success: false, HopsUsed: m.CurrentHop, Path: m.Path}
}
