package core

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

func lineTopology(t *testing.T, n int) *kb.Topology {
	t.Helper()
	nodes := make([]model.Node, 0, n)
	for i := range n {
		nodes = append(nodes, model.NewNode(fmt.Sprintf("n%d", i), 0.8, model.BatteryDischarging, false, model.Position{X: float64(i)}))
	}
	topo, err := kb.NewTopology(nodes)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	return topo
}

func mustDeliver(t *testing.T, msg model.Message, view kb.View, budget model.HopBudget, opts ...RouteOption) model.DeliveryOutcome {
	t.Helper()
	out, err := SimulateDelivery(msg, view, budget, opts...)
	if err != nil {
		t.Fatalf("SimulateDelivery: %v", err)
	}
	if len(out.Path) != out.HopsUsed+1 {
		t.Fatalf("path %v does not match %d hops", out.Path, out.HopsUsed)
	}
	return out
}

func expectPath(t *testing.T, out model.DeliveryOutcome, success bool, path ...string) {
	t.Helper()
	if out.Success != success {
		t.Fatalf("success = %v, want %v (path %v)", out.Success, success, out.Path)
	}
	if !slices.Equal(out.Path, path) {
		t.Fatalf("path = %v, want %v", out.Path, path)
	}
}

func TestSimulateDeliveryGreedyJumpsToTarget(t *testing.T) {
	topo := lineTopology(t, 4)
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityMedium)

	out := mustDeliver(t, msg, topo.View(), model.Bounded(2))
	expectPath(t, out, true, "n0", "n3")
}

func TestSimulateDeliveryBudgetOfOneNeverRelays(t *testing.T) {
	topo := lineTopology(t, 4)
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityCritical)

	out := mustDeliver(t, msg, topo.View(), model.Bounded(1))
	expectPath(t, out, false, "n0")
}

func TestSimulateDeliveryRadioRangeMultiHop(t *testing.T) {
	topo := lineTopology(t, 4)
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityMedium)

	out := mustDeliver(t, msg, topo.View(), model.Unlimited(), WithRadioRange(1))
	expectPath(t, out, true, "n0", "n1", "n2", "n3")

	out = mustDeliver(t, msg, topo.View(), model.Bounded(4), WithRadioRange(1))
	expectPath(t, out, true, "n0", "n1", "n2", "n3")

	// A budget of 3 allows relays at hops 1 and 2 only.
	out = mustDeliver(t, msg, topo.View(), model.Bounded(3), WithRadioRange(1))
	expectPath(t, out, false, "n0", "n1", "n2")
}

func TestSimulateDeliveryDeadEnd(t *testing.T) {
	topo := lineTopology(t, 4)
	view, err := topo.WithFailures([]string{"n2"})
	if err != nil {
		t.Fatalf("WithFailures: %v", err)
	}
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityHigh)

	out := mustDeliver(t, msg, view, model.Unlimited(), WithRadioRange(1))
	expectPath(t, out, false, "n0", "n1")
}

func TestSimulateDeliveryInactiveNodes(t *testing.T) {
	topo := lineTopology(t, 4)
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityHigh)

	view, err := topo.WithFailures([]string{"n0"})
	if err != nil {
		t.Fatalf("WithFailures: %v", err)
	}
	out := mustDeliver(t, msg, view, model.Unlimited())
	expectPath(t, out, false, "n0")

	view, err = topo.WithFailures([]string{"n3"})
	if err != nil {
		t.Fatalf("WithFailures: %v", err)
	}
	out = mustDeliver(t, msg, view, model.Unlimited())
	if out.Success || slices.Contains(out.Path, "n3") {
		t.Fatalf("inactive target was reached: %+v", out)
	}
	if out.HopsUsed > SafetyHopCap {
		t.Fatalf("walk exceeded the safety cap: %d hops", out.HopsUsed)
	}

	var all []string
	for _, id := range topo.IDs() {
		if id != "n0" {
			all = append(all, id)
		}
	}
	view, err = topo.WithFailures(all)
	if err != nil {
		t.Fatalf("WithFailures: %v", err)
	}
	out = mustDeliver(t, msg, view, model.Unlimited())
	expectPath(t, out, false, "n0")
}

func TestSimulateDeliveryTieBreaksOnLowestID(t *testing.T) {
	nodes := []model.Node{
		model.NewNode("origin", 0.8, model.BatteryDischarging, false, model.Position{X: 0, Y: 5}),
		model.NewNode("target", 0.8, model.BatteryDischarging, false, model.Position{X: 0, Y: 0}),
		model.NewNode("relay-b", 0.8, model.BatteryDischarging, false, model.Position{X: 1, Y: 4}),
		model.NewNode("relay-a", 0.8, model.BatteryDischarging, false, model.Position{X: -1, Y: 4}),
	}
	topo, err := kb.NewTopology(nodes)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}

	msg := model.NewMessage("m1", "origin", "target", model.PriorityMedium)
	out := mustDeliver(t, msg, topo.View(), model.Bounded(2), WithRadioRange(1.5))
	expectPath(t, out, false, "origin", "relay-a")
}

func TestSimulateDeliveryUnlimitedStopsAtSafetyCap(t *testing.T) {
	topo := lineTopology(t, 20)
	msg := model.NewMessage("m1", "n0", "n19", model.PriorityLow)

	out := mustDeliver(t, msg, topo.View(), model.Unlimited(), WithRadioRange(1))
	if out.Success || out.HopsUsed != SafetyHopCap {
		t.Fatalf("expected failure after %d hops, got %+v", SafetyHopCap, out)
	}
}

func TestSimulateDeliveryDoesNotMutateMessage(t *testing.T) {
	topo := lineTopology(t, 4)
	msg := model.NewMessage("m1", "n0", "n3", model.PriorityMedium)

	mustDeliver(t, msg, topo.View(), model.Unlimited(), WithRadioRange(1))
	if msg.CurrentHop != 0 || !slices.Equal(msg.Path, []string{"n0"}) {
		t.Fatalf("message mutated: %+v", msg)
	}
}

func TestSimulateDeliveryConfigurationErrors(t *testing.T) {
	topo := lineTopology(t, 3)
	broken := model.NewMessage("m1", "n0", "n1", model.PriorityLow)
	broken.CurrentHop = 3

	cases := []struct {
		name   string
		msg    model.Message
		view   kb.View
		budget model.HopBudget
		want   error
	}{
		{"unknown origin", model.NewMessage("m1", "nope", "n1", model.PriorityLow), topo.View(), model.Bounded(2), kb.ErrNodeNotFound},
		{"unknown target", model.NewMessage("m1", "n0", "nope", model.PriorityLow), topo.View(), model.Bounded(2), kb.ErrNodeNotFound},
		{"zero budget", model.NewMessage("m1", "n0", "n1", model.PriorityLow), topo.View(), model.HopBudget{}, ErrInvalidArgument},
		{"broken path", broken, topo.View(), model.Bounded(2), ErrInvalidArgument},
		{"empty topology", model.NewMessage("m1", "n0", "n1", model.PriorityLow), kb.View{}, model.Bounded(2), kb.ErrEmptyTopology},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SimulateDelivery(tc.msg, tc.view, tc.budget); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
