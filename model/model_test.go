package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestMessageForwardCopiesPath(t *testing.T) {
	m := NewMessage("m", "a", "c", PriorityHigh)
	if err := m.Validate(); err != nil {
		t.Fatalf("new message invalid: %v", err)
	}

	next := m.Forward("b")
	if next.CurrentHop != 1 || next.Current() != "b" {
		t.Fatalf("forwarded message at hop %d on %q", next.CurrentHop, next.Current())
	}
	if err := next.Validate(); err != nil {
		t.Fatalf("forwarded message invalid: %v", err)
	}
	if m.CurrentHop != 0 || len(m.Path) != 1 {
		t.Fatalf("receiver mutated: %+v", m)
	}

	a := next.Forward("x")
	b := next.Forward("y")
	if a.Current() != "x" || b.Current() != "y" {
		t.Fatalf("sibling forwards share a path: %v %v", a.Path, b.Path)
	}
}

func TestMessageValidate(t *testing.T) {
	bad := []Message{
		{},
		{ID: "m", Origin: "a", Target: "b", Priority: Priority(9), Path: []string{"a"}},
		{ID: "m", Origin: "a", Target: "b", CurrentHop: 1, Path: []string{"a"}},
		{ID: "m", Origin: "a", Target: "b", Path: []string{"b"}},
		{ID: "m", Origin: "a", Target: "b", CurrentHop: -1},
	}
	for i, m := range bad {
		if err := m.Validate(); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, m)
		}
	}
}

func TestPriorityText(t *testing.T) {
	for _, p := range Priorities {
		got, err := ParsePriority(p.String())
		if err != nil || got != p {
			t.Fatalf("round trip %v: got %v, %v", p, got, err)
		}
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatalf("expected error for unknown priority")
	}

	var m struct {
		P Priority `json:"p"`
	}
	if err := json.Unmarshal([]byte(`{"p":"CRITICAL"}`), &m); err != nil || m.P != PriorityCritical {
		t.Fatalf("unmarshal: %v %v", m.P, err)
	}
	if _, err := json.Marshal(struct{ P Priority }{Priority(7)}); err == nil {
		t.Fatalf("expected marshal error for out-of-range priority")
	}
}

func TestBatteryStateText(t *testing.T) {
	for _, s := range []BatteryState{BatteryUnknown, BatteryCharging, BatteryDischarging, BatteryFull} {
		got, err := ParseBatteryState(s.String())
		if err != nil || got != s {
			t.Fatalf("round trip %v: got %v, %v", s, got, err)
		}
	}
	if got, err := ParseBatteryState(""); err != nil || got != BatteryUnknown {
		t.Fatalf("empty state: %v %v", got, err)
	}
	if _, err := ParseBatteryState("solar"); err == nil {
		t.Fatalf("expected error for unknown battery state")
	}
}

func TestNodeBatteryClamping(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0.4: 0.4, 1.7: 1, math.NaN(): 0}
	for in, want := range cases {
		n := NewNode("n", in, BatteryDischarging, false, Position{})
		if n.BatteryLevel != want {
			t.Fatalf("NewNode(%v) level = %v, want %v", in, n.BatteryLevel, want)
		}
		if err := n.Validate(); err != nil {
			t.Fatalf("clamped node invalid: %v", err)
		}
	}

	n := Node{ID: "n", BatteryLevel: 1.2, BatteryState: BatteryFull}
	if err := n.Validate(); err == nil {
		t.Fatalf("expected error for unclamped level")
	}
}

func TestPositionDistance(t *testing.T) {
	if d := (Position{X: 0, Y: 0}).DistanceTo(Position{X: 3, Y: 4}); d != 5 {
		t.Fatalf("distance = %v, want 5", d)
	}
}

func TestHopBudget(t *testing.T) {
	b := Bounded(3)
	if n, ok := b.Limit(); !ok || n != 3 || b.IsUnlimited() {
		t.Fatalf("bounded budget: %v %v", n, ok)
	}
	u := Unlimited()
	if _, ok := u.Limit(); ok || !u.IsUnlimited() || u.String() != "unlimited" {
		t.Fatalf("unlimited budget misreported")
	}

	out, err := json.Marshal(struct {
		A HopBudget `json:"a"`
		B HopBudget `json:"b"`
	}{b, u})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":3,"b":null}` {
		t.Fatalf("got %s", out)
	}
}
