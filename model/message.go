package model

import (
	"fmt"
	"strings"
)

// Priority ranks how important a message is to deliver.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Priorities lists every priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority maps the textual form back to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return PriorityLow, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Message is a unit of traffic travelling through the mesh.
//
// Path always starts with Origin and grows by one entry per hop, so
// len(Path) == CurrentHop+1 holds at every observation point.
type Message struct {
	ID         string   `json:"id"`
	Origin     string   `json:"origin"`
	Target     string   `json:"target"`
	Priority   Priority `json:"priority"`
	CurrentHop int      `json:"current_hop"`
	Path       []string `json:"path"`
}

// NewMessage returns a message sitting at its origin.
func NewMessage(id, origin, target string, priority Priority) Message {
	return Message{
		ID:       id,
		Origin:   origin,
		Target:   target,
		Priority: priority,
		Path:     []string{origin},
	}
}

// Validate checks the message invariants.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message: empty id")
	}
	if m.Origin == "" || m.Target == "" {
		return fmt.Errorf("message %q: origin and target must be set", m.ID)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("message %q: unknown priority %d", m.ID, int(m.Priority))
	}
	if m.CurrentHop < 0 {
		return fmt.Errorf("message %q: negative hop count %d", m.ID, m.CurrentHop)
	}
	if len(m.Path) != m.CurrentHop+1 {
		return fmt.Errorf("message %q: path length %d does not match hop %d", m.ID, len(m.Path), m.CurrentHop)
	}
	if m.Path[0] != m.Origin {
		return fmt.Errorf("message %q: path must start at origin %q", m.ID, m.Origin)
	}
	return nil
}

// Current returns the node currently holding the message.
func (m Message) Current() string {
	if len(m.Path) == 0 {
		return m.Origin
	}
	return m.Path[len(m.Path)-1]
}

// Forward returns a copy of m relayed to next. The receiver is untouched.
func (m Message) Forward(next string) Message {
	path := make([]string, len(m.Path), len(m.Path)+1)
	copy(path, m.Path)
	m.Path = append(path, next)
	m.CurrentHop++
	return m
}
