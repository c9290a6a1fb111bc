package kb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/mesh-simulator/model"
)

var (
	// ErrEmptyTopology indicates a topology with no nodes.
	ErrEmptyTopology = errors.New("topology has no nodes")
	// ErrNodeExists indicates a duplicate node ID.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound indicates a lookup for an ID that is not in the topology.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNodeInvalid indicates a node failed validation.
	ErrNodeInvalid = errors.New("invalid node")
)

// Topology is an immutable node table. Nodes are kept sorted by ID so that
// index order doubles as the deterministic tie-break order for routing.
//
// A Topology is safe for concurrent readers; it has no mutators.
type Topology struct {
	nodes []model.Node
	index map[string]int
}

// NewTopology validates nodes and builds the table. The input slice is copied.
func NewTopology(nodes []model.Node) (*Topology, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyTopology
	}

	sorted := make([]model.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[string]int, len(sorted))
	for i, n := range sorted {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNodeInvalid, err)
		}
		if _, exists := index[n.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrNodeExists, n.ID)
		}
		index[n.ID] = i
	}

	return &Topology{nodes: sorted, index: index}, nil
}

// Len returns the number of nodes.
func (t *Topology) Len() int { return len(t.nodes) }

// Node returns the node with the given ID.
func (t *Topology) Node(id string) (model.Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return model.Node{}, false
	}
	return t.nodes[i], true
}

// Index returns the table position of id.
func (t *Topology) Index(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// NodeAt returns the node at table position i.
func (t *Topology) NodeAt(i int) model.Node { return t.nodes[i] }

// Nodes returns a snapshot copy of all nodes in ID order.
func (t *Topology) Nodes() []model.Node {
	out := make([]model.Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// IDs returns all node IDs in ascending order.
func (t *Topology) IDs() []string {
	out := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = n.ID
	}
	return out
}

// AverageDegree returns the mean number of other nodes within radius of each
// node, counting only active nodes. A non-positive radius yields 0.
func (t *Topology) AverageDegree(radius float64) float64 {
	if radius <= 0 || len(t.nodes) == 0 {
		return 0
	}
	active := 0
	links := 0
	for i, a := range t.nodes {
		if !a.IsActive {
			continue
		}
		active++
		for j, b := range t.nodes {
			if i == j || !b.IsActive {
				continue
			}
			if a.Position.DistanceTo(b.Position) <= radius {
				links++
			}
		}
	}
	if active == 0 {
		return 0
	}
	return float64(links) / float64(active)
}

// View returns a failure-free view of the topology.
func (t *Topology) View() View { return View{topo: t} }

// WithFailures returns a view in which the listed nodes are inactive. The
// topology itself is not modified, so views for different failure sets can
// be used concurrently and simply dropped when a batch is done.
func (t *Topology) WithFailures(ids []string) (View, error) {
	inactive := make([]bool, len(t.nodes))
	failed := 0
	for _, id := range ids {
		i, ok := t.index[id]
		if !ok {
			return View{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
		}
		if !inactive[i] {
			inactive[i] = true
			failed++
		}
	}
	return View{topo: t, inactive: inactive, failed: failed}, nil
}

// View is a topology plus a scoped inactive set.
type View struct {
	topo     *Topology
	inactive []bool
	failed   int
}

// Topology returns the underlying node table.
func (v View) Topology() *Topology { return v.topo }

// Len returns the number of nodes in the underlying topology.
func (v View) Len() int {
	if v.topo == nil {
		return 0
	}
	return v.topo.Len()
}

// Failed returns how many nodes this view marks as failed.
func (v View) Failed() int { return v.failed }

// ActiveAt reports whether the node at table position i may take part in
// routing.
func (v View) ActiveAt(i int) bool {
	if !v.topo.nodes[i].IsActive {
		return false
	}
	return v.inactive == nil || !v.inactive[i]
}

// IsActive reports whether the node with the given ID exists and is active.
func (v View) IsActive(id string) bool {
	if v.topo == nil {
		return false
	}
	i, ok := v.topo.index[id]
	return ok && v.ActiveAt(i)
}

// Node returns the node as seen through the view, with IsActive reflecting
// injected failures.
func (v View) Node(id string) (model.Node, bool) {
	if v.topo == nil {
		return model.Node{}, false
	}
	i, ok := v.topo.index[id]
	if !ok {
		return model.Node{}, false
	}
	n := v.topo.nodes[i]
	n.IsActive = v.ActiveAt(i)
	return n, true
}
