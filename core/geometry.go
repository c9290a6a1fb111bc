package core

import (
	"math"

	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// nextHopCandidate is the greedy geographic choice: among active, unvisited
// nodes (optionally restricted to those within radioRange of from), the one
// closest to target. The view iterates in ascending ID order and only a
// strictly smaller distance replaces the current best, so ties go to the
// lowest ID. It returns -1 when no candidate exists.
func nextHopCandidate(view kb.View, visited []bool, from, target model.Position, radioRange float64) int {
	topo := view.Topology()
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < topo.Len(); i++ {
		if visited[i] || !view.ActiveAt(i) {
			continue
		}
		pos := topo.NodeAt(i).Position
		if radioRange > 0 && from.DistanceTo(pos) > radioRange {
			continue
		}
		if d := pos.DistanceTo(target); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
