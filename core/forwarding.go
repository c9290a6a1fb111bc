package core

import "github.com/signalsfoundry/mesh-simulator/model"

// ShouldForward reports whether a message that would arrive at currentHop
// may still be relayed under budget. A message at hop 0 is always allowed.
//
// priority is accepted so callers can pass the full message context, but it
// has already been folded into budget by the hop policy and is not weighted
// again here.
func ShouldForward(currentHop int, budget model.HopBudget, priority model.Priority) bool {
	if currentHop == 0 {
		return true
	}
	limit, bounded := budget.Limit()
	if !bounded {
		return true
	}
	return currentHop < limit
}
