package model

import (
	"encoding/json"
	"strconv"
)

// HopBudget is the maximum number of relays a message may take. The zero
// value is not a valid budget; use Bounded or Unlimited.
type HopBudget struct {
	limit     int
	unlimited bool
}

// Bounded returns a budget of n hops.
func Bounded(n int) HopBudget { return HopBudget{limit: n} }

// Unlimited returns a budget that never refuses forwarding.
func Unlimited() HopBudget { return HopBudget{unlimited: true} }

// IsUnlimited reports whether the budget has no bound.
func (b HopBudget) IsUnlimited() bool { return b.unlimited }

// Limit returns the bound and true, or 0 and false for an unlimited budget.
func (b HopBudget) Limit() (int, bool) {
	if b.unlimited {
		return 0, false
	}
	return b.limit, true
}

func (b HopBudget) String() string {
	if b.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(b.limit)
}

// MarshalJSON encodes bounded budgets as numbers and unlimited as null.
func (b HopBudget) MarshalJSON() ([]byte, error) {
	if b.unlimited {
		return []byte("null"), nil
	}
	return json.Marshal(b.limit)
}

// DeliveryOutcome is the result of one simulated delivery attempt.
// A failed delivery is a normal result, not an error.
type DeliveryOutcome struct {
	Success  bool     `json:"success"`
	HopsUsed int      `json:"hops_used"`
	Path     []string `json:"path"`
}
