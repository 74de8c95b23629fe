package dp

import (
	"fmt"
	"math"
	"sync"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// Budget tracks cumulative ε spent on releases of one subject under
// sequential composition. It is safe for concurrent use.
type Budget struct {
	mu       sync.Mutex
	total    float64
	consumed float64
	queries  int
}

// NewBudget returns a budget of total ε.
func NewBudget(total float64) (*Budget, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return nil, &errdefs.PrivacyBudgetError{Param: "total", Value: total, Reason: "must be finite and > 0"}
	}
	return &Budget{total: total}, nil
}

// CanQuery reports whether epsilon still fits in the budget.
func (b *Budget) CanQuery(epsilon float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed+epsilon <= b.total
}

// Consume spends epsilon. When the budget cannot cover it nothing is
// spent and the error wraps ErrBudgetExhausted.
func (b *Budget) Consume(epsilon float64) error {
	if math.IsNaN(epsilon) || math.IsInf(epsilon, 0) || epsilon <= 0 {
		return &errdefs.PrivacyBudgetError{Param: "epsilon", Value: epsilon, Reason: "must be finite and > 0"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed+epsilon > b.total {
		return &errdefs.PrivacyBudgetError{
			Param:  "epsilon",
			Value:  epsilon,
			Reason: fmt.Sprintf("exceeds remaining budget %g", b.total-b.consumed),
			Err:    errdefs.ErrBudgetExhausted,
		}
	}
	b.consumed += epsilon
	b.queries++
	return nil
}

// Privatize consumes params.Epsilon and releases original. Invalid params
// are rejected before any budget is spent.
func (b *Budget) Privatize(original hypervector.Vector, params Params) (*Hypervector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := b.Consume(params.Epsilon); err != nil {
		return nil, err
	}
	return FromHypervector(original, params)
}

// Total returns the configured budget.
func (b *Budget) Total() float64 {
	return b.total
}

// Consumed returns the ε spent so far.
func (b *Budget) Consumed() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

// Remaining returns the unspent ε, never negative.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return max(0, b.total-b.consumed)
}

// Utilization is consumed/total in [0, 1].
func (b *Budget) Utilization() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return min(1, b.consumed/b.total)
}

// Queries returns the number of successful Consume calls.
func (b *Budget) Queries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries
}

// Reset clears consumption.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumed = 0
	b.queries = 0
}
