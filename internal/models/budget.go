package models

import "fmt"

// RetryBudget is a counter with a fixed ceiling. Each retry layer (generation
// call, external process, attempt loop) owns its own instance; budgets are
// never shared, and exhausting one never resets another.
type RetryBudget struct {
	name  string
	used  int
	limit int
}

// NewRetryBudget creates a budget allowing limit uses. A limit below one is
// raised to one so that the guarded operation always runs at least once.
func NewRetryBudget(name string, limit int) *RetryBudget {
	if limit < 1 {
		limit = 1
	}
	return &RetryBudget{name: name, limit: limit}
}

// Take consumes one unit and returns the 1-based ordinal of the use.
// It returns false once the ceiling has been reached.
func (b *RetryBudget) Take() (int, bool) {
	if b.used >= b.limit {
		return b.used, false
	}
	b.used++
	return b.used, true
}

// Used returns how many units were consumed.
func (b *RetryBudget) Used() int { return b.used }

// Limit returns the ceiling.
func (b *RetryBudget) Limit() int { return b.limit }

// Exhausted reports whether no units remain.
func (b *RetryBudget) Exhausted() bool { return b.used >= b.limit }

// IsLast reports whether the most recent Take consumed the final unit.
func (b *RetryBudget) IsLast() bool { return b.used == b.limit }

func (b *RetryBudget) String() string {
	return fmt.Sprintf("%s %d/%d", b.name, b.used, b.limit)
}
