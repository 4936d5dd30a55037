package searcher

import (
	"errors"
	"fmt"
	"time"
)

// Budget bounds how long the tree grows before an action is committed: either
// a wall-clock duration or a fixed number of grow calls.
type Budget struct {
	duration   time.Duration
	iterations int
	timed      bool
}

// Duration is a wall-clock budget. Negative durations are clamped to 0.
func Duration(d time.Duration) Budget {
	return Budget{duration: max(d, 0), timed: true}
}

// Iterations is a budget of n grow calls. Negative counts are clamped to 0.
func Iterations(n int) Budget {
	return Budget{iterations: max(n, 0)}
}

// NewBudget builds a Budget from exactly one positive argument.
func NewBudget(d time.Duration, n int) (Budget, error) {
	switch {
	case d > 0 && n > 0:
		return Budget{}, errors.New("budget: specify either a duration or a number of iterations, not both")
	case d > 0:
		return Duration(d), nil
	case n > 0:
		return Iterations(n), nil
	default:
		return Budget{}, fmt.Errorf("budget: need a positive duration or number of iterations, got %v and %d", d, n)
	}
}

// Exhausted reports whether another grow call is out of budget after
// iterations calls taking elapsed in total.
func (b Budget) Exhausted(iterations int, elapsed time.Duration) bool {
	if b.timed {
		return elapsed >= b.duration
	}
	return iterations >= b.iterations
}

func (b Budget) IsTimed() bool {
	return b.timed
}

func (b Budget) String() string {
	if b.timed {
		return b.duration.String()
	}
	return fmt.Sprintf("%d iterations", b.iterations)
}
