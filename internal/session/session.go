// Package session enforces the checkout time budget. It holds no state; the
// budget is supplied by the caller.
package session

import (
	"fmt"
	"time"
)

// Expired reports whether more than budget has elapsed since createdAt.
// Elapsed time exactly equal to the budget is still within it.
func Expired(createdAt, now time.Time, budget time.Duration) bool {
	return now.Sub(createdAt) > budget
}

// ExpiredError is returned when finalize is attempted after the budget.
// It is terminal: the caller has to start a new checkout.
type ExpiredError struct {
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("checkout session expired: %.1f minutes elapsed, budget %.1f minutes", e.ElapsedMinutes(), e.BudgetMinutes())
}

func (e *ExpiredError) ElapsedMinutes() float64 { return e.Elapsed.Minutes() }
func (e *ExpiredError) BudgetMinutes() float64  { return e.Budget.Minutes() }

type Guard struct {
	Budget time.Duration
	Now    func() time.Time
}

func NewGuard(budget time.Duration) Guard {
	return Guard{Budget: budget, Now: time.Now}
}

// Check returns an *ExpiredError once the budget has passed. A non-positive
// budget disables the guard.
func (g Guard) Check(createdAt time.Time) error {
	if g.Budget <= 0 {
		return nil
	}
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	if Expired(createdAt, now, g.Budget) {
		return &ExpiredError{Elapsed: now.Sub(createdAt), Budget: g.Budget}
	}
	return nil
}
