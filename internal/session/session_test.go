package session

import (
	"errors"
	"testing"
	"time"
)

func TestExpiredBoundary(t *testing.T) {
	created := time.Date(2025, 12, 20, 16, 0, 0, 0, time.UTC)
	budget := 30 * time.Minute

	if Expired(created, created.Add(budget-time.Millisecond), budget) {
		t.Fatalf("expected not expired 1ms before budget")
	}
	if Expired(created, created.Add(budget), budget) {
		t.Fatalf("expected not expired exactly at budget")
	}
	if !Expired(created, created.Add(budget+time.Millisecond), budget) {
		t.Fatalf("expected expired 1ms after budget")
	}
}

func TestGuardCheck(t *testing.T) {
	created := time.Date(2025, 12, 20, 16, 0, 0, 0, time.UTC)
	now := created.Add(45 * time.Minute)
	g := Guard{Budget: 30 * time.Minute, Now: func() time.Time { return now }}

	err := g.Check(created)
	var expired *ExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected ExpiredError, got %v", err)
	}
	if expired.ElapsedMinutes() != 45 || expired.BudgetMinutes() != 30 {
		t.Fatalf("unexpected error fields: %+v", expired)
	}
	if expired.Error() == "" {
		t.Fatalf("expected message")
	}

	now = created.Add(10 * time.Minute)
	if err := g.Check(created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGuardDisabled(t *testing.T) {
	g := Guard{}
	if err := g.Check(time.Unix(0, 0)); err != nil {
		t.Fatalf("expected disabled guard, got %v", err)
	}
	if NewGuard(time.Minute).Now == nil {
		t.Fatalf("expected default clock")
	}
}
