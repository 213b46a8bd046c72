// internal/policy/policy_test.go
package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var day0 = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func TestEvaluateEligibility(t *testing.T) {
	cfg := Config{MaxConcurrentLoans: 2, FineBlockThreshold: 0}

	t.Run("all rules pass", func(t *testing.T) {
		st := EvaluateEligibility(cfg, 2, 1, 0, 3)
		assert.True(t, st.CanBorrow)
		assert.Empty(t, st.Message)
		assert.Equal(t, 1, st.RemainingAllowed)
	})

	t.Run("cap reached blocks first", func(t *testing.T) {
		st := EvaluateEligibility(cfg, 2, 2, 10.0, 0)
		assert.False(t, st.CanBorrow)
		assert.Contains(t, st.Message, "borrowing limit reached")
		assert.Equal(t, 0, st.RemainingAllowed)
	})

	t.Run("outstanding fine blocks", func(t *testing.T) {
		st := EvaluateEligibility(cfg, 2, 0, 2.50, 5)
		assert.False(t, st.CanBorrow)
		assert.Contains(t, st.Message, "outstanding fines")
	})

	t.Run("fine below threshold does not block", func(t *testing.T) {
		lenient := Config{MaxConcurrentLoans: 2, FineBlockThreshold: 5}
		st := EvaluateEligibility(lenient, 2, 0, 2.50, 5)
		assert.True(t, st.CanBorrow)
	})

	t.Run("no stock blocks", func(t *testing.T) {
		st := EvaluateEligibility(cfg, 2, 0, 0, 0)
		assert.False(t, st.CanBorrow)
		assert.Equal(t, "no copies available", st.Message)
	})
}

func TestResolveMaxAllowed(t *testing.T) {
	cfg := Config{MaxConcurrentLoans: 3}
	assert.Equal(t, 3, ResolveMaxAllowed(cfg, 0))
	assert.Equal(t, 5, ResolveMaxAllowed(cfg, 5))
}

func TestDueDate(t *testing.T) {
	t.Run("policy derived", func(t *testing.T) {
		due, err := DueDate(day0, 14, nil, day0)
		require.NoError(t, err)
		assert.Equal(t, day0.AddDate(0, 0, 14), due)
	})

	t.Run("explicit due date wins", func(t *testing.T) {
		explicit := day0.AddDate(0, 0, 21)
		due, err := DueDate(day0, 14, &explicit, day0)
		require.NoError(t, err)
		assert.Equal(t, explicit, due)
	})

	t.Run("explicit due date in the past is rejected", func(t *testing.T) {
		explicit := day0.AddDate(0, 0, -1)
		_, err := DueDate(day0, 14, &explicit, day0)
		assert.ErrorIs(t, err, ErrInvalidDueDate)
	})

	t.Run("explicit due date today is allowed", func(t *testing.T) {
		explicit := day0.Add(2 * time.Hour)
		_, err := DueDate(day0, 14, &explicit, day0)
		assert.NoError(t, err)
	})
}

func TestRenewalDueDate(t *testing.T) {
	due := RenewalDueDate(day0, 7)
	assert.Equal(t, day0.AddDate(0, 0, 7), due)
}

func TestCanRenew(t *testing.T) {
	due := day0.AddDate(0, 0, 14)

	ok, _ := CanRenew(true, 0, 2, due, day0)
	assert.True(t, ok)

	ok, reason := CanRenew(false, 0, 2, due, day0)
	assert.False(t, ok)
	assert.Equal(t, "loan is not active", reason)

	ok, reason = CanRenew(true, 2, 2, due, day0)
	assert.False(t, ok)
	assert.Contains(t, reason, "maximum renewals")

	ok, reason = CanRenew(true, 0, 2, due, due.AddDate(0, 0, 1))
	assert.False(t, ok)
	assert.Contains(t, reason, "overdue")
}

func TestDaysOverdue(t *testing.T) {
	due := day0

	assert.Equal(t, 0, DaysOverdue(due, due))
	assert.Equal(t, 0, DaysOverdue(due, due.Add(-time.Hour)))
	// A partial day counts as a whole day.
	assert.Equal(t, 1, DaysOverdue(due, due.Add(time.Hour)))
	assert.Equal(t, 1, DaysOverdue(due, due.Add(24*time.Hour)))
	assert.Equal(t, 2, DaysOverdue(due, due.Add(25*time.Hour)))
	assert.Equal(t, 6, DaysOverdue(due, due.AddDate(0, 0, 6)))
}

func TestIsOverdue(t *testing.T) {
	due := day0
	assert.False(t, IsOverdue(true, due, due))
	assert.True(t, IsOverdue(true, due, due.Add(time.Minute)))
	assert.False(t, IsOverdue(false, due, due.Add(time.Minute)))
}

func TestFine(t *testing.T) {
	due := day0

	t.Run("six days late at fifty cents", func(t *testing.T) {
		fine := Fine(due, due.AddDate(0, 0, 6), 0.50, 50)
		assert.InDelta(t, 3.00, fine, 1e-9)
	})

	t.Run("capped at max fine", func(t *testing.T) {
		fine := Fine(due, due.AddDate(0, 0, 200), 1.00, 50)
		assert.InDelta(t, 50.00, fine, 1e-9)
	})

	t.Run("no cap when max is zero", func(t *testing.T) {
		fine := Fine(due, due.AddDate(0, 0, 200), 1.00, 0)
		assert.InDelta(t, 200.00, fine, 1e-9)
	})

	t.Run("not overdue means no fine", func(t *testing.T) {
		fine := Fine(due, due.Add(-time.Hour), 1.00, 50)
		assert.Zero(t, fine)
	})
}

func TestFineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		daysLate := rapid.IntRange(0, 5000).Draw(t, "daysLate")
		daily := rapid.Float64Range(0, 100).Draw(t, "daily")
		max := rapid.Float64Range(0.01, 1000).Draw(t, "max")

		asOf := day0.AddDate(0, 0, daysLate)
		fine := Fine(day0, asOf, daily, max)

		if fine < 0 {
			t.Fatalf("fine went negative: %v", fine)
		}
		if fine > max {
			t.Fatalf("fine %v exceeds cap %v", fine, max)
		}
		if daysLate == 0 && fine != 0 {
			t.Fatalf("fine %v for a loan that is not late", fine)
		}
	})
}
