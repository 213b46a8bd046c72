// internal/policy/policy.go
package policy

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidDueDate is returned when an explicit due date lies in the past.
var ErrInvalidDueDate = errors.New("invalid due date: must not be in the past")

// Config holds the library-wide borrowing defaults. It is built once at
// startup and passed by value; nothing in the engine mutates it.
type Config struct {
	// MaxConcurrentLoans is the default cap on simultaneous active loans
	// per borrower. A positive per-borrower override takes precedence.
	MaxConcurrentLoans int
	// FineBlockThreshold is the outstanding-fine amount above which a
	// borrower is blocked from new loans. Zero means any unpaid fine blocks.
	FineBlockThreshold float64
	// DefaultBorrowDays is used when a book does not specify MaxBorrowDays.
	DefaultBorrowDays int
	// RenewalExtensionDays is added to the current due date on renewal
	// when no explicit new due date is given.
	RenewalExtensionDays int
}

// Status is the derived borrowing status for one borrower against one book.
// It is computed on demand and never stored.
type Status struct {
	CurrentlyBorrowed int     `json:"currently_borrowed"`
	MaxAllowed        int     `json:"max_allowed"`
	RemainingAllowed  int     `json:"remaining_allowed"`
	OutstandingFine   float64 `json:"outstanding_fine"`
	CanBorrow         bool    `json:"can_borrow"`
	Message           string  `json:"message,omitempty"`
}

// ResolveMaxAllowed picks the effective loan cap: a positive per-borrower
// override wins over the configured default.
func ResolveMaxAllowed(cfg Config, borrowerOverride int) int {
	if borrowerOverride > 0 {
		return borrowerOverride
	}
	return cfg.MaxConcurrentLoans
}

// EvaluateEligibility applies the borrowing rules in order: loan cap,
// outstanding fines, stock. Message carries the first failing rule so the
// caller can surface it verbatim.
func EvaluateEligibility(cfg Config, maxAllowed, activeLoans int, outstandingFine float64, availableCopies int) Status {
	st := Status{
		CurrentlyBorrowed: activeLoans,
		MaxAllowed:        maxAllowed,
		RemainingAllowed:  maxAllowed - activeLoans,
		OutstandingFine:   outstandingFine,
		CanBorrow:         true,
	}
	if st.RemainingAllowed < 0 {
		st.RemainingAllowed = 0
	}

	switch {
	case activeLoans >= maxAllowed:
		st.CanBorrow = false
		st.Message = fmt.Sprintf("borrowing limit reached (%d of %d books)", activeLoans, maxAllowed)
	case outstandingFine > cfg.FineBlockThreshold:
		st.CanBorrow = false
		st.Message = fmt.Sprintf("outstanding fines of %.2f must be settled first", outstandingFine)
	case availableCopies <= 0:
		st.CanBorrow = false
		st.Message = "no copies available"
	}
	return st
}

// DueDate computes the due date for a new loan. An explicit due date, when
// given, must not fall before today (whole-day comparison).
func DueDate(borrowDate time.Time, maxBorrowDays int, explicit *time.Time, today time.Time) (time.Time, error) {
	if explicit != nil {
		if explicit.Before(startOfDay(today)) {
			return time.Time{}, ErrInvalidDueDate
		}
		return *explicit, nil
	}
	return borrowDate.AddDate(0, 0, maxBorrowDays), nil
}

// RenewalDueDate extends the current due date by the configured number of days.
func RenewalDueDate(currentDueDate time.Time, extensionDays int) time.Time {
	return currentDueDate.AddDate(0, 0, extensionDays)
}

// CanRenew reports whether an active loan may be renewed and, if not, why.
func CanRenew(active bool, renewalCount, maxRenewals int, dueDate, asOf time.Time) (bool, string) {
	switch {
	case !active:
		return false, "loan is not active"
	case renewalCount >= maxRenewals:
		return false, fmt.Sprintf("maximum renewals reached (%d)", maxRenewals)
	case IsOverdue(true, dueDate, asOf):
		return false, "loan is overdue and cannot be renewed"
	}
	return true, ""
}

// IsOverdue reports whether an active loan is past its due date at asOf.
func IsOverdue(active bool, dueDate, asOf time.Time) bool {
	return active && asOf.After(dueDate)
}

// DaysOverdue counts whole days past the due date, rounding partial days up.
func DaysOverdue(dueDate, asOf time.Time) int {
	if !asOf.After(dueDate) {
		return 0
	}
	return int(math.Ceil(asOf.Sub(dueDate).Hours() / 24))
}

// Fine computes the accrued fine at asOf: one dailyFine per overdue day,
// capped at maxFine. A non-positive cap means uncapped.
func Fine(dueDate, asOf time.Time, dailyFine, maxFine float64) float64 {
	fine := float64(DaysOverdue(dueDate, asOf)) * dailyFine
	if maxFine > 0 && fine > maxFine {
		return maxFine
	}
	return fine
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
