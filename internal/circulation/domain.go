// internal/circulation/domain.go
package circulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrLoanNotFound      = errors.New("loan not found")
	ErrAlreadyReturned   = errors.New("loan has already been returned")
	ErrStaleLoan         = errors.New("loan was modified concurrently")
	ErrInvalidFineAmount = errors.New("invalid fine amount")
)

// BorrowingDeniedError carries the policy reason a borrow was refused. The
// reason is surfaced to callers verbatim.
type BorrowingDeniedError struct {
	Reason string
}

func (e *BorrowingDeniedError) Error() string {
	return fmt.Sprintf("borrowing denied: %s", e.Reason)
}

// RenewalDeniedError carries the policy reason a renewal was refused.
type RenewalDeniedError struct {
	Reason string
}

func (e *RenewalDeniedError) Error() string {
	return fmt.Sprintf("renewal denied: %s", e.Reason)
}

// Loan statuses. Overdue is a derived condition over active loans, never a
// persisted status.
const (
	StatusActive   = "active"
	StatusReturned = "returned"
)

// Copy conditions recorded on return.
const (
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
	ConditionDamaged = "damaged"
)

// Loan is one borrowing of one copy. Loans are never deleted; a returned loan
// stays as the permanent record of the transaction.
type Loan struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	BorrowerID       uuid.UUID  `json:"borrower_id" db:"borrower_id"`
	BookID           uuid.UUID  `json:"book_id" db:"book_id"`
	BorrowDate       time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate          time.Time  `json:"due_date" db:"due_date"`
	ReturnDate       *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status           string     `json:"status" db:"status"`
	RenewalCount     int        `json:"renewal_count" db:"renewal_count"`
	FineAmount       float64    `json:"fine_amount" db:"fine_amount"`
	FinePaidAmount   float64    `json:"fine_paid_amount" db:"fine_paid_amount"`
	FineWaivedAmount float64    `json:"fine_waived_amount" db:"fine_waived_amount"`
	Condition        string     `json:"condition,omitempty" db:"condition"`
	Notes            string     `json:"notes,omitempty" db:"notes"`
	Version          int        `json:"version" db:"version"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// OutstandingFine is the unpaid, unwaived part of this loan's fine.
func (l *Loan) OutstandingFine() float64 {
	return l.FineAmount - l.FinePaidAmount - l.FineWaivedAmount
}

// OverdueLoan is an active loan past its due date, annotated with the values
// computed against the evaluation time.
type OverdueLoan struct {
	Loan        `json:"loan"`
	DaysOverdue int     `json:"days_overdue"`
	AccruedFine float64 `json:"accrued_fine"`
}

// Clock supplies "now" so overdue and fine computations are deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall-clock Clock used in production.
func SystemClock() Clock { return systemClock{} }

// LoanCreatedEvent is recorded when a borrow is approved.
type LoanCreatedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BorrowerID uuid.UUID `json:"borrower_id"`
	BookID     uuid.UUID `json:"book_id"`
	DueDate    time.Time `json:"due_date"`
}

// LoanRenewedEvent is recorded when a loan's due date is extended.
type LoanRenewedEvent struct {
	LoanID       uuid.UUID `json:"loan_id"`
	NewDueDate   time.Time `json:"new_due_date"`
	RenewalCount int       `json:"renewal_count"`
}

// LoanReturnedEvent is recorded when a copy comes back.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	ReturnDate time.Time `json:"return_date"`
	FineAmount float64   `json:"fine_amount"`
	Condition  string    `json:"condition,omitempty"`
}

// FinePaidEvent is recorded when part of a fine is paid.
type FinePaidEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
	Amount float64   `json:"amount"`
}

// FineWaivedEvent is recorded when part of a fine is waived.
type FineWaivedEvent struct {
	LoanID uuid.UUID `json:"loan_id"`
	Amount float64   `json:"amount"`
}
