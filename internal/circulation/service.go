// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/eventlog"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/policy"
)

// BorrowParams carries a borrow request. DueDate overrides the policy-derived
// due date when set; FromReservation consumes a held copy instead of an
// available one.
type BorrowParams struct {
	BorrowerID      uuid.UUID
	BookID          uuid.UUID
	DueDate         *time.Time
	FromReservation bool
	Notes           string
}

// Service is the loan lifecycle state machine the transport layer calls into.
type Service interface {
	Borrow(ctx context.Context, params BorrowParams) (*Loan, error)
	Renew(ctx context.Context, loanID uuid.UUID, newDueDate *time.Time) (*Loan, error)
	Return(ctx context.Context, loanID uuid.UUID, condition, notes string) (*Loan, error)

	PayFine(ctx context.Context, loanID uuid.UUID, amount float64) (*Loan, error)
	WaiveFine(ctx context.Context, loanID uuid.UUID, amount float64) (*Loan, error)

	GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error)
	OverdueLoans(ctx context.Context) ([]*OverdueLoan, error)
	CurrentFine(ctx context.Context, loanID uuid.UUID) (float64, error)
	BorrowingStatus(ctx context.Context, borrowerID uuid.UUID, bookID *uuid.UUID) (*policy.Status, error)
	LoanEvents(ctx context.Context, loanID uuid.UUID) ([]eventlog.Event, error)
}
