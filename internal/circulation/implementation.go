// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/borrowers"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/eventlog"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/inventory"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/notify"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/policy"
)

// service implements the Service interface.
type service struct {
	loans     LoanStore
	inventory inventory.Service
	borrowers borrowers.Service
	cfg       policy.Config
	clock     Clock
	auditLog  eventlog.Log
	notifier  notify.Dispatcher

	// borrowLocks serializes eligibility-check-then-reserve per borrower so
	// two parallel borrows cannot both pass the loan-cap check.
	borrowLocks sync.Map

	tracer trace.Tracer

	borrowCounter metric.Int64Counter
	returnCounter metric.Int64Counter
	denialCounter metric.Int64Counter
}

// NewService creates a new loan lifecycle service instance.
func NewService(loans LoanStore, inv inventory.Service, reg borrowers.Service, cfg policy.Config, clock Clock, auditLog eventlog.Log, notifier notify.Dispatcher) Service {
	meter := otel.Meter("sfalibrary/circulation")
	borrowCounter, _ := meter.Int64Counter("loans_borrowed_total")
	returnCounter, _ := meter.Int64Counter("loans_returned_total")
	denialCounter, _ := meter.Int64Counter("borrowing_denied_total")

	return &service{
		loans:         loans,
		inventory:     inv,
		borrowers:     reg,
		cfg:           cfg,
		clock:         clock,
		auditLog:      auditLog,
		notifier:      notifier,
		tracer:        otel.Tracer("sfalibrary/circulation"),
		borrowCounter: borrowCounter,
		returnCounter: returnCounter,
		denialCounter: denialCounter,
	}
}

// Borrow runs the full eligibility-check-then-reserve sequence and persists
// the new loan. Issuing several titles to one borrower is N independent calls;
// a denial partway through leaves the earlier loans committed.
func (s *service) Borrow(ctx context.Context, params BorrowParams) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.String("borrower.id", params.BorrowerID.String()),
			attribute.String("book.id", params.BookID.String()),
		),
	)
	defer span.End()

	unlock := s.lockBorrower(params.BorrowerID)
	defer unlock()

	borrower, err := s.borrowers.Get(ctx, params.BorrowerID)
	if err != nil {
		return nil, err
	}
	if borrower.Status == borrowers.StatusSuspended {
		s.denialCounter.Add(ctx, 1)
		return nil, &BorrowingDeniedError{Reason: borrowers.ErrBorrowerSuspended.Error()}
	}

	book, err := s.inventory.GetBook(ctx, params.BookID)
	if err != nil {
		return nil, err
	}

	status, err := s.evaluate(ctx, borrower, book, params.FromReservation)
	if err != nil {
		return nil, err
	}
	if !status.CanBorrow {
		span.SetAttributes(attribute.String("denial.reason", status.Message))
		s.denialCounter.Add(ctx, 1)
		return nil, &BorrowingDeniedError{Reason: status.Message}
	}

	now := s.clock.Now()
	borrowDays := book.MaxBorrowDays
	if borrowDays <= 0 {
		borrowDays = s.cfg.DefaultBorrowDays
	}
	dueDate, err := policy.DueDate(now, borrowDays, params.DueDate, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.inventory.ReserveCopyForLoan(ctx, params.BookID, params.FromReservation); err != nil {
		if errors.Is(err, inventory.ErrOutOfStock) {
			s.denialCounter.Add(ctx, 1)
			return nil, &BorrowingDeniedError{Reason: "no copies available"}
		}
		return nil, err
	}

	loan := &Loan{
		ID:         uuid.New(),
		BorrowerID: params.BorrowerID,
		BookID:     params.BookID,
		BorrowDate: now,
		DueDate:    dueDate,
		Status:     StatusActive,
		Notes:      params.Notes,
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		// Compensate the reservation so the copy is not lost.
		if _, relErr := s.inventory.ReleaseCopyFromLoan(ctx, params.BookID); relErr != nil {
			log.Printf("circulation: failed to compensate reservation for book %s: %v", params.BookID, relErr)
		}
		return nil, fmt.Errorf("persist loan: %w", err)
	}

	s.borrowCounter.Add(ctx, 1)
	s.record(ctx, loan.ID, "LoanCreated", LoanCreatedEvent{
		LoanID:     loan.ID,
		BorrowerID: loan.BorrowerID,
		BookID:     loan.BookID,
		DueDate:    loan.DueDate,
	})
	s.dispatch(notify.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notify.KindLoanCreated,
		Message:    fmt.Sprintf("Borrowed %q, due %s", book.Title, loan.DueDate.Format("02 Jan 2006")),
		SentAt:     now,
	})
	return loan, nil
}

// Renew extends the due date of an active, not-yet-overdue loan. Inventory is
// untouched: the copy never changed hands.
func (s *service) Renew(ctx context.Context, loanID uuid.UUID, newDueDate *time.Time) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	book, err := s.inventory.GetBook(ctx, loan.BookID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, reason := policy.CanRenew(loan.Status == StatusActive, loan.RenewalCount, book.MaxRenewals, loan.DueDate, now)
	if !ok {
		span.SetAttributes(attribute.String("denial.reason", reason))
		return nil, &RenewalDeniedError{Reason: reason}
	}

	var dueDate time.Time
	if newDueDate != nil {
		dueDate, err = policy.DueDate(now, 0, newDueDate, now)
		if err != nil {
			return nil, err
		}
	} else {
		dueDate = policy.RenewalDueDate(loan.DueDate, s.cfg.RenewalExtensionDays)
	}

	loan.DueDate = dueDate
	loan.RenewalCount++
	if err := s.loans.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.record(ctx, loan.ID, "LoanRenewed", LoanRenewedEvent{
		LoanID:       loan.ID,
		NewDueDate:   loan.DueDate,
		RenewalCount: loan.RenewalCount,
	})
	s.dispatch(notify.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notify.KindLoanRenewed,
		Message:    fmt.Sprintf("Renewed %q, now due %s", book.Title, loan.DueDate.Format("02 Jan 2006")),
		SentAt:     now,
	})
	return loan, nil
}

// Return closes out a loan: the fine is frozen at its value now, the record
// becomes terminal, and the copy goes back to the available pool. A copy in
// poor or damaged condition is still released; holding it out for maintenance
// is a policy decision that has not been made.
func (s *service) Return(ctx context.Context, loanID uuid.UUID, condition, notes string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusActive {
		return nil, ErrAlreadyReturned
	}

	book, err := s.inventory.GetBook(ctx, loan.BookID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	returnDate := now
	loan.ReturnDate = &returnDate
	loan.FineAmount = policy.Fine(loan.DueDate, now, book.DailyFineAmount, book.MaxFineAmount)
	loan.Status = StatusReturned
	loan.Condition = condition
	if notes != "" {
		loan.Notes = notes
	}

	if err := s.loans.Update(ctx, loan); err != nil {
		if errors.Is(err, ErrStaleLoan) {
			// Lost the race against another return of the same loan.
			return nil, ErrAlreadyReturned
		}
		return nil, err
	}

	if _, err := s.inventory.ReleaseCopyFromLoan(ctx, loan.BookID); err != nil {
		// The loan is closed but the counters disagree; this is the fatal
		// bookkeeping class, not a user-facing denial.
		log.Printf("ALERT: circulation: release after return of loan %s failed: %v", loan.ID, err)
		return nil, err
	}

	s.returnCounter.Add(ctx, 1)
	s.record(ctx, loan.ID, "LoanReturned", LoanReturnedEvent{
		LoanID:     loan.ID,
		ReturnDate: returnDate,
		FineAmount: loan.FineAmount,
		Condition:  condition,
	})
	message := fmt.Sprintf("Returned %q", book.Title)
	if loan.FineAmount > 0 {
		message = fmt.Sprintf("Returned %q with a fine of %.2f", book.Title, loan.FineAmount)
	}
	s.dispatch(notify.Notification{
		BorrowerID: loan.BorrowerID,
		Kind:       notify.KindLoanReturned,
		Message:    message,
		SentAt:     now,
	})
	return loan, nil
}

// PayFine records a payment against a returned loan's fine.
func (s *service) PayFine(ctx context.Context, loanID uuid.UUID, amount float64) (*Loan, error) {
	loan, err := s.settleFine(ctx, loanID, amount, func(l *Loan) { l.FinePaidAmount += amount })
	if err != nil {
		return nil, err
	}
	s.record(ctx, loan.ID, "FinePaid", FinePaidEvent{LoanID: loan.ID, Amount: amount})
	return loan, nil
}

// WaiveFine records a waiver against a loan's fine.
func (s *service) WaiveFine(ctx context.Context, loanID uuid.UUID, amount float64) (*Loan, error) {
	loan, err := s.settleFine(ctx, loanID, amount, func(l *Loan) { l.FineWaivedAmount += amount })
	if err != nil {
		return nil, err
	}
	s.record(ctx, loan.ID, "FineWaived", FineWaivedEvent{LoanID: loan.ID, Amount: amount})
	return loan, nil
}

func (s *service) settleFine(ctx context.Context, loanID uuid.UUID, amount float64, apply func(*Loan)) (*Loan, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidFineAmount)
	}

	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.OutstandingFine()-amount < 0 {
		return nil, fmt.Errorf("%w: %.2f exceeds the outstanding fine of %.2f",
			ErrInvalidFineAmount, amount, loan.OutstandingFine())
	}

	apply(loan)
	if err := s.loans.Update(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *service) GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	return s.loans.Get(ctx, loanID)
}

func (s *service) ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error) {
	return s.loans.List(ctx, filter)
}

// OverdueLoans lists active loans past due, annotated against the clock.
// Overdue is computed on read; nothing here mutates loan state.
func (s *service) OverdueLoans(ctx context.Context) ([]*OverdueLoan, error) {
	now := s.clock.Now()
	active, err := s.loans.List(ctx, LoanFilter{Status: StatusActive, DueBefore: &now})
	if err != nil {
		return nil, err
	}

	out := make([]*OverdueLoan, 0, len(active))
	for _, loan := range active {
		if !policy.IsOverdue(true, loan.DueDate, now) {
			continue
		}
		book, err := s.inventory.GetBook(ctx, loan.BookID)
		if err != nil {
			return nil, err
		}
		out = append(out, &OverdueLoan{
			Loan:        *loan,
			DaysOverdue: policy.DaysOverdue(loan.DueDate, now),
			AccruedFine: policy.Fine(loan.DueDate, now, book.DailyFineAmount, book.MaxFineAmount),
		})
	}
	return out, nil
}

// CurrentFine reports the fine as of now: frozen for returned loans, accruing
// for active ones.
func (s *service) CurrentFine(ctx context.Context, loanID uuid.UUID) (float64, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return 0, err
	}
	if loan.Status == StatusReturned {
		return loan.FineAmount, nil
	}

	book, err := s.inventory.GetBook(ctx, loan.BookID)
	if err != nil {
		return 0, err
	}
	return policy.Fine(loan.DueDate, s.clock.Now(), book.DailyFineAmount, book.MaxFineAmount), nil
}

// BorrowingStatus derives the borrower's standing. With a book id the stock
// rule participates; without one only the cap and fine rules apply.
func (s *service) BorrowingStatus(ctx context.Context, borrowerID uuid.UUID, bookID *uuid.UUID) (*policy.Status, error) {
	borrower, err := s.borrowers.Get(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	var book *inventory.Book
	if bookID != nil {
		book, err = s.inventory.GetBook(ctx, *bookID)
		if err != nil {
			return nil, err
		}
	}
	status, err := s.evaluate(ctx, borrower, book, false)
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *service) LoanEvents(ctx context.Context, loanID uuid.UUID) ([]eventlog.Event, error) {
	if _, err := s.loans.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return s.auditLog.History(ctx, loanID)
}

// evaluate gathers the borrower's active loans and outstanding fines and runs
// the pure policy rules. A nil book skips the stock rule.
func (s *service) evaluate(ctx context.Context, borrower *borrowers.Borrower, book *inventory.Book, fromReservation bool) (*policy.Status, error) {
	all, err := s.loans.List(ctx, LoanFilter{BorrowerID: &borrower.ID})
	if err != nil {
		return nil, err
	}

	var activeCount int
	var outstanding float64
	for _, loan := range all {
		if loan.Status == StatusActive {
			activeCount++
		}
		outstanding += loan.OutstandingFine()
	}

	availableCopies := 1
	if book != nil {
		if fromReservation {
			availableCopies = book.ReservedCopies
		} else {
			availableCopies = book.AvailableCopies
		}
	}

	maxAllowed := policy.ResolveMaxAllowed(s.cfg, borrower.MaxLoans)
	status := policy.EvaluateEligibility(s.cfg, maxAllowed, activeCount, outstanding, availableCopies)
	return &status, nil
}

func (s *service) lockBorrower(id uuid.UUID) func() {
	entry, _ := s.borrowLocks.LoadOrStore(id, &sync.Mutex{})
	mu := entry.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// record appends an audit entry. Audit failures are logged, never propagated:
// the lifecycle transition already committed.
func (s *service) record(ctx context.Context, loanID uuid.UUID, eventType string, payload any) {
	if err := eventlog.Record(ctx, s.auditLog, loanID, eventlog.AggregateLoan, eventType, payload); err != nil {
		log.Printf("circulation: failed to record %s for loan %s: %v", eventType, loanID, err)
	}
}

// dispatch sends a notification without blocking or failing the transition.
func (s *service) dispatch(n notify.Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Dispatch(ctx, n); err != nil {
			log.Printf("circulation: notification dispatch failed: %v", err)
		}
	}()
}
