// internal/inventory/implementation.go
package inventory

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/eventlog"
)

// service implements the Service interface.
type service struct {
	store    BookStore
	auditLog eventlog.Log
}

// NewService creates a new inventory service instance.
func NewService(store BookStore, auditLog eventlog.Log) Service {
	return &service{store: store, auditLog: auditLog}
}

// AddBook creates a new catalog entry with all copies available.
func (s *service) AddBook(ctx context.Context, params AddBookParams) (*Book, error) {
	if params.TotalCopies < 0 {
		return nil, fmt.Errorf("%w: total copies must not be negative", ErrInvalidCopyCount)
	}
	if params.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	book := &Book{
		ID:              uuid.New(),
		ISBN:            params.ISBN,
		Barcode:         params.Barcode,
		Title:           params.Title,
		Author:          params.Author,
		Publisher:       params.Publisher,
		PublishedYear:   params.PublishedYear,
		TotalCopies:     params.TotalCopies,
		AvailableCopies: params.TotalCopies,
		MaxBorrowDays:   params.MaxBorrowDays,
		MaxRenewals:     params.MaxRenewals,
		IsReservable:    params.IsReservable,
		DailyFineAmount: params.DailyFineAmount,
		MaxFineAmount:   params.MaxFineAmount,
		Status:          StatusActive,
	}
	if err := s.store.Create(ctx, book); err != nil {
		return nil, err
	}

	s.record(ctx, book.ID, "BookAdded", BookAddedEvent{
		ID:          book.ID,
		ISBN:        book.ISBN,
		Title:       book.Title,
		TotalCopies: book.TotalCopies,
	})
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.store.List(ctx)
}

// RetireBook removes a book from circulation. A book with copies on loan or
// on hold cannot be retired.
func (s *service) RetireBook(ctx context.Context, id uuid.UUID) error {
	_, err := s.store.UpdateCounters(ctx, id, func(b *Book) error {
		if b.BorrowedCopies > 0 || b.ReservedCopies > 0 {
			return ErrCopiesOnLoan
		}
		b.Status = StatusRetired
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, id, "BookRetired", BookRetiredEvent{ID: id})
	return nil
}

// SetTotalCopies adjusts the total copy count. The new total may never drop
// below the copies currently borrowed or reserved, and availability is
// recomputed from the remainder.
func (s *service) SetTotalCopies(ctx context.Context, id uuid.UUID, count int, op CopyCountOp) (*Book, error) {
	book, err := s.store.UpdateCounters(ctx, id, func(b *Book) error {
		var newTotal int
		switch op {
		case OpAdd:
			newTotal = b.TotalCopies + count
		case OpSubtract:
			newTotal = b.TotalCopies - count
		case OpSet:
			newTotal = count
		default:
			return fmt.Errorf("%w: unknown operation %q", ErrInvalidCopyCount, op)
		}

		if newTotal < 0 {
			return fmt.Errorf("%w: total would become %d", ErrInvalidCopyCount, newTotal)
		}
		if newTotal < b.BorrowedCopies+b.ReservedCopies {
			return fmt.Errorf("%w: total %d is below the %d copies on loan or on hold",
				ErrInvalidCopyCount, newTotal, b.BorrowedCopies+b.ReservedCopies)
		}

		b.TotalCopies = newTotal
		b.AvailableCopies = newTotal - b.BorrowedCopies - b.ReservedCopies
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, "CopiesAdjusted", CopiesAdjustedEvent{
		ID:           id,
		Operation:    op,
		NewTotal:     book.TotalCopies,
		NewAvailable: book.AvailableCopies,
	})
	return book, nil
}

// ReserveCopyForLoan commits one copy to a loan.
func (s *service) ReserveCopyForLoan(ctx context.Context, id uuid.UUID, fromReservation bool) (*Book, error) {
	return s.store.UpdateCounters(ctx, id, func(b *Book) error {
		if b.Status != StatusActive {
			return ErrBookRetired
		}
		if fromReservation {
			if b.ReservedCopies < 1 {
				return ErrOutOfStock
			}
			b.ReservedCopies--
		} else {
			if b.AvailableCopies < 1 {
				return ErrOutOfStock
			}
			b.AvailableCopies--
		}
		b.BorrowedCopies++
		return nil
	})
}

// ReleaseCopyFromLoan returns a borrowed copy to the available pool.
func (s *service) ReleaseCopyFromLoan(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.store.UpdateCounters(ctx, id, func(b *Book) error {
		if b.BorrowedCopies < 1 {
			return &InvariantError{BookID: id, Detail: "release with no borrowed copies"}
		}
		b.BorrowedCopies--
		b.AvailableCopies++
		return nil
	})
}

// HoldCopyForReservation moves one available copy into the reserved pool.
func (s *service) HoldCopyForReservation(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.store.UpdateCounters(ctx, id, func(b *Book) error {
		if b.Status != StatusActive {
			return ErrBookRetired
		}
		if !b.IsReservable {
			return ErrNotReservable
		}
		if b.AvailableCopies < 1 {
			return ErrOutOfStock
		}
		b.AvailableCopies--
		b.ReservedCopies++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, "CopyHeld", CopyHeldEvent{ID: id, NewReserved: book.ReservedCopies})
	return book, nil
}

// ReleaseReservedCopy returns a held copy to the available pool.
func (s *service) ReleaseReservedCopy(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.store.UpdateCounters(ctx, id, func(b *Book) error {
		if b.ReservedCopies < 1 {
			return &InvariantError{BookID: id, Detail: "hold release with no reserved copies"}
		}
		b.ReservedCopies--
		b.AvailableCopies++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, id, "HoldReleased", HoldReleasedEvent{ID: id, NewReserved: book.ReservedCopies})
	return book, nil
}

// record appends an audit entry. Audit failures are logged, never propagated:
// the counter transition already committed.
func (s *service) record(ctx context.Context, id uuid.UUID, eventType string, payload any) {
	if err := eventlog.Record(ctx, s.auditLog, id, eventlog.AggregateBook, eventType, payload); err != nil {
		log.Printf("inventory: failed to record %s for book %s: %v", eventType, id, err)
	}
}
