// internal/inventory/service.go
package inventory

import (
	"context"

	"github.com/google/uuid"
)

// AddBookParams carries everything needed to create a catalog entry.
type AddBookParams struct {
	ISBN            string
	Barcode         string
	Title           string
	Author          string
	Publisher       string
	PublishedYear   int
	TotalCopies     int
	MaxBorrowDays   int
	MaxRenewals     int
	IsReservable    bool
	DailyFineAmount float64
	MaxFineAmount   float64
}

// Service defines the interface for the book inventory.
type Service interface {
	AddBook(ctx context.Context, params AddBookParams) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	RetireBook(ctx context.Context, id uuid.UUID) error

	// SetTotalCopies changes the total copy count and recomputes availability.
	// The new total can never drop below the copies currently borrowed or reserved.
	SetTotalCopies(ctx context.Context, id uuid.UUID, count int, op CopyCountOp) (*Book, error)

	// ReserveCopyForLoan moves one copy available -> borrowed. When
	// fromReservation is set it consumes a reserved copy instead.
	ReserveCopyForLoan(ctx context.Context, id uuid.UUID, fromReservation bool) (*Book, error)
	// ReleaseCopyFromLoan moves one copy borrowed -> available.
	ReleaseCopyFromLoan(ctx context.Context, id uuid.UUID) (*Book, error)

	// HoldCopyForReservation moves one copy available -> reserved.
	HoldCopyForReservation(ctx context.Context, id uuid.UUID) (*Book, error)
	// ReleaseReservedCopy moves one copy reserved -> available.
	ReleaseReservedCopy(ctx context.Context, id uuid.UUID) (*Book, error)
}
