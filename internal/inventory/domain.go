// internal/inventory/domain.go
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrOutOfStock       = errors.New("no copies available")
	ErrInvalidCopyCount = errors.New("invalid copy count")
	ErrNotReservable    = errors.New("book is not reservable")
	ErrBookRetired      = errors.New("book is retired")
	ErrCopiesOnLoan     = errors.New("book still has copies on loan")
)

// InvariantError signals broken copy-count bookkeeping. Unlike the policy
// rejections above it indicates an internal bug and is surfaced as fatal.
type InvariantError struct {
	BookID uuid.UUID
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("copy counter invariant violated for book %s: %s", e.BookID, e.Detail)
}

// Book statuses.
const (
	StatusActive  = "active"
	StatusRetired = "retired"
)

// CopyCountOp selects how SetTotalCopies interprets its argument.
type CopyCountOp string

const (
	OpAdd      CopyCountOp = "add"
	OpSubtract CopyCountOp = "subtract"
	OpSet      CopyCountOp = "set"
)

// Book is a catalog entry together with its copy counters and the borrowing
// policy fields that govern loans of this title. The counters always satisfy
// available + borrowed + reserved == total, all non-negative; only the
// lifecycle transitions and SetTotalCopies may change them.
type Book struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Barcode         string    `json:"barcode,omitempty" db:"barcode"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	Publisher       string    `json:"publisher,omitempty" db:"publisher"`
	PublishedYear   int       `json:"published_year,omitempty" db:"published_year"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
	BorrowedCopies  int       `json:"borrowed_copies" db:"borrowed_copies"`
	ReservedCopies  int       `json:"reserved_copies" db:"reserved_copies"`
	MaxBorrowDays   int       `json:"max_borrow_days" db:"max_borrow_days"`
	MaxRenewals     int       `json:"max_renewals" db:"max_renewals"`
	IsReservable    bool      `json:"is_reservable" db:"is_reservable"`
	DailyFineAmount float64   `json:"daily_fine_amount" db:"daily_fine_amount"`
	MaxFineAmount   float64   `json:"max_fine_amount" db:"max_fine_amount"`
	Status          string    `json:"status" db:"status"`
	Version         int       `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// CheckCounters verifies the counter invariant.
func (b *Book) CheckCounters() error {
	if b.AvailableCopies < 0 || b.BorrowedCopies < 0 || b.ReservedCopies < 0 || b.TotalCopies < 0 {
		return &InvariantError{BookID: b.ID, Detail: fmt.Sprintf(
			"negative counter (available=%d borrowed=%d reserved=%d total=%d)",
			b.AvailableCopies, b.BorrowedCopies, b.ReservedCopies, b.TotalCopies)}
	}
	if b.AvailableCopies+b.BorrowedCopies+b.ReservedCopies != b.TotalCopies {
		return &InvariantError{BookID: b.ID, Detail: fmt.Sprintf(
			"available=%d + borrowed=%d + reserved=%d != total=%d",
			b.AvailableCopies, b.BorrowedCopies, b.ReservedCopies, b.TotalCopies)}
	}
	return nil
}

// BookAddedEvent is recorded when a new book enters the catalog.
type BookAddedEvent struct {
	ID          uuid.UUID `json:"id"`
	ISBN        string    `json:"isbn"`
	Title       string    `json:"title"`
	TotalCopies int       `json:"total_copies"`
}

// CopiesAdjustedEvent is recorded when the total copy count changes.
type CopiesAdjustedEvent struct {
	ID           uuid.UUID   `json:"id"`
	Operation    CopyCountOp `json:"operation"`
	NewTotal     int         `json:"new_total"`
	NewAvailable int         `json:"new_available"`
}

// CopyHeldEvent is recorded when a copy is held for a reservation.
type CopyHeldEvent struct {
	ID          uuid.UUID `json:"id"`
	NewReserved int       `json:"new_reserved"`
}

// HoldReleasedEvent is recorded when a reservation hold is released.
type HoldReleasedEvent struct {
	ID          uuid.UUID `json:"id"`
	NewReserved int       `json:"new_reserved"`
}

// BookRetiredEvent is recorded when a book is retired from the catalog.
type BookRetiredEvent struct {
	ID uuid.UUID `json:"id"`
}
