// internal/reporting/service.go
package reporting

import (
	"context"

	"github.com/google/uuid"
)

// Dashboard aggregates the console's front-page numbers. Everything here is
// derived on read from books and loans; nothing is stored.
type Dashboard struct {
	TotalBooks       int         `json:"total_books"`
	TotalCopies      int         `json:"total_copies"`
	AvailableCopies  int         `json:"available_copies"`
	BorrowedCopies   int         `json:"borrowed_copies"`
	ReservedCopies   int         `json:"reserved_copies"`
	ActiveLoans      int         `json:"active_loans"`
	OverdueLoans     int         `json:"overdue_loans"`
	OutstandingFines float64     `json:"outstanding_fines"`
	MostBorrowed     []BookCount `json:"most_borrowed"`
}

// BookCount pairs a book with how often it has been borrowed.
type BookCount struct {
	BookID    uuid.UUID `json:"book_id"`
	Title     string    `json:"title"`
	LoanCount int       `json:"loan_count"`
}

// Service defines the interface for the reporting view.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}
