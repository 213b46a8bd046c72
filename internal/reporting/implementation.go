// internal/reporting/implementation.go
package reporting

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/circulation"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/inventory"
)

// mostBorrowedLimit caps the ranking on the dashboard.
const mostBorrowedLimit = 5

// service implements the Service interface. It only ever reads from the
// inventory and the loan engine.
type service struct {
	inventory   inventory.Service
	circulation circulation.Service
}

// NewService creates a new reporting service instance.
func NewService(inv inventory.Service, circ circulation.Service) Service {
	return &service{inventory: inv, circulation: circ}
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	books, err := s.inventory.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := s.circulation.ListLoans(ctx, circulation.LoanFilter{})
	if err != nil {
		return nil, err
	}
	overdue, err := s.circulation.OverdueLoans(ctx)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		TotalBooks:   len(books),
		OverdueLoans: len(overdue),
	}

	titles := make(map[uuid.UUID]string, len(books))
	for _, book := range books {
		dashboard.TotalCopies += book.TotalCopies
		dashboard.AvailableCopies += book.AvailableCopies
		dashboard.BorrowedCopies += book.BorrowedCopies
		dashboard.ReservedCopies += book.ReservedCopies
		titles[book.ID] = book.Title
	}

	counts := make(map[uuid.UUID]int)
	for _, loan := range loans {
		if loan.Status == circulation.StatusActive {
			dashboard.ActiveLoans++
		}
		dashboard.OutstandingFines += loan.OutstandingFine()
		counts[loan.BookID]++
	}

	ranking := make([]BookCount, 0, len(counts))
	for bookID, count := range counts {
		ranking = append(ranking, BookCount{
			BookID:    bookID,
			Title:     titles[bookID],
			LoanCount: count,
		})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].LoanCount != ranking[j].LoanCount {
			return ranking[i].LoanCount > ranking[j].LoanCount
		}
		return ranking[i].Title < ranking[j].Title
	})
	if len(ranking) > mostBorrowedLimit {
		ranking = ranking[:mostBorrowedLimit]
	}
	dashboard.MostBorrowed = ranking

	return dashboard, nil
}
