// internal/circulation/store.go
package circulation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoanFilter narrows a loan listing. Nil/zero fields match everything.
type LoanFilter struct {
	BorrowerID *uuid.UUID
	BookID     *uuid.UUID
	Status     string
	DueBefore  *time.Time
}

// LoanStore is the persistence collaborator for loan records. Update applies
// an optimistic version check and fails with ErrStaleLoan when the record
// moved underneath the caller.
type LoanStore interface {
	Create(ctx context.Context, loan *Loan) error
	Get(ctx context.Context, id uuid.UUID) (*Loan, error)
	Update(ctx context.Context, loan *Loan) error
	List(ctx context.Context, filter LoanFilter) ([]*Loan, error)
}

// MemoryLoanStore keeps loans in process for tests and the memory storage mode.
type MemoryLoanStore struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]Loan
}

func NewMemoryLoanStore() *MemoryLoanStore {
	return &MemoryLoanStore{loans: make(map[uuid.UUID]Loan)}
}

func (s *MemoryLoanStore) Create(_ context.Context, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	loan.Version = 1
	s.loans[loan.ID] = *loan
	return nil
}

func (s *MemoryLoanStore) Get(_ context.Context, id uuid.UUID) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	return &loan, nil
}

func (s *MemoryLoanStore) Update(_ context.Context, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.loans[loan.ID]
	if !ok {
		return ErrLoanNotFound
	}
	if stored.Version != loan.Version {
		return ErrStaleLoan
	}

	loan.Version++
	loan.UpdatedAt = time.Now().UTC()
	s.loans[loan.ID] = *loan
	return nil
}

func (s *MemoryLoanStore) List(_ context.Context, filter LoanFilter) ([]*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Loan
	for _, loan := range s.loans {
		if filter.BorrowerID != nil && loan.BorrowerID != *filter.BorrowerID {
			continue
		}
		if filter.BookID != nil && loan.BookID != *filter.BookID {
			continue
		}
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		if filter.DueBefore != nil && !loan.DueDate.Before(*filter.DueBefore) {
			continue
		}
		l := loan
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowDate.Before(out[j].BorrowDate) })
	return out, nil
}
