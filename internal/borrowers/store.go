// internal/borrowers/store.go
package borrowers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence collaborator for borrower records.
type Store interface {
	Create(ctx context.Context, borrower *Borrower) error
	Get(ctx context.Context, id uuid.UUID) (*Borrower, error)
	List(ctx context.Context) ([]*Borrower, error)
	Update(ctx context.Context, borrower *Borrower) error
}

// MemoryStore keeps borrowers in process for tests and the memory storage mode.
type MemoryStore struct {
	mu        sync.RWMutex
	borrowers map[uuid.UUID]Borrower
	barcodes  map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		borrowers: make(map[uuid.UUID]Borrower),
		barcodes:  make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, borrower *Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if borrower.Barcode != "" {
		if _, exists := s.barcodes[borrower.Barcode]; exists {
			return ErrDuplicateBarcode
		}
		s.barcodes[borrower.Barcode] = borrower.ID
	}
	now := time.Now().UTC()
	borrower.CreatedAt = now
	borrower.UpdatedAt = now
	s.borrowers[borrower.ID] = *borrower
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	borrower, ok := s.borrowers[id]
	if !ok {
		return nil, ErrBorrowerNotFound
	}
	return &borrower, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Borrower, 0, len(s.borrowers))
	for _, borrower := range s.borrowers {
		b := borrower
		out = append(out, &b)
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, borrower *Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.borrowers[borrower.ID]; !ok {
		return ErrBorrowerNotFound
	}
	borrower.UpdatedAt = time.Now().UTC()
	s.borrowers[borrower.ID] = *borrower
	return nil
}
