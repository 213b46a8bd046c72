// internal/inventory/store.go
package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BookStore is the persistence collaborator for books. UpdateCounters applies
// a transition function as a single atomic unit per book: the store guarantees
// that no two transitions for the same book interleave, which is what keeps
// two concurrent borrows from both seeing the last available copy.
type BookStore interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
	UpdateCounters(ctx context.Context, id uuid.UUID, transition func(*Book) error) (*Book, error)
}

// MemoryBookStore keeps books in process with a per-book lock for counter
// transitions. Used by tests and the memory storage mode.
type MemoryBookStore struct {
	mu    sync.RWMutex
	books map[uuid.UUID]*bookEntry
}

type bookEntry struct {
	mu   sync.Mutex
	book Book
}

func NewMemoryBookStore() *MemoryBookStore {
	return &MemoryBookStore{books: make(map[uuid.UUID]*bookEntry)}
}

func (s *MemoryBookStore) Create(_ context.Context, book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.Version = 1
	s.books[book.ID] = &bookEntry{book: *book}
	return nil
}

func (s *MemoryBookStore) Get(_ context.Context, id uuid.UUID) (*Book, error) {
	s.mu.RLock()
	entry, ok := s.books[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBookNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	book := entry.book
	return &book, nil
}

func (s *MemoryBookStore) List(_ context.Context) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]*Book, 0, len(s.books))
	for _, entry := range s.books {
		entry.mu.Lock()
		book := entry.book
		entry.mu.Unlock()
		books = append(books, &book)
	}
	return books, nil
}

func (s *MemoryBookStore) UpdateCounters(_ context.Context, id uuid.UUID, transition func(*Book) error) (*Book, error) {
	s.mu.RLock()
	entry, ok := s.books[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBookNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	candidate := entry.book
	if err := transition(&candidate); err != nil {
		return nil, err
	}
	if err := candidate.CheckCounters(); err != nil {
		return nil, err
	}

	candidate.Version = entry.book.Version + 1
	candidate.UpdatedAt = time.Now().UTC()
	entry.book = candidate
	book := candidate
	return &book, nil
}
