// internal/inventory/postgres.go
package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// updateCountersMaxRetries bounds the optimistic CAS loop under contention.
const updateCountersMaxRetries = 5

// PostgresBookStore persists books in the books table. Counter transitions
// use an optimistic version check: the UPDATE only applies when the row still
// carries the version the transition was computed from, so concurrent borrows
// against the same book serialize instead of over-committing copies.
type PostgresBookStore struct {
	db *sqlx.DB
}

func NewPostgresBookStore(db *sqlx.DB) *PostgresBookStore {
	return &PostgresBookStore{db: db}
}

const bookColumns = `
	id, isbn, barcode, title, author, publisher, published_year,
	total_copies, available_copies, borrowed_copies, reserved_copies,
	max_borrow_days, max_renewals, is_reservable, daily_fine_amount, max_fine_amount,
	status, version, created_at, updated_at`

func (s *PostgresBookStore) Create(ctx context.Context, book *Book) error {
	book.Version = 1
	query := `
		INSERT INTO books (` + bookColumns + `)
		VALUES (:id, :isbn, :barcode, :title, :author, :publisher, :published_year,
			:total_copies, :available_copies, :borrowed_copies, :reserved_copies,
			:max_borrow_days, :max_renewals, :is_reservable, :daily_fine_amount, :max_fine_amount,
			:status, :version, NOW(), NOW())
	`
	_, err := s.db.NamedExecContext(ctx, query, book)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			return ErrInvalidCopyCount
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresBookStore) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	book := &Book{}
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	if err := s.db.GetContext(ctx, book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *PostgresBookStore) List(ctx context.Context) ([]*Book, error) {
	var books []*Book
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY title ASC`
	if err := s.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *PostgresBookStore) UpdateCounters(ctx context.Context, id uuid.UUID, transition func(*Book) error) (*Book, error) {
	for attempt := 0; attempt < updateCountersMaxRetries; attempt++ {
		book, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		candidate := *book
		if err := transition(&candidate); err != nil {
			return nil, err
		}
		if err := candidate.CheckCounters(); err != nil {
			return nil, err
		}

		candidate.Version = book.Version + 1
		result, err := s.db.ExecContext(ctx, `
			UPDATE books
			SET total_copies = $1, available_copies = $2, borrowed_copies = $3, reserved_copies = $4,
			    status = $5, version = $6, updated_at = NOW()
			WHERE id = $7 AND version = $8
		`,
			candidate.TotalCopies, candidate.AvailableCopies, candidate.BorrowedCopies, candidate.ReservedCopies,
			candidate.Status, candidate.Version, id, book.Version,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
				return nil, ErrInvalidCopyCount
			}
			return nil, fmt.Errorf("update book counters: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update book counters: %w", err)
		}
		if affected == 1 {
			return &candidate, nil
		}
		// Version moved under us; re-read and re-apply the transition.
	}
	return nil, fmt.Errorf("update book counters: too much contention on book %s", id)
}
