// internal/borrowers/postgres.go
package borrowers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore persists borrowers in the borrowers table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const borrowerColumns = `id, barcode, name, email, role, max_loans, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, borrower *Borrower) error {
	query := `
		INSERT INTO borrowers (` + borrowerColumns + `)
		VALUES (:id, :barcode, :name, :email, :role, :max_loans, :status, NOW(), NOW())
	`
	_, err := s.db.NamedExecContext(ctx, query, borrower)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("insert borrower: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Borrower, error) {
	borrower := &Borrower{}
	query := `SELECT ` + borrowerColumns + ` FROM borrowers WHERE id = $1`
	if err := s.db.GetContext(ctx, borrower, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBorrowerNotFound
		}
		return nil, fmt.Errorf("get borrower: %w", err)
	}
	return borrower, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Borrower, error) {
	var out []*Borrower
	query := `SELECT ` + borrowerColumns + ` FROM borrowers ORDER BY name ASC`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list borrowers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, borrower *Borrower) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE borrowers
		SET name = $1, email = $2, role = $3, max_loans = $4, status = $5, updated_at = NOW()
		WHERE id = $6
	`, borrower.Name, borrower.Email, borrower.Role, borrower.MaxLoans, borrower.Status, borrower.ID)
	if err != nil {
		return fmt.Errorf("update borrower: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update borrower: %w", err)
	}
	if affected == 0 {
		return ErrBorrowerNotFound
	}
	return nil
}
