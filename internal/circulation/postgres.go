// internal/circulation/postgres.go
package circulation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresLoanStore persists loans in the loans table. Listings are built
// with goqu so filters compose without string concatenation.
type PostgresLoanStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewPostgresLoanStore(db *sqlx.DB) *PostgresLoanStore {
	return &PostgresLoanStore{db: db, dialect: goqu.Dialect("postgres")}
}

const loanColumns = `
	id, borrower_id, book_id, borrow_date, due_date, return_date, status,
	renewal_count, fine_amount, fine_paid_amount, fine_waived_amount,
	condition, notes, version, created_at, updated_at`

func (s *PostgresLoanStore) Create(ctx context.Context, loan *Loan) error {
	loan.Version = 1
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :borrower_id, :book_id, :borrow_date, :due_date, :return_date, :status,
			:renewal_count, :fine_amount, :fine_paid_amount, :fine_waived_amount,
			:condition, :notes, :version, NOW(), NOW())
	`
	if _, err := s.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (s *PostgresLoanStore) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	loan := &Loan{}
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	if err := s.db.GetContext(ctx, loan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

func (s *PostgresLoanStore) Update(ctx context.Context, loan *Loan) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET due_date = $1, return_date = $2, status = $3, renewal_count = $4,
		    fine_amount = $5, fine_paid_amount = $6, fine_waived_amount = $7,
		    condition = $8, notes = $9, version = version + 1, updated_at = NOW()
		WHERE id = $10 AND version = $11
	`,
		loan.DueDate, loan.ReturnDate, loan.Status, loan.RenewalCount,
		loan.FineAmount, loan.FinePaidAmount, loan.FineWaivedAmount,
		loan.Condition, loan.Notes, loan.ID, loan.Version,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if affected == 0 {
		// Either the loan vanished or someone updated it first.
		if _, getErr := s.Get(ctx, loan.ID); getErr != nil {
			return getErr
		}
		return ErrStaleLoan
	}
	loan.Version++
	return nil
}

func (s *PostgresLoanStore) List(ctx context.Context, filter LoanFilter) ([]*Loan, error) {
	builder := s.dialect.
		From("loans").
		Select(
			"id", "borrower_id", "book_id", "borrow_date", "due_date", "return_date", "status",
			"renewal_count", "fine_amount", "fine_paid_amount", "fine_waived_amount",
			"condition", "notes", "version", "created_at", "updated_at",
		).
		Order(goqu.I("borrow_date").Asc())

	if filter.BorrowerID != nil {
		builder = builder.Where(goqu.C("borrower_id").Eq(*filter.BorrowerID))
	}
	if filter.BookID != nil {
		builder = builder.Where(goqu.C("book_id").Eq(*filter.BookID))
	}
	if filter.Status != "" {
		builder = builder.Where(goqu.C("status").Eq(filter.Status))
	}
	if filter.DueBefore != nil {
		builder = builder.Where(goqu.C("due_date").Lt(*filter.DueBefore))
	}

	query, args, err := builder.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loan query: %w", err)
	}

	var loans []*Loan
	if err := s.db.SelectContext(ctx, &loans, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}
