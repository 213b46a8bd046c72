// internal/borrowers/domain.go
package borrowers

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBorrowerNotFound  = errors.New("borrower not found")
	ErrDuplicateBarcode  = errors.New("borrower barcode already registered")
	ErrBorrowerSuspended = errors.New("borrower is suspended")
)

// Borrower statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Borrower is a registered library patron (student or staff). MaxLoans is an
// optional per-borrower override of the configured loan cap; zero means the
// library default applies.
type Borrower struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Barcode   string    `json:"barcode" db:"barcode"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Role      string    `json:"role" db:"role"`
	MaxLoans  int       `json:"max_loans" db:"max_loans"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
