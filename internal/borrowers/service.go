// internal/borrowers/service.go
package borrowers

import (
	"context"

	"github.com/google/uuid"
)

// RegisterParams carries the fields needed to register a borrower.
type RegisterParams struct {
	Barcode  string
	Name     string
	Email    string
	Role     string
	MaxLoans int
}

// Service defines the interface for the borrower registry.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*Borrower, error)
	Get(ctx context.Context, id uuid.UUID) (*Borrower, error)
	List(ctx context.Context) ([]*Borrower, error)
	SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) (*Borrower, error)
}
