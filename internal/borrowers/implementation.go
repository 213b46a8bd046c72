// internal/borrowers/implementation.go
package borrowers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// service implements the Service interface.
type service struct {
	store Store
}

// NewService creates a new borrower registry service instance.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Register(ctx context.Context, params RegisterParams) (*Borrower, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	role := params.Role
	if role == "" {
		role = "student"
	}

	borrower := &Borrower{
		ID:       uuid.New(),
		Barcode:  params.Barcode,
		Name:     params.Name,
		Email:    params.Email,
		Role:     role,
		MaxLoans: params.MaxLoans,
		Status:   StatusActive,
	}
	if err := s.store.Create(ctx, borrower); err != nil {
		return nil, err
	}
	return borrower, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Borrower, error) {
	return s.store.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]*Borrower, error) {
	return s.store.List(ctx)
}

func (s *service) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) (*Borrower, error) {
	borrower, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if suspended {
		borrower.Status = StatusSuspended
	} else {
		borrower.Status = StatusActive
	}
	if err := s.store.Update(ctx, borrower); err != nil {
		return nil, err
	}
	return borrower, nil
}
