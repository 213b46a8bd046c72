// internal/circulation/handler.go
package circulation

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/borrowers"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/httpx"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/inventory"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/policy"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes serves the /loans surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleBorrow)
	r.Get("/", h.handleListLoans)
	r.Get("/{id}", h.handleGetLoan)
	r.Post("/{id}/renew", h.handleRenew)
	r.Post("/{id}/return", h.handleReturn)
	r.Post("/{id}/payments", h.handlePayFine)
	r.Post("/{id}/waivers", h.handleWaiveFine)
	r.Get("/{id}/fine", h.handleCurrentFine)
	r.Get("/{id}/events", h.handleLoanEvents)
	return r
}

// MountBorrowerRoutes adds the loan-derived borrower reads onto the
// /borrowers surface.
func (h *Handler) MountBorrowerRoutes(r chi.Router) {
	r.Get("/{id}/status", h.handleBorrowingStatus)
	r.Get("/{id}/loans", h.handleBorrowerLoans)
}

type borrowRequest struct {
	BorrowerID      uuid.UUID  `json:"borrower_id" validate:"required"`
	BookID          uuid.UUID  `json:"book_id" validate:"required"`
	DueDate         *time.Time `json:"due_date"`
	FromReservation bool       `json:"from_reservation"`
	Notes           string     `json:"notes"`
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	loan, err := h.service.Borrow(r.Context(), BorrowParams{
		BorrowerID:      req.BorrowerID,
		BookID:          req.BookID,
		DueDate:         req.DueDate,
		FromReservation: req.FromReservation,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("overdue") == "true" {
		overdue, err := h.service.OverdueLoans(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, overdue)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loans)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loan)
}

type renewRequest struct {
	DueDate *time.Time `json:"due_date"`
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	var req renewRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	loan, err := h.service.Renew(r.Context(), id, req.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loan)
}

type returnRequest struct {
	Condition string `json:"condition" validate:"omitempty,oneof=good fair poor damaged"`
	Notes     string `json:"notes"`
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	var req returnRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	loan, err := h.service.Return(r.Context(), id, req.Condition, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loan)
}

type fineRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) handlePayFine(w http.ResponseWriter, r *http.Request) {
	h.handleFineSettlement(w, r, h.service.PayFine)
}

func (h *Handler) handleWaiveFine(w http.ResponseWriter, r *http.Request) {
	h.handleFineSettlement(w, r, h.service.WaiveFine)
}

func (h *Handler) handleFineSettlement(w http.ResponseWriter, r *http.Request, settle func(ctx context.Context, loanID uuid.UUID, amount float64) (*Loan, error)) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	var req fineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	loan, err := settle(r.Context(), id, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleCurrentFine(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}
	fine, err := h.service.CurrentFine(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]float64{"fine_amount": fine})
}

func (h *Handler) handleLoanEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoanID(w, r)
	if !ok {
		return
	}
	events, err := h.service.LoanEvents(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleBorrowingStatus(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid borrower ID")
		return
	}

	var bookID *uuid.UUID
	if raw := r.URL.Query().Get("book_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid book ID")
			return
		}
		bookID = &id
	}

	status, err := h.service.BorrowingStatus(r.Context(), borrowerID, bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleBorrowerLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid borrower ID")
		return
	}

	loans, err := h.service.ListLoans(r.Context(), LoanFilter{BorrowerID: &borrowerID})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loans)
}

func filterFromQuery(r *http.Request) (LoanFilter, error) {
	var filter LoanFilter
	q := r.URL.Query()

	if raw := q.Get("borrower_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid borrower_id")
		}
		filter.BorrowerID = &id
	}
	if raw := q.Get("book_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid book_id")
		}
		filter.BookID = &id
	}
	if status := q.Get("status"); status != "" {
		filter.Status = status
	}
	return filter, nil
}

func parseLoanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid loan ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var borrowDenied *BorrowingDeniedError
	var renewalDenied *RenewalDeniedError
	var invariantErr *inventory.InvariantError

	switch {
	case errors.As(err, &borrowDenied):
		httpx.WriteError(w, http.StatusConflict, borrowDenied.Reason)
	case errors.As(err, &renewalDenied):
		httpx.WriteError(w, http.StatusConflict, renewalDenied.Reason)
	case errors.As(err, &invariantErr):
		log.Printf("ALERT: %v", invariantErr)
		httpx.WriteError(w, http.StatusInternalServerError, invariantErr.Error())
	case errors.Is(err, ErrAlreadyReturned), errors.Is(err, ErrStaleLoan):
		// A lost renew race is a conflict for the caller to retry, not a
		// server fault.
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrLoanNotFound),
		errors.Is(err, inventory.ErrBookNotFound),
		errors.Is(err, borrowers.ErrBorrowerNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidFineAmount), errors.Is(err, policy.ErrInvalidDueDate):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
