// internal/inventory/handler.go
package inventory

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/httpx"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleAddBook)
	r.Get("/", h.handleListBooks)
	r.Get("/{id}", h.handleGetBook)
	r.Delete("/{id}", h.handleRetireBook)
	r.Patch("/{id}/copies", h.handleSetTotalCopies)
	r.Post("/{id}/hold", h.handleHoldCopy)
	r.Delete("/{id}/hold", h.handleReleaseHold)
	return r
}

type addBookRequest struct {
	ISBN            string  `json:"isbn" validate:"required"`
	Barcode         string  `json:"barcode"`
	Title           string  `json:"title" validate:"required"`
	Author          string  `json:"author" validate:"required"`
	Publisher       string  `json:"publisher"`
	PublishedYear   int     `json:"published_year"`
	TotalCopies     int     `json:"total_copies" validate:"gte=0"`
	MaxBorrowDays   int     `json:"max_borrow_days" validate:"gte=0"`
	MaxRenewals     int     `json:"max_renewals" validate:"gte=0"`
	IsReservable    bool    `json:"is_reservable"`
	DailyFineAmount float64 `json:"daily_fine_amount" validate:"gte=0"`
	MaxFineAmount   float64 `json:"max_fine_amount" validate:"gte=0"`
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	book, err := h.service.AddBook(r.Context(), AddBookParams{
		ISBN:            req.ISBN,
		Barcode:         req.Barcode,
		Title:           req.Title,
		Author:          req.Author,
		Publisher:       req.Publisher,
		PublishedYear:   req.PublishedYear,
		TotalCopies:     req.TotalCopies,
		MaxBorrowDays:   req.MaxBorrowDays,
		MaxRenewals:     req.MaxRenewals,
		IsReservable:    req.IsReservable,
		DailyFineAmount: req.DailyFineAmount,
		MaxFineAmount:   req.MaxFineAmount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleRetireBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.RetireBook(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setCopiesRequest struct {
	Count     int    `json:"count" validate:"gte=0"`
	Operation string `json:"operation" validate:"required,oneof=add subtract set"`
}

func (h *Handler) handleSetTotalCopies(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req setCopiesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	book, err := h.service.SetTotalCopies(r.Context(), id, req.Count, CopyCountOp(req.Operation))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleHoldCopy(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	book, err := h.service.HoldCopyForReservation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	book, err := h.service.ReleaseReservedCopy(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var invariantErr *InvariantError
	switch {
	case errors.As(err, &invariantErr):
		// Bookkeeping is broken; alert loudly and answer 500.
		log.Printf("ALERT: %v", invariantErr)
		httpx.WriteError(w, http.StatusInternalServerError, invariantErr.Error())
	case errors.Is(err, ErrBookNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrCopiesOnLoan):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCopyCount), errors.Is(err, ErrNotReservable), errors.Is(err, ErrBookRetired):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
