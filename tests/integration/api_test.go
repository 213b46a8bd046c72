// tests/integration/api_test.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/borrowers"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/circulation"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/eventlog"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/inventory"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/notify"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/policy"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/reporting"
)

// newTestServer wires the full stack against in-memory stores, mirroring the
// production composition in cmd/server.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := policy.Config{
		MaxConcurrentLoans:   3,
		FineBlockThreshold:   0,
		DefaultBorrowDays:    14,
		RenewalExtensionDays: 7,
	}

	auditLog := eventlog.NewMemoryLog()
	inventorySvc := inventory.NewService(inventory.NewMemoryBookStore(), auditLog)
	borrowerSvc := borrowers.NewService(borrowers.NewMemoryStore())
	circulationSvc := circulation.NewService(
		circulation.NewMemoryLoanStore(), inventorySvc, borrowerSvc, cfg,
		circulation.SystemClock(), auditLog, notify.LogDispatcher{})
	reportingSvc := reporting.NewService(inventorySvc, circulationSvc)

	circulationHandler := circulation.NewHandler(circulationSvc)
	borrowerRouter := borrowers.NewHandler(borrowerSvc).Routes()
	circulationHandler.MountBorrowerRoutes(borrowerRouter)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Mount("/books", inventory.NewHandler(inventorySvc).Routes())
	router.Mount("/borrowers", borrowerRouter)
	router.Mount("/loans", circulationHandler.Routes())
	router.Mount("/reports", reporting.NewHandler(reportingSvc).Routes())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createBook(t *testing.T, client *http.Client, baseURL string, copies int) map[string]any {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/books", map[string]any{
		"isbn":              "9780340839935",
		"title":             "Weep Not, Child",
		"author":            "Ngugi wa Thiong'o",
		"total_copies":      copies,
		"max_borrow_days":   14,
		"max_renewals":      2,
		"is_reservable":     true,
		"daily_fine_amount": 0.50,
		"max_fine_amount":   50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var book map[string]any
	require.NoError(t, json.Unmarshal(body, &book))
	return book
}

func createBorrower(t *testing.T, client *http.Client, baseURL, barcode string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/borrowers", map[string]any{
		"barcode": barcode,
		"name":    "Wanjiku Kamau",
		"email":   barcode + "@school.example",
		"role":    "student",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var borrower map[string]any
	require.NoError(t, json.Unmarshal(body, &borrower))
	return borrower
}

func TestBorrowReturnFlow(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 2)
	borrower := createBorrower(t, client, server.URL, "B-5001")

	resp, body := doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": borrower["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var loan map[string]any
	require.NoError(t, json.Unmarshal(body, &loan))
	assert.Equal(t, "active", loan["status"])

	resp, body = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/books/%s", server.URL, book["id"]), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched map[string]any
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.EqualValues(t, 1, fetched["available_copies"])
	assert.EqualValues(t, 1, fetched["borrowed_copies"])

	resp, body = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/loans/%s/return", server.URL, loan["id"]),
		map[string]any{"condition": "good"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &loan))
	assert.Equal(t, "returned", loan["status"])

	// A second return of the same loan conflicts.
	resp, _ = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/loans/%s/return", server.URL, loan["id"]),
		map[string]any{"condition": "good"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/loans/%s/events", server.URL, loan["id"]), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "LoanCreated", events[0]["event_type"])
	assert.Equal(t, "LoanReturned", events[1]["event_type"])
}

func TestBorrowDenialSurfacesReason(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 1)
	first := createBorrower(t, client, server.URL, "B-5002")
	second := createBorrower(t, client, server.URL, "B-5003")

	resp, body := doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": first["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": second["id"],
		"book_id":     book["id"],
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var denial map[string]string
	require.NoError(t, json.Unmarshal(body, &denial))
	assert.Equal(t, "no copies available", denial["error"])
}

func TestRenewExtendsDueDate(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 1)
	borrower := createBorrower(t, client, server.URL, "B-5004")

	resp, body := doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": borrower["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var loan map[string]any
	require.NoError(t, json.Unmarshal(body, &loan))

	originalDue, err := time.Parse(time.RFC3339, loan["due_date"].(string))
	require.NoError(t, err)

	resp, body = doJSON(t, client, http.MethodPost,
		fmt.Sprintf("%s/loans/%s/renew", server.URL, loan["id"]), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &loan))

	renewedDue, err := time.Parse(time.RFC3339, loan["due_date"].(string))
	require.NoError(t, err)
	assert.True(t, renewedDue.Equal(originalDue.AddDate(0, 0, 7)),
		"expected due date %s, got %s", originalDue.AddDate(0, 0, 7), renewedDue)
	assert.EqualValues(t, 1, loan["renewal_count"])
}

func TestCopyCountManagement(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 2)
	borrower := createBorrower(t, client, server.URL, "B-5005")

	resp, body := doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": borrower["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// Shrinking below the copies on loan is rejected.
	resp, _ = doJSON(t, client, http.MethodPatch,
		fmt.Sprintf("%s/books/%s/copies", server.URL, book["id"]),
		map[string]any{"count": 0, "operation": "set"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodPatch,
		fmt.Sprintf("%s/books/%s/copies", server.URL, book["id"]),
		map[string]any{"count": 5, "operation": "set"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.EqualValues(t, 5, updated["total_copies"])
	assert.EqualValues(t, 4, updated["available_copies"])
}

func TestBorrowerStatusEndpoint(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 1)
	borrower := createBorrower(t, client, server.URL, "B-5006")

	resp, body := doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/borrowers/%s/status", server.URL, borrower["id"]), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var status map[string]any
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, true, status["can_borrow"])
	assert.EqualValues(t, 3, status["remaining_allowed"])

	resp, body = doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": borrower["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, client, http.MethodGet,
		fmt.Sprintf("%s/borrowers/%s/status?book_id=%s", server.URL, borrower["id"], book["id"]), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, false, status["can_borrow"])
	assert.Equal(t, "no copies available", status["message"])
}

func TestDashboardReflectsActivity(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	book := createBook(t, client, server.URL, 3)
	borrower := createBorrower(t, client, server.URL, "B-5007")

	resp, body := doJSON(t, client, http.MethodPost, server.URL+"/loans", map[string]any{
		"borrower_id": borrower["id"],
		"book_id":     book["id"],
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, client, http.MethodGet, server.URL+"/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dashboard map[string]any
	require.NoError(t, json.Unmarshal(body, &dashboard))
	assert.EqualValues(t, 1, dashboard["total_books"])
	assert.EqualValues(t, 3, dashboard["total_copies"])
	assert.EqualValues(t, 1, dashboard["active_loans"])
	assert.EqualValues(t, 1, dashboard["borrowed_copies"])
}

func TestValidationRejectsBadPayloads(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	// Missing required fields.
	resp, _ := doJSON(t, client, http.MethodPost, server.URL+"/books", map[string]any{
		"title": "No ISBN",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Unknown loan id.
	resp, _ = doJSON(t, client, http.MethodGet,
		server.URL+"/loans/2e9b7cb7-8cd7-4b7e-9f0a-0f3f36b3c001", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed id.
	resp, _ = doJSON(t, client, http.MethodGet, server.URL+"/loans/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
