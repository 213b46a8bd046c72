// internal/notify/notify.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
)

// Notification kinds dispatched by the loan engine.
const (
	KindLoanCreated     = "loan_created"
	KindLoanRenewed     = "loan_renewed"
	KindLoanReturned    = "loan_returned"
	KindOverdueReminder = "overdue_reminder"
)

// Notification is a message for a borrower. Delivery (email/SMS) is the
// downstream gateway's concern.
type Notification struct {
	BorrowerID uuid.UUID `json:"borrower_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

// Dispatcher delivers notifications. Callers treat dispatch as
// fire-and-forget: a failed delivery never rolls back a loan transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WebhookDispatcher posts notifications to a gateway URL. A circuit breaker
// keeps a flapping gateway from slowing down loan transitions.
type WebhookDispatcher struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewWebhookDispatcher(url string) *WebhookDispatcher {
	settings := gobreaker.Settings{
		Name:    "notification-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("notify: breaker %s changed state %s -> %s", name, from, to)
		},
	}
	return &WebhookDispatcher{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, n Notification) error {
	_, err := d.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("notification gateway answered %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// LogDispatcher writes notifications to the process log. Default when no
// gateway is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	log.Printf("notify: [%s] borrower %s: %s", n.Kind, n.BorrowerID, n.Message)
	return nil
}
