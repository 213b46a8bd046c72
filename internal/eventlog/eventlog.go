// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrVersionConflict = errors.New("version conflict: audit stream advanced concurrently")
	ErrInvalidVersion  = errors.New("invalid version number")
)

// Aggregate types recorded in the audit log.
const (
	AggregateBook = "book"
	AggregateLoan = "loan"
)

// Event is one immutable entry in the audit trail of an aggregate.
type Event struct {
	ID            int64           `json:"id" db:"id"`
	AggregateID   uuid.UUID       `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	EventType     string          `json:"event_type" db:"event_type"`
	EventData     json.RawMessage `json:"event_data" db:"event_data"`
	Version       int             `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Log is the append-only audit trail for lifecycle transitions. Appends are
// guarded by optimistic version checks per aggregate stream.
type Log interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error
	History(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
	CurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error)
}

var payloadJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Record marshals payload and appends a single event at the stream's next
// version. Used for audit entries where the caller holds no version itself.
func Record(ctx context.Context, log Log, aggregateID uuid.UUID, aggregateType, eventType string, payload any) error {
	data, err := payloadJSON.Marshal(payload)
	if err != nil {
		return err
	}
	version, err := log.CurrentVersion(ctx, aggregateID)
	if err != nil {
		return err
	}
	event := Event{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     data,
	}
	return log.Append(ctx, aggregateID, aggregateType, version, []Event{event})
}
