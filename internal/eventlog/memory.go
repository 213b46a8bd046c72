// internal/eventlog/memory.go
package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLog is an in-process Log used by tests and the memory storage mode.
type MemoryLog struct {
	mu      sync.Mutex
	nextID  int64
	streams map[uuid.UUID][]Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{streams: make(map[uuid.UUID][]Event)}
}

func (l *MemoryLog) Append(_ context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[aggregateID]
	if len(stream) != expectedVersion {
		return ErrVersionConflict
	}

	for i, event := range events {
		l.nextID++
		event.ID = l.nextID
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = time.Now().UTC()
		stream = append(stream, event)
	}
	l.streams[aggregateID] = stream
	return nil
}

func (l *MemoryLog) History(_ context.Context, aggregateID uuid.UUID) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stream := l.streams[aggregateID]
	out := make([]Event, len(stream))
	copy(out, stream)
	return out, nil
}

func (l *MemoryLog) CurrentVersion(_ context.Context, aggregateID uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.streams[aggregateID]), nil
}
