// Package emitter raises change notifications from the snapshot pipeline.
// Delivery is fire-and-forget and best-effort: the pipeline never depends
// on a subscriber consuming an event.
package emitter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/holdings/internal/core/domain"
)

// EventType identifies what changed.
type EventType string

const (
	EventBalancesChanged     EventType = "balances_changed"
	EventBlockMappingChanged EventType = "block_mapping_changed"
	EventSnapshotWriteFailed EventType = "snapshot_write_failed"
)

// Event is one change notification.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	NetworkID string      `json:"network_id"`
	Date      domain.Date `json:"date,omitempty"`
	Wallets   int         `json:"wallets,omitempty"`
	Error     string      `json:"error,omitempty"`
	At        time.Time   `json:"at"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(t EventType, networkID string, date domain.Date) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		NetworkID: networkID,
		Date:      date,
		At:        time.Now().UTC(),
	}
}

// Emitter delivers change notifications to interested subscribers.
type Emitter interface {
	Emit(ctx context.Context, event *Event)
	Close() error
}

// MultiEmitter fans one event out to several emitters.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, event *Event) {
	for _, e := range m {
		e.Emit(ctx, event)
	}
}

func (m MultiEmitter) Close() error {
	var firstErr error
	for _, e := range m {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, event *Event) {}
func (NopEmitter) Close() error                           { return nil }
