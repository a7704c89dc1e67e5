// Package eventstore journals document sessions in SQLite.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store. A zero Timestamp means now.
	Append(ctx context.Context, e Event) error

	// GetBySession retrieves all events of a document session.
	GetBySession(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Recent retrieves the newest events, oldest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
