// Package store persists observability events so routing outcomes can
// be inspected after the fact.
package store

import (
	"context"

	"github.com/promptroute/promptroute/types"
)

// Store defines the persistence interface for the event sink.
type Store interface {
	// InsertEvent records one completed request event.
	InsertEvent(ctx context.Context, ev types.ObservabilityEvent) error

	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit, offset int) ([]types.ObservabilityEvent, error)

	// CountEvents returns total and failed event counts.
	CountEvents(ctx context.Context) (total, failed int64, err error)

	// Schema lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
