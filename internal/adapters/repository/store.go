// Package repository persists logged runs and hands them back as history.
package repository

import (
	"context"

	"github.com/okian/trialstats/internal/domain/model"
)

// Filter narrows a history query. Zero fields match everything.
type Filter struct {
	TrackType   model.TrackType
	CharacterID string
}

// Store provides read/write access to logged runs.
type Store interface {
	// Save persists a new run. Returns ErrAlreadyExists if the id is taken.
	Save(ctx context.Context, run model.RunRecord) error

	// Get returns the run with the given id.
	// Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.RunRecord, error)

	// List returns the runs matching f ordered by run date, then by the
	// order they were saved.
	List(ctx context.Context, f Filter) ([]model.RunRecord, error)

	// Delete removes a run. Returns ErrNotFound if the id is unknown.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored runs.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying connection pool.
	Close() error
}
