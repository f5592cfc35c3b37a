package record

import (
	"context"

	"github.com/jmertens/storefront-media/internal/domain"
)

// Repository defines the interface for stored-image record persistence.
type Repository interface {
	// Save adds a new record.
	// Returns ErrImageAlreadyExists if the owner already has a record with
	// the same filename.
	Save(ctx context.Context, rec domain.StoredImageRecord) error

	// ListByOwner retrieves all records of an owner ordered by position.
	ListByOwner(ctx context.Context, owner string) ([]domain.StoredImageRecord, error)

	// UpdateMeta updates the mutable fields (position, alt text) of a record.
	// Returns ErrImageNotFound if no matching record exists.
	UpdateMeta(ctx context.Context, owner, filename string, position int, altText string) error

	// Delete removes a single record.
	// Returns ErrImageNotFound if no matching record exists.
	Delete(ctx context.Context, owner, filename string) error

	// DeleteByOwner removes all records of an owner.
	DeleteByOwner(ctx context.Context, owner string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
