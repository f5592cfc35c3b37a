package object

import (
	"context"
)

// Store is the capability interface for durable image object storage.
// Implementations must keep returned paths relative and stable: callers
// reconstruct public URLs from them.
type Store interface {
	// EnsureContainer creates the owner's container if absent.
	// Idempotent and safe for concurrent or retried calls on the same owner.
	EnsureContainer(ctx context.Context, owner string) error

	// WriteObject durably writes data under the owner's container with the
	// given name and returns the relative path of the stored object.
	// On failure no partial object is left behind.
	WriteObject(ctx context.Context, owner, name string, data []byte) (string, error)

	// RemoveObject deletes a single object. Removing an object that does
	// not exist is not an error.
	RemoveObject(ctx context.Context, owner, name string) error

	// RemoveContainer deletes the owner's container and every object in it.
	RemoveContainer(ctx context.Context, owner string) error
}
