package ingestsvc

import (
	"context"

	"github.com/jmertens/storefront-media/internal/domain"
)

// IngestService defines the interface for the media ingestion pipeline and
// the lifecycle of the records it produces.
type IngestService interface {
	// Ingest validates, compresses and stores a single upload candidate for
	// the given owner. Returns the stored record, or one of the domain
	// validation errors, or a wrapped I/O error on storage failure.
	Ingest(ctx context.Context, candidate domain.UploadCandidate, owner string) (domain.StoredImageRecord, error)

	// IngestBatch ingests an ordered list of candidates with all-or-nothing
	// semantics: every candidate is validated and compressed before any
	// write happens, and objects already written for the batch are removed
	// if a later write fails. The order of the returned records matches the
	// input order and becomes the owner's display order.
	IngestBatch(ctx context.Context, candidates []domain.UploadCandidate, owner string) ([]domain.StoredImageRecord, error)

	// Images retrieves the owner's stored image records in display order.
	Images(ctx context.Context, owner string) ([]domain.StoredImageRecord, error)

	// UpdateImageMeta edits the mutable metadata (display position, alt
	// text) of a stored image. Returns ErrInvalidPosition for a negative
	// position, or ErrImageNotFound if the owner has no image with the
	// given filename.
	UpdateImageMeta(ctx context.Context, owner, filename string, position int, altText string) error

	// DeleteImages removes the owner's whole image set, records and stored
	// objects both.
	DeleteImages(ctx context.Context, owner string) error

	// MaxBatchSize returns the maximum number of candidates accepted per batch.
	MaxBatchSize() int
}
