package ingestsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/infra/logging"
	"github.com/jmertens/storefront-media/internal/repo/object"
	"github.com/jmertens/storefront-media/internal/repo/record"
	"github.com/jmertens/storefront-media/internal/svc/imagesvc"
)

// PipelineIngestService implements IngestService by composing the validator,
// the compressor, an object store and a record repository into a synchronous
// pipeline. It holds no mutable state across calls; per-owner serialization
// of concurrent batches is the caller's responsibility.
type PipelineIngestService struct {
	validator  *imagesvc.Validator
	compressor *imagesvc.Compressor
	store      object.Store
	records    record.Repository
	cfg        IngestConfig
	log        logging.Logger
}

var _ IngestService = (*PipelineIngestService)(nil)

// NewPipelineIngestService creates a PipelineIngestService from its
// collaborators. The validator and compressor carry their own policies; the
// service only adds batch orchestration on top.
func NewPipelineIngestService(
	validator *imagesvc.Validator,
	compressor *imagesvc.Compressor,
	store object.Store,
	records record.Repository,
	cfg IngestConfig,
) *PipelineIngestService {
	return &PipelineIngestService{
		validator:  validator,
		compressor: compressor,
		store:      store,
		records:    records,
		cfg:        cfg,
		log:        logging.GetLogger("svc.ingestsvc.pipeline_ingest_service"),
	}
}

// MaxBatchSize implements IngestService.MaxBatchSize.
func (svc *PipelineIngestService) MaxBatchSize() int {
	return svc.cfg.MaxBatchSize
}

// Ingest implements IngestService.Ingest as a batch of one.
func (svc *PipelineIngestService) Ingest(
	ctx context.Context,
	candidate domain.UploadCandidate,
	owner string,
) (domain.StoredImageRecord, error) {
	records, err := svc.IngestBatch(ctx, []domain.UploadCandidate{candidate}, owner)
	if err != nil {
		return domain.StoredImageRecord{}, err
	}

	return records[0], nil
}

// pendingImage is a candidate that survived validation and compression and
// is waiting for its write.
type pendingImage struct {
	name string
	data []byte
}

// IngestBatch implements IngestService.IngestBatch.
func (svc *PipelineIngestService) IngestBatch(
	ctx context.Context,
	candidates []domain.UploadCandidate,
	owner string,
) (stored []domain.StoredImageRecord, err error) {
	log := svc.log.With(logging.Group("batch",
		"owner", owner,
		"count", len(candidates),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "batch ingest failed", "error", err)
		} else {
			log.DebugContext(ctx, "batch ingested", "stored", len(stored))
		}
	}()

	if len(candidates) == 0 {
		return nil, nil
	}

	if len(candidates) > svc.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d exceeds %d", domain.ErrBatchTooLarge, len(candidates), svc.cfg.MaxBatchSize)
	}

	// Validate and compress everything before touching the store, so a
	// rejection anywhere in the batch writes nothing.
	pending, err := svc.preparePending(ctx, candidates)
	if err != nil {
		return nil, err
	}

	existing, err := svc.records.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	if err := svc.store.EnsureContainer(ctx, owner); err != nil {
		return nil, fmt.Errorf("ensure container: %w", err)
	}

	stored, err = svc.writePending(ctx, pending, owner, len(existing))
	if err != nil {
		return nil, err
	}

	return stored, nil
}

func (svc *PipelineIngestService) preparePending(
	ctx context.Context,
	candidates []domain.UploadCandidate,
) ([]pendingImage, error) {
	pending := make([]pendingImage, 0, len(candidates))

	for _, candidate := range candidates {
		info, err := svc.validator.Validate(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("validate %q: %w", candidate.Filename, err)
		}

		compressed := svc.compressor.Compress(ctx, candidate.Data, info)

		pending = append(pending, pendingImage{
			name: object.UniqueName(imagesvc.ExtensionForType(compressed.MIMEType)),
			data: compressed.Data,
		})
	}

	return pending, nil
}

// writePending writes every prepared image and its record, assigning display
// positions after the owner's existing images. A failure mid-way removes the
// batch's already-written objects and records before returning.
func (svc *PipelineIngestService) writePending(
	ctx context.Context,
	pending []pendingImage,
	owner string,
	basePosition int,
) ([]domain.StoredImageRecord, error) {
	written := make([]domain.StoredImageRecord, 0, len(pending))

	for i, img := range pending {
		path, err := svc.store.WriteObject(ctx, owner, img.name, img.data)
		if err != nil {
			svc.discardWritten(ctx, owner, written)

			return nil, fmt.Errorf("write object %q: %w", img.name, err)
		}

		rec := domain.StoredImageRecord{
			Owner:     owner,
			Filename:  img.name,
			Path:      path,
			Position:  basePosition + i,
			AltText:   "",
			CreatedAt: time.Now().Unix(),
		}

		if err := svc.records.Save(ctx, rec); err != nil {
			if removeErr := svc.store.RemoveObject(ctx, owner, img.name); removeErr != nil {
				svc.log.WarnContext(ctx, "orphaned object left behind", "error", removeErr)
			}

			svc.discardWritten(ctx, owner, written)

			return nil, fmt.Errorf("save record %q: %w", img.name, err)
		}

		written = append(written, rec)
	}

	return written, nil
}

// discardWritten rolls back the objects and records a failed batch already
// produced. Cleanup failures are logged, not returned: the batch error that
// triggered the rollback is the one the caller needs.
func (svc *PipelineIngestService) discardWritten(
	ctx context.Context,
	owner string,
	written []domain.StoredImageRecord,
) {
	for _, rec := range written {
		if err := svc.records.Delete(ctx, rec.Owner, rec.Filename); err != nil {
			svc.log.WarnContext(ctx, "discard record failed", "error", err,
				logging.Group("record", "owner", rec.Owner, "filename", rec.Filename))
		}

		if err := svc.store.RemoveObject(ctx, owner, rec.Filename); err != nil {
			svc.log.WarnContext(ctx, "discard object failed", "error", err,
				logging.Group("object", "owner", owner, "name", rec.Filename))
		}
	}
}

// Images implements IngestService.Images.
func (svc *PipelineIngestService) Images(
	ctx context.Context,
	owner string,
) ([]domain.StoredImageRecord, error) {
	records, err := svc.records.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	return records, nil
}

// UpdateImageMeta implements IngestService.UpdateImageMeta.
func (svc *PipelineIngestService) UpdateImageMeta(
	ctx context.Context,
	owner, filename string,
	position int,
	altText string,
) (err error) {
	log := svc.log.With(logging.Group("record",
		"owner", owner,
		"filename", filename,
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image meta update failed", "error", err)
		} else {
			log.DebugContext(ctx, "image meta updated", "position", position)
		}
	}()

	if position < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidPosition, position)
	}

	if err := svc.records.UpdateMeta(ctx, owner, filename, position, altText); err != nil {
		return fmt.Errorf("update meta: %w", err)
	}

	return nil
}

// DeleteImages implements IngestService.DeleteImages.
func (svc *PipelineIngestService) DeleteImages(ctx context.Context, owner string) (err error) {
	log := svc.log.With(logging.Group("batch", "owner", owner))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image set delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "image set deleted")
		}
	}()

	if err := svc.records.DeleteByOwner(ctx, owner); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	if err := svc.store.RemoveContainer(ctx, owner); err != nil {
		return fmt.Errorf("remove container: %w", err)
	}

	return nil
}
