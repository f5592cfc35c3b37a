package ingestsvc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"regexp"
	"sort"
	"testing"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/repo/object"
	"github.com/jmertens/storefront-media/internal/repo/record"
	"github.com/jmertens/storefront-media/internal/svc/imagesvc"

	. "github.com/jmertens/storefront-media/internal/svc/ingestsvc"
)

var errStorageBroken = errors.New("storage broken")

// mockObjectStore implements object.Store in memory. failOnWrite selects a
// zero-based WriteObject call to fail at; -1 disables failure injection.
type mockObjectStore struct {
	objects     map[string][]byte
	containers  map[string]bool
	failOnWrite int
	writes      int
}

var _ object.Store = (*mockObjectStore)(nil)

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		objects:     make(map[string][]byte),
		containers:  make(map[string]bool),
		failOnWrite: -1,
	}
}

func (s *mockObjectStore) EnsureContainer(_ context.Context, owner string) error {
	s.containers[owner] = true

	return nil
}

func (s *mockObjectStore) WriteObject(_ context.Context, owner, name string, data []byte) (string, error) {
	defer func() { s.writes++ }()

	if s.failOnWrite >= 0 && s.writes == s.failOnWrite {
		return "", errStorageBroken
	}

	s.objects[owner+"/"+name] = bytes.Clone(data)

	return owner + "/" + name, nil
}

func (s *mockObjectStore) RemoveObject(_ context.Context, owner, name string) error {
	delete(s.objects, owner+"/"+name)

	return nil
}

func (s *mockObjectStore) RemoveContainer(_ context.Context, owner string) error {
	delete(s.containers, owner)

	for key := range s.objects {
		if len(key) > len(owner) && key[:len(owner)+1] == owner+"/" {
			delete(s.objects, key)
		}
	}

	return nil
}

// mockRecordRepository implements record.Repository in memory. failOnSave
// selects a zero-based Save call to fail at; -1 disables failure injection.
type mockRecordRepository struct {
	records    []domain.StoredImageRecord
	failOnSave int
	saves      int
}

var _ record.Repository = (*mockRecordRepository)(nil)

func newMockRecordRepository() *mockRecordRepository {
	return &mockRecordRepository{failOnSave: -1}
}

func (r *mockRecordRepository) Save(_ context.Context, rec domain.StoredImageRecord) error {
	defer func() { r.saves++ }()

	if r.failOnSave >= 0 && r.saves == r.failOnSave {
		return errStorageBroken
	}

	for _, existing := range r.records {
		if existing.Owner == rec.Owner && existing.Filename == rec.Filename {
			return domain.ErrImageAlreadyExists
		}
	}

	r.records = append(r.records, rec)

	return nil
}

func (r *mockRecordRepository) ListByOwner(_ context.Context, owner string) ([]domain.StoredImageRecord, error) {
	var records []domain.StoredImageRecord

	for _, rec := range r.records {
		if rec.Owner == owner {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})

	return records, nil
}

func (r *mockRecordRepository) UpdateMeta(_ context.Context, owner, filename string, position int, altText string) error {
	for i, rec := range r.records {
		if rec.Owner == owner && rec.Filename == filename {
			r.records[i].Position = position
			r.records[i].AltText = altText

			return nil
		}
	}

	return fmt.Errorf("%w: %s/%s", domain.ErrImageNotFound, owner, filename)
}

func (r *mockRecordRepository) Delete(_ context.Context, owner, filename string) error {
	for i, rec := range r.records {
		if rec.Owner == owner && rec.Filename == filename {
			r.records = append(r.records[:i], r.records[i+1:]...)

			return nil
		}
	}

	return fmt.Errorf("%w: %s/%s", domain.ErrImageNotFound, owner, filename)
}

func (r *mockRecordRepository) DeleteByOwner(_ context.Context, owner string) error {
	kept := r.records[:0]

	for _, rec := range r.records {
		if rec.Owner != owner {
			kept = append(kept, rec)
		}
	}

	r.records = kept

	return nil
}

func (r *mockRecordRepository) Close() error { return nil }

func newTestService(store object.Store, records record.Repository) *PipelineIngestService {
	validator := imagesvc.NewValidator(imagesvc.UploadPolicy{
		MaxUploadSize:     1 << 20,
		MinDimension:      10,
		MaxDimension:      1000,
		ScanWindow:        1024,
		AllowedExtensions: []string{"jpg", "jpeg", "png"},
		DeniedExtensions:  []string{"exe"},
	})

	compressor := imagesvc.NewCompressor(imagesvc.CompressionPolicy{
		MaxWidth:       100,
		MaxHeight:      100,
		TargetBytes:    1 << 20,
		InitialQuality: 85,
		QualityFloor:   20,
		QualityStep:    10,
		Interpolator:   "catmullrom",
	})

	return NewPipelineIngestService(validator, compressor, store, records, IngestConfig{
		MaxBatchSize: 5,
	})
}

func makeJPEGCandidate(t *testing.T, filename string, width, height int) domain.UploadCandidate {
	t.Helper()

	bitmap := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := range height {
		for x := range width {
			bitmap.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x*31 + y*17) % 256),
				G: uint8((x*13 + y*41) % 256),
				B: uint8((x * y) % 256),
				A: 255,
			})
		}
	}

	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, bitmap, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	return domain.NewUploadCandidate(buffer.Bytes(), filename)
}

var storedFilenameShape = regexp.MustCompile(`^\d+_[0-9a-z]+\.jpg$`)

func TestPipelineIngestService_Ingest(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	rec, err := svc.Ingest(context.TODO(), makeJPEGCandidate(t, "photo.jpg", 40, 30), "listing-1")
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if rec.Owner != "listing-1" {
		t.Errorf("Owner = %q, want %q", rec.Owner, "listing-1")
	}

	if !storedFilenameShape.MatchString(rec.Filename) {
		t.Errorf("Filename = %q does not match expected shape", rec.Filename)
	}

	if rec.Path != "listing-1/"+rec.Filename {
		t.Errorf("Path = %q, want %q", rec.Path, "listing-1/"+rec.Filename)
	}

	if rec.Position != 0 {
		t.Errorf("Position = %d, want 0", rec.Position)
	}

	if !store.containers["listing-1"] {
		t.Error("container was not ensured")
	}

	if _, ok := store.objects[rec.Path]; !ok {
		t.Errorf("object %q was not written", rec.Path)
	}

	if len(records.records) != 1 {
		t.Errorf("repository holds %d records, want 1", len(records.records))
	}
}

func TestPipelineIngestService_Ingest_RejectionWritesNothing(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	candidate := domain.NewUploadCandidate([]byte("not an image at all"), "photo.jpg")

	if _, err := svc.Ingest(context.TODO(), candidate, "listing-1"); !errors.Is(err, domain.ErrMIMEMismatch) {
		t.Fatalf("Ingest() error = %v, want %v", err, domain.ErrMIMEMismatch)
	}

	if store.writes != 0 {
		t.Errorf("store saw %d writes, want 0", store.writes)
	}

	if len(records.records) != 0 {
		t.Errorf("repository holds %d records, want 0", len(records.records))
	}
}

func TestPipelineIngestService_IngestBatch(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	candidates := []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
		makeJPEGCandidate(t, "c.jpg", 50, 50),
	}

	stored, err := svc.IngestBatch(context.TODO(), candidates, "listing-1")
	if err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	if len(stored) != 3 {
		t.Fatalf("IngestBatch() returned %d records, want 3", len(stored))
	}

	for i, rec := range stored {
		if rec.Position != i {
			t.Errorf("stored[%d].Position = %d, want %d", i, rec.Position, i)
		}

		if _, ok := store.objects[rec.Path]; !ok {
			t.Errorf("object %q was not written", rec.Path)
		}
	}

	// Generated names must not collide within the batch.
	if len(store.objects) != 3 {
		t.Errorf("store holds %d objects, want 3", len(store.objects))
	}
}

func TestPipelineIngestService_IngestBatch_Empty(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	svc := newTestService(store, newMockRecordRepository())

	stored, err := svc.IngestBatch(context.TODO(), nil, "listing-1")
	if err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	if len(stored) != 0 {
		t.Errorf("IngestBatch() returned %d records, want 0", len(stored))
	}

	if store.writes != 0 {
		t.Errorf("store saw %d writes, want 0", store.writes)
	}
}

func TestPipelineIngestService_IngestBatch_OverCap(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	svc := newTestService(store, newMockRecordRepository())

	candidates := make([]domain.UploadCandidate, svc.MaxBatchSize()+1)
	for i := range candidates {
		candidates[i] = makeJPEGCandidate(t, "photo.jpg", 40, 30)
	}

	if _, err := svc.IngestBatch(context.TODO(), candidates, "listing-1"); !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Fatalf("IngestBatch() error = %v, want %v", err, domain.ErrBatchTooLarge)
	}

	if store.writes != 0 {
		t.Errorf("store saw %d writes, want 0", store.writes)
	}
}

func TestPipelineIngestService_IngestBatch_OneBadCandidateWritesNothing(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	candidates := []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
		domain.NewUploadCandidate([]byte("definitely not an image"), "c.jpg"),
	}

	if _, err := svc.IngestBatch(context.TODO(), candidates, "listing-1"); !errors.Is(err, domain.ErrMIMEMismatch) {
		t.Fatalf("IngestBatch() error = %v, want %v", err, domain.ErrMIMEMismatch)
	}

	if store.writes != 0 {
		t.Errorf("store saw %d writes, want 0", store.writes)
	}

	if len(records.records) != 0 {
		t.Errorf("repository holds %d records, want 0", len(records.records))
	}
}

func TestPipelineIngestService_IngestBatch_PositionsContinueAfterExisting(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	if _, err := svc.IngestBatch(context.TODO(), []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
	}, "listing-1"); err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	stored, err := svc.IngestBatch(context.TODO(), []domain.UploadCandidate{
		makeJPEGCandidate(t, "c.jpg", 50, 50),
	}, "listing-1")
	if err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	if len(stored) != 1 || stored[0].Position != 2 {
		t.Errorf("stored[0].Position = %d, want 2", stored[0].Position)
	}
}

func TestPipelineIngestService_IngestBatch_WriteFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	store.failOnWrite = 1

	records := newMockRecordRepository()
	svc := newTestService(store, records)

	candidates := []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
	}

	if _, err := svc.IngestBatch(context.TODO(), candidates, "listing-1"); !errors.Is(err, errStorageBroken) {
		t.Fatalf("IngestBatch() error = %v, want %v", err, errStorageBroken)
	}

	if len(store.objects) != 0 {
		t.Errorf("store holds %d objects after rollback, want 0", len(store.objects))
	}

	if len(records.records) != 0 {
		t.Errorf("repository holds %d records after rollback, want 0", len(records.records))
	}
}

func TestPipelineIngestService_IngestBatch_SaveFailureRollsBack(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()

	records := newMockRecordRepository()
	records.failOnSave = 1

	svc := newTestService(store, records)

	candidates := []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
	}

	if _, err := svc.IngestBatch(context.TODO(), candidates, "listing-1"); !errors.Is(err, errStorageBroken) {
		t.Fatalf("IngestBatch() error = %v, want %v", err, errStorageBroken)
	}

	if len(store.objects) != 0 {
		t.Errorf("store holds %d objects after rollback, want 0", len(store.objects))
	}

	if len(records.records) != 0 {
		t.Errorf("repository holds %d records after rollback, want 0", len(records.records))
	}
}

func TestPipelineIngestService_Images(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	stored, err := svc.IngestBatch(context.TODO(), []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
	}, "listing-1")
	if err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	images, err := svc.Images(context.TODO(), "listing-1")
	if err != nil {
		t.Fatalf("Images() error: %v", err)
	}

	if len(images) != len(stored) {
		t.Fatalf("Images() returned %d records, want %d", len(images), len(stored))
	}

	for i := range images {
		if images[i] != stored[i] {
			t.Errorf("images[%d] = %+v, want %+v", i, images[i], stored[i])
		}
	}
}

func TestPipelineIngestService_UpdateImageMeta(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	rec, err := svc.Ingest(context.TODO(), makeJPEGCandidate(t, "a.jpg", 40, 30), "listing-1")
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}

	if err := svc.UpdateImageMeta(context.TODO(), "listing-1", rec.Filename, 4, "front view"); err != nil {
		t.Fatalf("UpdateImageMeta() error: %v", err)
	}

	images, err := svc.Images(context.TODO(), "listing-1")
	if err != nil {
		t.Fatalf("Images() error: %v", err)
	}

	if images[0].Position != 4 || images[0].AltText != "front view" {
		t.Errorf("record = position %d, altText %q; want position 4, altText %q",
			images[0].Position, images[0].AltText, "front view")
	}

	err = svc.UpdateImageMeta(context.TODO(), "listing-1", "missing.jpg", 0, "")
	if !errors.Is(err, domain.ErrImageNotFound) {
		t.Errorf("UpdateImageMeta() missing error = %v, want %v", err, domain.ErrImageNotFound)
	}

	err = svc.UpdateImageMeta(context.TODO(), "listing-1", rec.Filename, -1, "")
	if !errors.Is(err, domain.ErrInvalidPosition) {
		t.Errorf("UpdateImageMeta() negative position error = %v, want %v", err, domain.ErrInvalidPosition)
	}
}

func TestPipelineIngestService_DeleteImages(t *testing.T) {
	t.Parallel()

	store := newMockObjectStore()
	records := newMockRecordRepository()
	svc := newTestService(store, records)

	if _, err := svc.IngestBatch(context.TODO(), []domain.UploadCandidate{
		makeJPEGCandidate(t, "a.jpg", 40, 30),
		makeJPEGCandidate(t, "b.jpg", 30, 40),
	}, "listing-1"); err != nil {
		t.Fatalf("IngestBatch() error: %v", err)
	}

	if err := svc.DeleteImages(context.TODO(), "listing-1"); err != nil {
		t.Fatalf("DeleteImages() error: %v", err)
	}

	images, err := svc.Images(context.TODO(), "listing-1")
	if err != nil {
		t.Fatalf("Images() error: %v", err)
	}

	if len(images) != 0 {
		t.Errorf("Images() returned %d records after delete, want 0", len(images))
	}

	if len(store.objects) != 0 {
		t.Errorf("store holds %d objects after delete, want 0", len(store.objects))
	}

	if store.containers["listing-1"] {
		t.Error("container still present after delete")
	}
}
