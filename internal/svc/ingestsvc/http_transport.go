package ingestsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/infra/logging"
	http_ "github.com/jmertens/storefront-media/internal/infra/transport/http"
)

var (
	ErrNoMultipartFiles = errors.New("no multipart files")
	ErrNoListingID      = errors.New("no listing ID")
	ErrNoFilename       = errors.New("no filename")
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MultipartFileName is the form field name for file uploads.
	// Default is "images".
	MultipartFileName string `env:"MULTIPART_FILE_NAME" default:"images"`

	// URLListingIDParam is the URL parameter name for the owning listing.
	// Default is "listing_id".
	URLListingIDParam string `env:"URL_LISTING_ID_PARAM" default:"listing_id"`

	// URLFilenameParam is the URL parameter name for a stored image filename.
	// Default is "filename".
	URLFilenameParam string `env:"URL_FILENAME_PARAM" default:"filename"`

	// MultipartFormMaxMemory is the maximum allowed memory for multipart form uploads.
	// Default is 10MB.
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_MEMORY" default:"10485760"`

	// MaxRequestBodySize caps the upload request body before any buffering
	// happens; an oversized body is rejected without being read in full.
	// Sized for a full batch of maximum-size uploads plus form overhead.
	// Default is 32MB.
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" default:"33554432"`
}

// HTTPTransport handles HTTP requests for the ingestion service.
// It provides endpoints for uploading, listing, editing and deleting a
// listing's images.
type HTTPTransport struct {
	ingestSvc IngestService
	log       logging.Logger
	cfg       HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport backed by the given IngestService.
func NewHTTPTransport(ingestSvc IngestService, cfg HTTPTransportConfig) *HTTPTransport {
	return &HTTPTransport{
		ingestSvc: ingestSvc,
		log:       logging.GetLogger("svc.ingestsvc.http_transport"),
		cfg:       cfg,
	}
}

// ServeHTTP implements http.Handler and sets up routes for the service:
// - POST /listings/{listing-id}/images: upload a batch of images
// - GET /listings/{listing-id}/images: list stored images in display order
// - PATCH /listings/{listing-id}/images/{filename}: edit position/alt text
// - DELETE /listings/{listing-id}/images: delete the whole image set.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("POST /listings/{%s}/images", ht.cfg.URLListingIDParam), ht.HandleUpload)
	mux.HandleFunc(fmt.Sprintf("GET /listings/{%s}/images", ht.cfg.URLListingIDParam), ht.HandleList)
	mux.HandleFunc(
		fmt.Sprintf("PATCH /listings/{%s}/images/{%s}", ht.cfg.URLListingIDParam, ht.cfg.URLFilenameParam),
		ht.HandleUpdateMeta,
	)
	mux.HandleFunc(fmt.Sprintf("DELETE /listings/{%s}/images", ht.cfg.URLListingIDParam), ht.HandleDelete)

	mux.ServeHTTP(w, r)
}

// HandleUpload processes image batch upload requests.
// Expects a multipart form with one or more files in the field matching
// MultipartFileName config; files are ingested in form order.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image upload failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "images uploaded")
		}
	}()

	listingID := r.PathValue(ht.cfg.URLListingIDParam)
	if listingID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoListingID
	}

	candidates, err := ht.readMultipartCandidates(w, r)
	if err != nil {
		status := http.StatusBadRequest

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}

		http.Error(w, http.StatusText(status), status)

		return err
	}

	records, err := ht.ingestSvc.IngestBatch(r.Context(), candidates, listingID)
	if err != nil {
		status := statusForError(err)
		http.Error(w, http.StatusText(status), status)

		return fmt.Errorf("ingest batch: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// readMultipartCandidates collects the uploaded files into candidates,
// preserving form order. The pipeline processes them strictly sequentially,
// so only one file is buffered ahead of validation at a time. The whole
// request body is capped at MaxRequestBodySize before parsing.
func (ht *HTTPTransport) readMultipartCandidates(
	w http.ResponseWriter,
	r *http.Request,
) ([]domain.UploadCandidate, error) {
	r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxRequestBodySize)

	if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File[ht.cfg.MultipartFileName]) == 0 {
		return nil, ErrNoMultipartFiles
	}

	fileHeaders := r.MultipartForm.File[ht.cfg.MultipartFileName]
	candidates := make([]domain.UploadCandidate, 0, len(fileHeaders))

	for _, fileHeader := range fileHeaders {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fileHeader.Filename, err)
		}

		buffer, err := io.ReadAll(file)
		_ = file.Close()

		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileHeader.Filename, err)
		}

		candidates = append(candidates, domain.NewUploadCandidate(buffer, fileHeader.Filename))
	}

	return candidates, nil
}

// HandleList returns the listing's stored images in display order.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image list failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "images listed")
		}
	}()

	listingID := r.PathValue(ht.cfg.URLListingIDParam)
	if listingID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoListingID
	}

	records, err := ht.ingestSvc.Images(r.Context(), listingID)
	if err != nil {
		status := statusForError(err)
		http.Error(w, http.StatusText(status), status)

		return fmt.Errorf("list images: %w", err)
	}

	if records == nil {
		records = []domain.StoredImageRecord{}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// imageMetaRequest is the PATCH body for metadata edits.
type imageMetaRequest struct {
	Position int    `json:"position"`
	AltText  string `json:"altText"`
}

// HandleUpdateMeta edits a stored image's display position and alt text.
func (ht *HTTPTransport) HandleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdateMeta(w, r)
}

func (ht *HTTPTransport) handleUpdateMeta(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image meta update failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "image meta updated")
		}
	}()

	listingID := r.PathValue(ht.cfg.URLListingIDParam)
	if listingID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoListingID
	}

	filename := r.PathValue(ht.cfg.URLFilenameParam)
	if filename == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoFilename
	}

	var meta imageMetaRequest
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("decode body: %w", err)
	}

	if err := ht.ingestSvc.UpdateImageMeta(r.Context(), listingID, filename, meta.Position, meta.AltText); err != nil {
		status := statusForError(err)
		http.Error(w, http.StatusText(status), status)

		return fmt.Errorf("update meta: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleDelete removes a listing's whole image set.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "image set delete failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "image set deleted")
		}
	}()

	listingID := r.PathValue(ht.cfg.URLListingIDParam)
	if listingID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return ErrNoListingID
	}

	if err := ht.ingestSvc.DeleteImages(r.Context(), listingID); err != nil {
		status := statusForError(err)
		http.Error(w, http.StatusText(status), status)

		return fmt.Errorf("delete images: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// statusForError maps pipeline errors to HTTP status codes. Validation
// rejections are client errors the user can act on; anything unrecognized is
// treated as an internal failure and never echoed back in detail.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUploadTooLarge),
		errors.Is(err, domain.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrEmptyUpload),
		errors.Is(err, domain.ErrDangerousExtension),
		errors.Is(err, domain.ErrUnsupportedExtension),
		errors.Is(err, domain.ErrSuspiciousContent),
		errors.Is(err, domain.ErrMIMEMismatch),
		errors.Is(err, domain.ErrCorruptImage),
		errors.Is(err, domain.ErrDimensionTooSmall),
		errors.Is(err, domain.ErrDimensionTooLarge),
		errors.Is(err, domain.ErrInvalidPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
