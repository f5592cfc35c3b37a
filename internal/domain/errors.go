package domain

import "errors"

// Validation errors form a closed set; each one is terminal for the
// candidate it was raised for and maps to a specific user-facing message.
var (
	ErrEmptyUpload          = errors.New("empty upload")
	ErrUploadTooLarge       = errors.New("upload too large")
	ErrDangerousExtension   = errors.New("dangerous file extension")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrSuspiciousContent    = errors.New("suspicious content")
	ErrMIMEMismatch         = errors.New("content type does not match an allowed image type")
	ErrCorruptImage         = errors.New("corrupt image")
	ErrDimensionTooSmall    = errors.New("image dimensions below minimum")
	ErrDimensionTooLarge    = errors.New("image dimensions above maximum")
)

// Orchestration and persistence errors.
var (
	ErrBatchTooLarge      = errors.New("too many files in batch")
	ErrImageNotFound      = errors.New("image not found")
	ErrImageAlreadyExists = errors.New("image already exists")
	ErrInvalidPosition    = errors.New("invalid display position")
)
