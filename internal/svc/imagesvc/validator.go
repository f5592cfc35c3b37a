package imagesvc

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/infra/logging"
)

// suspiciousPatterns are markup/script fragments that have no business
// appearing at the start of an image file. Matching one is a cheap
// defense-in-depth rejection, not a substitute for content sniffing.
//
//nolint:gochecknoglobals
var suspiciousPatterns = [][]byte{
	[]byte("<script"),
	[]byte("javascript:"),
	[]byte("onerror="),
	[]byte("onload="),
	[]byte("eval("),
}

// Validator checks untrusted upload candidates against the upload policy.
// Its checks run in a fixed order and short-circuit on the first failure;
// validation has no side effects.
type Validator struct {
	cfg UploadPolicy
	log logging.Logger
}

// NewValidator creates a Validator enforcing the given policy.
func NewValidator(cfg UploadPolicy) *Validator {
	return &Validator{
		cfg: cfg,
		log: logging.GetLogger("svc.imagesvc.validator"),
	}
}

// Validate inspects a candidate and either accepts it, returning the sniffed
// MIME type and header dimensions, or rejects it with one of the domain
// validation errors. The declared filename is consulted only for its
// extension; content decisions come from the bytes themselves.
func (v *Validator) Validate(ctx context.Context, candidate domain.UploadCandidate) (info domain.ImageInfo, err error) {
	log := v.log.With(logging.Group("upload",
		"filename", candidate.Filename,
		"size", candidate.Size,
	))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "upload rejected", "error", err)
		} else {
			log.DebugContext(ctx, "upload accepted", logging.Group("image",
				"type", info.MIMEType,
				"width", info.Width,
				"height", info.Height,
			))
		}
	}()

	if err := v.checkSize(candidate); err != nil {
		return domain.ImageInfo{}, err
	}

	if err := v.checkExtension(candidate.Filename); err != nil {
		return domain.ImageInfo{}, err
	}

	if err := v.checkSuspiciousContent(candidate.Data); err != nil {
		return domain.ImageInfo{}, err
	}

	mimeType, err := v.sniffContent(candidate.Data, candidate.Filename)
	if err != nil {
		return domain.ImageInfo{}, err
	}

	info, err = v.checkStructure(candidate.Data, mimeType)
	if err != nil {
		return domain.ImageInfo{}, err
	}

	return info, nil
}

func (v *Validator) checkSize(candidate domain.UploadCandidate) error {
	if len(candidate.Data) == 0 {
		return domain.ErrEmptyUpload
	}

	if candidate.Size > v.cfg.MaxUploadSize {
		return fmt.Errorf("%w: %d exceeds %d", domain.ErrUploadTooLarge, candidate.Size, v.cfg.MaxUploadSize)
	}

	return nil
}

func (v *Validator) checkExtension(filename string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	if slices.Contains(v.cfg.DeniedExtensions, ext) {
		return fmt.Errorf("%w: %q", domain.ErrDangerousExtension, ext)
	}

	if !slices.Contains(v.cfg.AllowedExtensions, ext) {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedExtension, ext)
	}

	return nil
}

func (v *Validator) checkSuspiciousContent(data []byte) error {
	window := data
	if len(window) > v.cfg.ScanWindow {
		window = window[:v.cfg.ScanWindow]
	}

	window = bytes.ToLower(window)

	for _, pattern := range suspiciousPatterns {
		if bytes.Contains(window, pattern) {
			return fmt.Errorf("%w: %q", domain.ErrSuspiciousContent, pattern)
		}
	}

	return nil
}

func (v *Validator) sniffContent(data []byte, filename string) (string, error) {
	mimeType, ok := sniffMIMEType(data)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrMIMEMismatch, filename)
	}

	return mimeType, nil
}

// checkStructure decodes only the image header to confirm the file is a
// structurally valid image of the sniffed type and that its dimensions fall
// within policy bounds. No full raster decode happens here.
func (v *Validator) checkStructure(data []byte, mimeType string) (domain.ImageInfo, error) {
	decodeConfig, ok := imageConfigDecoders[mimeType]
	if !ok {
		return domain.ImageInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedMIMEType, mimeType)
	}

	config, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ImageInfo{}, fmt.Errorf("%w: %w", domain.ErrCorruptImage, err)
	}

	if config.Width < v.cfg.MinDimension || config.Height < v.cfg.MinDimension {
		return domain.ImageInfo{}, fmt.Errorf("%w: %dx%d below %d",
			domain.ErrDimensionTooSmall, config.Width, config.Height, v.cfg.MinDimension)
	}

	if config.Width > v.cfg.MaxDimension || config.Height > v.cfg.MaxDimension {
		return domain.ImageInfo{}, fmt.Errorf("%w: %dx%d above %d",
			domain.ErrDimensionTooLarge, config.Width, config.Height, v.cfg.MaxDimension)
	}

	return domain.ImageInfo{
		MIMEType: mimeType,
		Width:    config.Width,
		Height:   config.Height,
	}, nil
}
