package imagesvc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jmertens/storefront-media/internal/domain"
	"github.com/jmertens/storefront-media/internal/infra/logging"
)

// Compressor normalizes validated images to JPEG under a byte budget.
// It never fails: a re-encode error degrades to passing the validated
// original through unchanged, so compression tooling can never block an
// otherwise-valid upload.
type Compressor struct {
	cfg CompressionPolicy
	log logging.Logger
}

// NewCompressor creates a Compressor applying the given policy.
func NewCompressor(cfg CompressionPolicy) *Compressor {
	return &Compressor{
		cfg: cfg,
		log: logging.GetLogger("svc.imagesvc.compressor"),
	}
}

// Compress resizes data to fit inside the policy's bounding box and
// re-encodes it as JPEG, stepping quality down until the result fits the
// byte budget or the quality floor is reached. On any internal error the
// original bytes are returned unchanged with a warning logged.
func (c *Compressor) Compress(ctx context.Context, data []byte, info domain.ImageInfo) domain.CompressedImage {
	log := c.log.With(logging.Group("image",
		"type", info.MIMEType,
		"width", info.Width,
		"height", info.Height,
		"size", len(data),
	))

	compressed, err := c.compress(data, info)
	if err != nil {
		log.WarnContext(ctx, "compression degraded, passing original through", "error", err)

		return domain.CompressedImage{
			Data:     data,
			MIMEType: info.MIMEType,
			Width:    info.Width,
			Height:   info.Height,
		}
	}

	log.DebugContext(ctx, "image compressed", logging.Group("output",
		"width", compressed.Width,
		"height", compressed.Height,
		"quality", compressed.Quality,
		"size", compressed.Size(),
	))

	return compressed
}

func (c *Compressor) compress(data []byte, info domain.ImageInfo) (domain.CompressedImage, error) {
	original, err := decodeImage(bytes.NewReader(data), info.MIMEType)
	if err != nil {
		return domain.CompressedImage{}, fmt.Errorf("decode image: %w", err)
	}

	bitmap, err := fitInBox(original, c.cfg.MaxWidth, c.cfg.MaxHeight, c.cfg.Interpolator)
	if err != nil {
		return domain.CompressedImage{}, fmt.Errorf("fit in box: %w", err)
	}

	encoded, quality, err := c.encodeUnderBudget(bitmap)
	if err != nil {
		return domain.CompressedImage{}, fmt.Errorf("encode under budget: %w", err)
	}

	bounds := bitmap.Bounds()

	return domain.CompressedImage{
		Data:     encoded,
		MIMEType: MIMETypeJPEG,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Quality:  quality,
	}, nil
}

// encodeUnderBudget encodes bitmap as JPEG, lowering quality by QualityStep
// per attempt until the output fits TargetBytes or the next step would drop
// below QualityFloor. The loop runs at most
// (InitialQuality-QualityFloor)/QualityStep + 1 times; the last encoding is
// accepted regardless of size.
func (c *Compressor) encodeUnderBudget(bitmap image.Image) ([]byte, int, error) {
	var (
		buffer  bytes.Buffer
		quality = c.cfg.InitialQuality
	)

	for {
		buffer.Reset()

		if err := jpeg.Encode(&buffer, bitmap, &jpeg.Options{Quality: quality}); err != nil {
			return nil, 0, fmt.Errorf("encode jpeg: %w", err)
		}

		if buffer.Len() <= c.cfg.TargetBytes {
			break
		}

		if quality-c.cfg.QualityStep < c.cfg.QualityFloor {
			break
		}

		quality -= c.cfg.QualityStep
	}

	return bytes.Clone(buffer.Bytes()), quality, nil
}
