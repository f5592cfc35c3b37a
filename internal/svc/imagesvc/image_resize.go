package imagesvc

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"golang.org/x/image/draw"
)

var (
	// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
	ErrUnknownInterpolator = errors.New("unknown interpolator")

	// ErrUnsupportedMIMEType is returned when trying to process an unsupported image format.
	ErrUnsupportedMIMEType = errors.New("unsupported MIME type")
)

//nolint:gochecknoglobals
var (
	// interpolMap maps interpolator names to their implementations.
	// Supported values: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear".
	interpolMap = map[string]draw.Interpolator{
		"nearestneighbor": draw.NearestNeighbor,
		"catmullrom":      draw.CatmullRom,
		"bilinear":        draw.BiLinear,
		"approxbilinear":  draw.ApproxBiLinear,
	}
)

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownInterpolator
	}

	return interpol, nil
}

// fitInBox scales an image down so it fits entirely inside width×height,
// preserving aspect ratio. Images already inside the box are returned
// unchanged; there is no upscaling. The interpolator parameter specifies
// the scaling algorithm to use.
func fitInBox(original image.Image, width, height int, interpolator string) (image.Image, error) {
	var (
		bounds = original.Bounds()
		srcW   = bounds.Dx()
		srcH   = bounds.Dy()
	)

	if srcW <= width && srcH <= height {
		return original, nil
	}

	ratio := min(float64(width)/float64(srcW), float64(height)/float64(srcH))

	dstW := max(int(float64(srcW)*ratio), 1)
	dstH := max(int(float64(srcH)*ratio), 1)

	bitmap := image.NewRGBA(image.Rect(0, 0, dstW, dstH))

	interpol, err := getInterpolatorByName(interpolator)
	if err != nil {
		return nil, fmt.Errorf("get interpolator: %w", err)
	}

	interpol.Scale(bitmap, bitmap.Bounds(), original, original.Bounds(), draw.Over, nil)

	return bitmap, nil
}

// decodeImage decodes a binary image into a Go image.Image object.
// Returns ErrUnsupportedMIMEType if the content type is not supported.
func decodeImage(reader io.Reader, ctype string) (image.Image, error) {
	decoder, ok := imageDecoders[ctype]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMIMEType, ctype)
	}

	return decoder(reader)
}
