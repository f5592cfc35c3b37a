package imagesvc

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/webp"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeWEBP = "image/webp"
)

//nolint:gochecknoglobals
var (
	imageMagicHeaders = map[string][]string{
		MIMETypeJPEG: {"\xFF\xD8\xFF"},
		MIMETypePNG:  {"\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"},
		MIMETypeWEBP: {"\x52\x49\x46\x46"},
	}

	imageConfigDecoders = map[string]func(io.Reader) (image.Config, error){
		MIMETypeJPEG: jpeg.DecodeConfig,
		MIMETypePNG:  png.DecodeConfig,
		MIMETypeWEBP: webp.DecodeConfig,
	}

	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypePNG:  png.Decode,
		MIMETypeWEBP: webp.Decode,
	}

	imageTypeExts = map[string]string{
		MIMETypeJPEG: ".jpg",
		MIMETypePNG:  ".png",
		MIMETypeWEBP: ".webp",
	}
)

const webpFourCCOffset = 8 // RIFF chunk size sits between the two signatures

// sniffMIMEType determines the true content type of data from its magic
// bytes. Only the allowed image types are recognized; anything else returns
// false, regardless of the declared filename or MIME type.
func sniffMIMEType(data []byte) (string, bool) {
	for mimeType, headers := range imageMagicHeaders {
		for _, header := range headers {
			if !bytes.HasPrefix(data, []byte(header)) {
				continue
			}

			// A RIFF container is only webp if the form type says so.
			if mimeType == MIMETypeWEBP && !hasWEBPFourCC(data) {
				continue
			}

			return mimeType, true
		}
	}

	return "", false
}

func hasWEBPFourCC(data []byte) bool {
	const fourCCLen = 4

	if len(data) < webpFourCCOffset+fourCCLen {
		return false
	}

	return bytes.Equal(data[webpFourCCOffset:webpFourCCOffset+fourCCLen], []byte("WEBP"))
}

// ExtensionForType returns the canonical file extension (with leading dot)
// for an allowed image MIME type, or ".bin" for anything unrecognized.
func ExtensionForType(mimeType string) string {
	ext, ok := imageTypeExts[mimeType]
	if !ok {
		return ".bin"
	}

	return ext
}
