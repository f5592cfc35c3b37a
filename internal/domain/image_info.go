package domain

// ImageInfo describes an upload that passed validation: the MIME type
// sniffed from the content and the dimensions read from the image header.
type ImageInfo struct {
	MIMEType string
	Width    int
	Height   int
}
