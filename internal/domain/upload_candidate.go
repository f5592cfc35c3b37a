package domain

// UploadCandidate is a raw uploaded byte buffer awaiting validation.
// Filename is the client-declared name; it is attacker-controlled and only
// ever consulted for extension derivation and display, never for content
// decisions or storage paths.
type UploadCandidate struct {
	Data     []byte
	Filename string
	Size     int64
}

// NewUploadCandidate creates an UploadCandidate for the given buffer and
// declared filename. Size is derived from the buffer, not from any
// client-declared value.
func NewUploadCandidate(data []byte, filename string) UploadCandidate {
	return UploadCandidate{
		Data:     data,
		Filename: filename,
		Size:     int64(len(data)),
	}
}
