package domain

// CompressedImage is the compressor's output. Data always holds a valid
// encoded image. The byte budget is best-effort: when the quality floor is
// reached before the budget is met, the last encoding is accepted anyway.
type CompressedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Quality  int
}

// Size returns the size of the encoded image in bytes.
func (img CompressedImage) Size() int64 {
	return int64(len(img.Data))
}
