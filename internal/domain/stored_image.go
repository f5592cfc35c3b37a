package domain

// StoredImageRecord describes one durably stored listing image. Path is a
// stable relative path of the form {owner}/{filename}; callers construct
// public URLs from it, so it never changes once written. Position and
// AltText are the only mutable fields.
type StoredImageRecord struct {
	Owner     string `json:"owner"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Position  int    `json:"position"`
	AltText   string `json:"altText"`
	CreatedAt int64  `json:"createdAt"`
}
