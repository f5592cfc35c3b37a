package object

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmertens/storefront-media/internal/util/encoding"
)

// UniqueName returns an object name of the form {unixmilli}_{random}{ext}.
// The random part is a Crockford Base32 encoded UUID, so two calls never
// collide within a container regardless of the uploader's declared
// filename. ext must include the leading dot.
func UniqueName(ext string) string {
	id := uuid.New()

	return fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), encoding.EncodeCrockfordB32LC(id[:]), ext)
}
