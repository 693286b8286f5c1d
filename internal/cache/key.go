package cache

import (
	"strconv"
	"strings"

	"github.com/trunov/imagecache/internal/entities"
)

const absent = "none"

// Key derives the cache key of one variant. Every request field is encoded,
// absent ones as "none", so requests differing in any single field never
// share a key. The four field segments always trail the identifier, which
// keeps the mapping injective even for identifiers containing ':'.
func Key(id entities.ImageIdentifier, req entities.TransformRequest) string {
	var b strings.Builder
	b.Grow(len(id) + 40)

	b.WriteString("img:")
	b.WriteString(id)
	b.WriteString(":w")
	b.WriteString(uintField(req.Width))
	b.WriteString(":h")
	b.WriteString(uintField(req.Height))
	b.WriteString(":q")
	if req.Quality == nil {
		b.WriteString(absent)
	} else {
		b.WriteString(strconv.FormatUint(uint64(*req.Quality), 10))
	}
	b.WriteString(":f")
	if req.Format == nil {
		b.WriteString(absent)
	} else {
		b.WriteString(req.Format.String())
	}

	return b.String()
}

func uintField(v *uint32) string {
	if v == nil {
		return absent
	}
	return strconv.FormatUint(uint64(*v), 10)
}
