package entities

// ImageIdentifier names one uploaded image. It is assigned at upload time and
// doubles as the object-store key prefix.
type ImageIdentifier = string

// StoredObject is one entry of an object-store prefix listing.
type StoredObject struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// TransformRequest carries the optional transform parameters of a request.
// A nil field means "no opinion"; the zero value is the identity transform.
type TransformRequest struct {
	Width   *uint32 `json:"width,omitempty"`
	Height  *uint32 `json:"height,omitempty"`
	Quality *uint8  `json:"quality,omitempty"`
	Format  *Format `json:"format,omitempty"`
}

// IsIdentity reports whether the request asks for no transformation at all.
func (r TransformRequest) IsIdentity() bool {
	return r.Width == nil && r.Height == nil && r.Quality == nil && r.Format == nil
}

// Variant is the response payload for one (identifier, parameters) pair.
type Variant struct {
	Data        []byte
	ContentType string
	CacheKey    string
	FromCache   bool
}
