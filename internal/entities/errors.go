package entities

import "errors"

var (
	ErrNotFound          = errors.New("image not found")
	ErrDecode            = errors.New("decode error")
	ErrEncode            = errors.New("encode error")
	ErrUnknownFormat     = errors.New("unknown image format")
	ErrInvalidDimensions = errors.New("invalid resize dimensions")
	ErrStorage           = errors.New("object storage error")
	ErrInvalidParams     = errors.New("invalid request parameters")

	// ErrCache is logged only; it never reaches a caller.
	ErrCache = errors.New("cache error")
)
