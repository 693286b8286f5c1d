package handler

import "github.com/trunov/imagecache/internal/entities"

type GetImageParams struct {
	Width   *int64 `validate:"omitnil,min=1,max=4294967295"` // ?width=
	Height  *int64 `validate:"omitnil,min=1,max=4294967295"` // ?height=
	Quality *int64 `validate:"omitnil,min=0,max=255"`        // ?quality=
	Format  string `validate:"omitempty,oneof=png jpeg webp avif"`
}

func (p GetImageParams) toRequest() (entities.TransformRequest, error) {
	var req entities.TransformRequest

	if p.Width != nil {
		w := uint32(*p.Width)
		req.Width = &w
	}
	if p.Height != nil {
		h := uint32(*p.Height)
		req.Height = &h
	}
	if p.Quality != nil {
		q := uint8(*p.Quality)
		req.Quality = &q
	}
	if p.Format != "" {
		f, err := entities.ParseFormat(p.Format)
		if err != nil {
			return entities.TransformRequest{}, err
		}
		req.Format = &f
	}

	return req, nil
}
