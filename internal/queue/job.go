package queue

import (
	"github.com/trunov/imagecache/internal/entities"
)

// WarmJob is what we push to Redis Streams: one variant to precompute.
// No bytes here, workers resolve the identifier themselves.
type WarmJob struct {
	Identifier string  `json:"identifier"`
	Width      *uint32 `json:"width,omitempty"`
	Height     *uint32 `json:"height,omitempty"`
	Quality    *uint8  `json:"quality,omitempty"`
	Format     string  `json:"format,omitempty"` // "png" | "jpeg" | "webp" | "avif"
}

func NewWarmJob(id entities.ImageIdentifier, req entities.TransformRequest) WarmJob {
	job := WarmJob{
		Identifier: id,
		Width:      req.Width,
		Height:     req.Height,
		Quality:    req.Quality,
	}
	if req.Format != nil {
		job.Format = req.Format.String()
	}
	return job
}

func (j WarmJob) Request() (entities.TransformRequest, error) {
	req := entities.TransformRequest{
		Width:   j.Width,
		Height:  j.Height,
		Quality: j.Quality,
	}
	if j.Format != "" {
		f, err := entities.ParseFormat(j.Format)
		if err != nil {
			return entities.TransformRequest{}, err
		}
		req.Format = &f
	}
	return req, nil
}
