package processor

import (
	"fmt"

	"github.com/trunov/imagecache/internal/entities"
)

// Operation is one step of a transform pipeline. The set is closed: Convert,
// Quality and Resize are the only implementations.
type Operation interface {
	fmt.Stringer
	apply(p *ImageProcessor) error
}

// Convert re-encodes the image into Format.
type Convert struct {
	Format entities.Format
}

// Quality re-encodes JPEG and WEBP images at Level and picks the compression
// effort for PNG. Other formats pass through untouched.
type Quality struct {
	Level uint8
}

// Resize scales to an exact Width x Height box. A nil axis keeps the source
// size for that axis.
type Resize struct {
	Width  *uint32
	Height *uint32
}

func (o Convert) String() string { return "convert:" + o.Format.String() }

func (o Quality) String() string { return fmt.Sprintf("quality:%d", o.Level) }

func (o Resize) String() string {
	return fmt.Sprintf("resize:%s_%s", axis(o.Width), axis(o.Height))
}

func axis(v *uint32) string {
	if v == nil {
		return "original"
	}
	return fmt.Sprintf("%d", *v)
}

func (o Convert) apply(p *ImageProcessor) error { return p.Convert(o.Format) }

func (o Quality) apply(p *ImageProcessor) error { return p.Quality(o.Level) }

func (o Resize) apply(p *ImageProcessor) error { return p.Resize(o.Width, o.Height) }

// BuildOperations derives the pipeline for req. The order is fixed
// (convert, quality, resize) regardless of how the request was written.
func BuildOperations(req entities.TransformRequest) []Operation {
	ops := make([]Operation, 0, 3)

	if req.Format != nil {
		ops = append(ops, Convert{Format: *req.Format})
	}
	if req.Quality != nil {
		ops = append(ops, Quality{Level: *req.Quality})
	}
	if req.Width != nil || req.Height != nil {
		ops = append(ops, Resize{Width: req.Width, Height: req.Height})
	}

	return ops
}
