package processor

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/trunov/imagecache/internal/codec"
	"github.com/trunov/imagecache/internal/entities"
)

// ImageProcessor holds the encoded buffer between pipeline steps. Every step
// decodes its input afresh and leaves newly encoded bytes behind.
type ImageProcessor struct {
	buf []byte

	// quality is the last level requested; later re-encodes reuse it.
	quality *uint8

	// maxPixels caps the resize target area; 0 means no cap.
	maxPixels int64
}

type Option func(*ImageProcessor)

// WithMaxPixels rejects resize targets whose width*height exceeds n.
func WithMaxPixels(n int64) Option {
	return func(p *ImageProcessor) { p.maxPixels = n }
}

func NewImageProcessor(data []byte, opts ...Option) *ImageProcessor {
	p := &ImageProcessor{buf: data}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transform folds ops over data. An empty list returns data as is. The first
// failing step aborts the fold and its error is returned.
func Transform(ctx context.Context, data []byte, ops []Operation, opts ...Option) ([]byte, error) {
	p := NewImageProcessor(data, opts...)

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := codec.GuessFormat(p.buf); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := op.apply(p); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return p.Bytes(), nil
}

func (i *ImageProcessor) Bytes() []byte {
	return i.buf
}

func (i *ImageProcessor) Convert(to entities.Format) error {
	raster, err := codec.Decode(i.buf)
	if err != nil {
		return err
	}

	out, err := codec.Encode(raster.Image, to, i.quality)
	if err != nil {
		return err
	}

	i.buf = out
	return nil
}

func (i *ImageProcessor) Quality(level uint8) error {
	i.quality = &level

	format, err := codec.GuessFormat(i.buf)
	if err != nil {
		return err
	}

	switch format {
	case entities.FormatJPEG, entities.FormatWEBP, entities.FormatPNG:
	default:
		return nil
	}

	raster, err := codec.Decode(i.buf)
	if err != nil {
		return err
	}

	out, err := codec.Encode(raster.Image, format, &level)
	if err != nil {
		return err
	}

	i.buf = out
	return nil
}

func (i *ImageProcessor) Resize(width, height *uint32) error {
	if width == nil && height == nil {
		return fmt.Errorf("%w: neither width nor height given", entities.ErrInvalidDimensions)
	}
	// Checked before decoding so an absurd request costs nothing.
	if i.maxPixels > 0 && width != nil && height != nil && int64(*width)*int64(*height) > i.maxPixels {
		return i.tooLarge(int64(*width), int64(*height))
	}

	raster, err := codec.Decode(i.buf)
	if err != nil {
		return err
	}

	w, h := GetBounds(raster)
	if width != nil {
		w = int(*width)
	}
	if height != nil {
		h = int(*height)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", entities.ErrInvalidDimensions, w, h)
	}
	if i.maxPixels > 0 && int64(w)*int64(h) > i.maxPixels {
		return i.tooLarge(int64(w), int64(h))
	}

	resized := imaging.Resize(raster.Image, w, h, imaging.Lanczos)

	out, err := codec.Encode(resized, raster.Format, i.quality)
	if err != nil {
		return err
	}

	i.buf = out
	return nil
}

// tooLarge is a client error, so it also matches ErrInvalidParams.
func (i *ImageProcessor) tooLarge(w, h int64) error {
	return fmt.Errorf("%w: %w: %dx%d exceeds %d pixels", entities.ErrInvalidDimensions, entities.ErrInvalidParams, w, h, i.maxPixels)
}

func GetBounds(r codec.Raster) (int, int) {
	return r.Image.Bounds().Size().X, r.Image.Bounds().Size().Y
}
