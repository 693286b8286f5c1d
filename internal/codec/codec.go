package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/avif"

	"github.com/trunov/imagecache/internal/entities"
)

const (
	// DefaultQuality is used for lossy targets when no quality was requested.
	DefaultQuality = 80

	avifQuality = 60
	avifSpeed   = 10
)

// Raster is a decoded image together with the format it was decoded from.
type Raster struct {
	Image  image.Image
	Format entities.Format
}

// GuessFormat sniffs the magic bytes of data.
func GuessFormat(data []byte) (entities.Format, error) {
	detected := mimetype.Detect(data)

	// Walk up the hierarchy so that e.g. APNG still resolves to PNG.
	for mime := detected; mime != nil; mime = mime.Parent() {
		switch {
		case mime.Is("image/png"):
			return entities.FormatPNG, nil
		case mime.Is("image/jpeg"):
			return entities.FormatJPEG, nil
		case mime.Is("image/gif"):
			return entities.FormatGIF, nil
		case mime.Is("image/webp"):
			return entities.FormatWEBP, nil
		case mime.Is("image/tiff"):
			return entities.FormatTIFF, nil
		case mime.Is("image/bmp"):
			return entities.FormatBMP, nil
		case mime.Is("image/x-icon"):
			return entities.FormatICO, nil
		case mime.Is("image/avif"):
			return entities.FormatAVIF, nil
		}
	}

	return 0, fmt.Errorf("%w: detected %s", entities.ErrUnknownFormat, detected.String())
}

// Decode turns encoded bytes into a Raster.
func Decode(data []byte) (Raster, error) {
	format, err := GuessFormat(data)
	if err != nil {
		return Raster{}, fmt.Errorf("%w: %w", entities.ErrDecode, err)
	}

	var img image.Image
	r := bytes.NewReader(data)

	switch format {
	case entities.FormatPNG, entities.FormatJPEG, entities.FormatGIF, entities.FormatTIFF, entities.FormatBMP:
		img, err = imaging.Decode(r)
	case entities.FormatWEBP:
		img, err = webp.Decode(r)
	case entities.FormatAVIF:
		img, err = avif.Decode(r)
	case entities.FormatICO:
		err = fmt.Errorf("no decoder for %s", format)
	default:
		err = fmt.Errorf("no decoder for %s", format)
	}
	if err != nil {
		return Raster{}, fmt.Errorf("%w: %s: %w", entities.ErrDecode, format, err)
	}

	return Raster{Image: img, Format: format}, nil
}

// Encode writes img in the target format. quality is optional; it tunes
// JPEG and WEBP output and selects the PNG compression effort.
func Encode(img image.Image, format entities.Format, quality *uint8) ([]byte, error) {
	q := DefaultQuality
	if quality != nil {
		q = int(*quality)
	}

	buf := new(bytes.Buffer)
	var err error

	switch format {
	case entities.FormatJPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	case entities.FormatPNG:
		err = imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(PNGCompression(q)))
	case entities.FormatWEBP:
		err = webp.Encode(buf, img, &webp.Options{
			Lossless: false,
			Quality:  float32(q),
			Exact:    true,
		})
	case entities.FormatAVIF:
		err = avif.Encode(buf, img, avif.Options{
			Quality:      avifQuality,
			QualityAlpha: avifQuality,
			Speed:        avifSpeed,
		})
	case entities.FormatGIF, entities.FormatTIFF, entities.FormatBMP, entities.FormatICO:
		err = fmt.Errorf("%s is not an encode target", format)
	default:
		err = fmt.Errorf("%s is not an encode target", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", entities.ErrEncode, format, err)
	}

	return buf.Bytes(), nil
}

// PNGCompression buckets a quality level into a PNG compression effort.
func PNGCompression(quality int) png.CompressionLevel {
	switch {
	case quality < 10:
		return png.BestSpeed
	case quality < 20:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
