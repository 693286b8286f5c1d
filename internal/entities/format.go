package entities

import (
	"fmt"
	"strings"
)

// Format is the closed set of image encodings the service can recognise.
// Only PNG, JPEG, WEBP and AVIF can be produced; the rest are decode or
// passthrough only.
type Format uint8

const (
	FormatPNG Format = iota + 1
	FormatJPEG
	FormatGIF
	FormatWEBP
	FormatTIFF
	FormatBMP
	FormatICO
	FormatAVIF
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatGIF:
		return "gif"
	case FormatWEBP:
		return "webp"
	case FormatTIFF:
		return "tiff"
	case FormatBMP:
		return "bmp"
	case FormatICO:
		return "ico"
	case FormatAVIF:
		return "avif"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// MIMEType returns the canonical media type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatWEBP:
		return "image/webp"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	case FormatICO:
		return "image/x-icon"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// Encodable reports whether the format is a valid encode target.
func (f Format) Encodable() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatWEBP, FormatAVIF:
		return true
	case FormatGIF, FormatTIFF, FormatBMP, FormatICO:
		return false
	default:
		return false
	}
}

// ParseFormat maps a request value (case-insensitive) to an encode target.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	case "avif":
		return FormatAVIF, nil
	default:
		return 0, fmt.Errorf("%w: unsupported target format %q", ErrInvalidParams, s)
	}
}
