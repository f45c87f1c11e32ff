// Package encode writes 8-bit grayscale buffers as image files.
package encode

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Format int

const (
	PNG Format = iota
	TIFF
	BMP
)

var ErrUnknownFormat = errors.New("encode: unknown format")

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case TIFF:
		return "tiff"
	case BMP:
		return "bmp"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) ContentType() string {
	switch f {
	case TIFF:
		return "image/tiff"
	case BMP:
		return "image/bmp"
	}
	return "image/png"
}

// ParseFormat accepts a format name, case-insensitively. The empty
// string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return PNG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return PNG, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFor picks a format from the file extension, falling back to PNG.
func FormatFor(filename string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return PNG
	}
	return f
}

// Gray wraps a row-major buffer as an image without copying.
func Gray(pixels []uint8, width, height int) (*image.Gray, error) {
	if width < 0 || height < 0 || len(pixels) != width*height {
		return nil, fmt.Errorf("encode: %d bytes do not describe a %dx%d image", len(pixels), width, height)
	}
	return &image.Gray{
		Pix:    pixels,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// Encode writes img to w in format f.
func Encode(w io.Writer, f Format, img image.Image) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// WriteFile encodes pixels as a width x height grayscale image into
// filename, choosing the format from its extension. On failure the
// partially written file is removed.
func WriteFile(filename string, pixels []uint8, width, height int) (err error) {
	img, err := Gray(pixels, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(filename)
		}
	}()

	format := FormatFor(filename)
	if err := Encode(f, format, img); err != nil {
		return fmt.Errorf("could not encode %s: %w", format, err)
	}
	return nil
}
