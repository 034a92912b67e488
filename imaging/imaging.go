// Package imaging decodes, resizes and re-encodes raster images for the
// page synthesizer and the shallow image tools.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/soamn/slicepdf/filters"
)

// DecodeError reports an image that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrUnsupportedImage is returned for image data this package cannot turn
// into pixels.
var ErrUnsupportedImage = errors.New("unsupported image")

// Decode reads an encoded raster image. The header is checked against
// filters.ValidateImageBounds before any pixel buffer is allocated.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if err := filters.ValidateImageBounds(cfg.Width, cfg.Height); err != nil {
		return nil, format, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, err
	}
	return img, format, nil
}

// Open decodes the image at path. Every failure is a *DecodeError.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &DecodeError{Path: path, Err: err}
	}
	defer f.Close()
	img, format, err := Decode(f)
	if err != nil {
		return nil, format, &DecodeError{Path: path, Err: err}
	}
	return img, format, nil
}
