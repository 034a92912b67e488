package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// RGB flattens img to packed 8-bit RGB rows, compositing any transparency
// over a white background.
func RGB(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, y):rgba.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				// Premultiplied, so white shows through as 255-alpha.
				under := 255 - row[i+3]
				out = append(out, row[i]+under, row[i+1]+under, row[i+2]+under)
			}
		}
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			under := 0xffff - a
			out = append(out, byte((r+under)>>8), byte((g+under)>>8), byte((bl+under)>>8))
		}
	}
	return out
}

// Encode writes img in the given format: png, jpeg, bmp or tiff.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "jpg", "jpeg":
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: cannot encode %q", ErrUnsupportedImage, format)
}

// ResizeOptions picks the output size. Width and Height set an exact size
// when both are given and a proportional one when only one is. Percent
// scales both sides and wins over Width and Height.
type ResizeOptions struct {
	Width   int
	Height  int
	Percent float64
	Filter  string
	Quality int
}

func (o ResizeOptions) target(w, h int) (int, int, error) {
	switch {
	case o.Percent > 0:
		return clampDim(int(float64(w)*o.Percent/100), 1<<30), clampDim(int(float64(h)*o.Percent/100), 1<<30), nil
	case o.Width > 0 && o.Height > 0:
		return o.Width, o.Height, nil
	case o.Width > 0:
		return o.Width, clampDim(h*o.Width/w, 1<<30), nil
	case o.Height > 0:
		return clampDim(w*o.Height/h, 1<<30), o.Height, nil
	}
	return 0, 0, fmt.Errorf("resize needs a width, height or percent")
}

// ResizeFile decodes in, scales it and writes it to out in the format named
// by out's extension.
func ResizeFile(in, out string, opts ResizeOptions) error {
	img, _, err := Open(in)
	if err != nil {
		return err
	}
	b := img.Bounds()
	w, h, err := opts.target(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	interp, err := ParseFilter(opts.Filter)
	if err != nil {
		return err
	}
	format := strings.TrimPrefix(filepath.Ext(out), ".")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := Encode(f, Resize(img, w, h, interp), format, opts.Quality); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	return f.Close()
}
