package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
)

// FromXObject turns an image XObject back into pixels. JPEG (DCTDecode)
// payloads and 8-bit DeviceRGB or DeviceGray samples are supported; other
// images return ErrUnsupportedImage. doc resolves indirect dictionary values
// and may be nil.
func FromXObject(ctx context.Context, doc *raw.Document, st *raw.StreamObj, limits filters.Limits) (image.Image, error) {
	resolve := func(key string) raw.Object {
		v, ok := st.Dict.Lookup(key)
		if !ok {
			return nil
		}
		if doc != nil {
			return doc.Resolve(v)
		}
		return v
	}
	intOf := func(key string) int {
		if n, ok := resolve(key).(raw.NumberObj); ok {
			return int(n.Int())
		}
		return 0
	}

	if sub, ok := resolve("Subtype").(raw.NameObj); !ok || sub.Value() != "Image" {
		return nil, fmt.Errorf("%w: not an image XObject", ErrUnsupportedImage)
	}
	if _, ok := st.Dict.Lookup("SMask"); ok {
		return nil, fmt.Errorf("%w: soft mask", ErrUnsupportedImage)
	}
	width, height := intOf("Width"), intOf("Height")
	if err := filters.ValidateImageBounds(width, height); err != nil {
		return nil, err
	}

	names, params := filters.ExtractFilters(st.Dict)
	jpegData := len(names) > 0 && (names[len(names)-1] == "DCTDecode" || names[len(names)-1] == "DCT")
	if jpegData {
		names, params = names[:len(names)-1], params[:len(params)-1]
	}
	data, err := filters.NewDefaultPipeline(limits).Decode(ctx, st.Data, names, params)
	if err != nil {
		return nil, err
	}
	if jpegData {
		return jpeg.Decode(bytes.NewReader(data))
	}

	bpc := intOf("BitsPerComponent")
	if bpc != 8 {
		return nil, fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, bpc)
	}
	cs, _ := resolve("ColorSpace").(raw.NameObj)
	rect := image.Rect(0, 0, width, height)
	switch cs.Value() {
	case "DeviceGray":
		if len(data) < width*height {
			return nil, fmt.Errorf("image data short: %d of %d bytes", len(data), width*height)
		}
		return &image.Gray{Pix: data[:width*height], Stride: width, Rect: rect}, nil
	case "DeviceRGB":
		if len(data) < width*height*3 {
			return nil, fmt.Errorf("image data short: %d of %d bytes", len(data), width*height*3)
		}
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < width*height*3; i, j = i+3, j+4 {
			img.Pix[j] = data[i]
			img.Pix[j+1] = data[i+1]
			img.Pix[j+2] = data[i+2]
			img.Pix[j+3] = 255
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: color space %q", ErrUnsupportedImage, cs.Value())
}

// IsGray reports whether img holds single-channel samples.
func IsGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}
