package tools

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sort"

	"golang.org/x/image/draw"

	"github.com/soamn/slicepdf/imaging"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
)

const (
	DefaultCompressQuality = 65
	DefaultCompressScale   = 0.5
)

// CompressOptions controls image recompression. Scale in (0, 1] shrinks
// both sides of every image; Quality is the JPEG quality.
type CompressOptions struct {
	Quality int
	Scale   float64
	Filter  string
}

type CompressResult struct {
	Images       int
	Recompressed int
	BytesBefore  int64
	BytesAfter   int64
}

// Compress re-encodes every decodable image XObject in "in" as a smaller
// JPEG and writes the document to out. Images that cannot be decoded, or
// that would not shrink, are kept as they are.
func (k *Toolkit) Compress(ctx context.Context, in, out string, opts CompressOptions) (CompressResult, error) {
	var res CompressResult
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultCompressQuality
	}
	if opts.Scale <= 0 || opts.Scale > 1 {
		opts.Scale = DefaultCompressScale
	}
	if opts.Filter == "" {
		opts.Filter = imaging.DefaultFilter
	}
	interp, err := imaging.ParseFilter(opts.Filter)
	if err != nil {
		return res, err
	}

	doc, err := k.load(ctx, in)
	if err != nil {
		return res, err
	}

	refs := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok {
			if sub, _ := st.Dict.NameValue("Subtype"); sub == "Image" {
				refs = append(refs, ref)
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st := doc.Objects[ref].(*raw.StreamObj)
		res.Images++
		res.BytesBefore += int64(len(st.Data))

		replaced, err := k.recompress(ctx, doc, st, opts, interp)
		if err != nil {
			k.logger().Debug("compress: keeping image",
				observability.Int("object", ref.Num), observability.Error("reason", err))
			res.BytesAfter += int64(len(st.Data))
			continue
		}
		if replaced == nil {
			res.BytesAfter += int64(len(st.Data))
			continue
		}
		doc.Objects[ref] = replaced
		res.Recompressed++
		res.BytesAfter += int64(len(replaced.Data))
	}

	if err := k.save(ctx, doc, out); err != nil {
		return res, err
	}
	return res, nil
}

// recompress returns the replacement stream, or nil when the JPEG would be
// no smaller than the current data.
func (k *Toolkit) recompress(ctx context.Context, doc *raw.Document, st *raw.StreamObj, opts CompressOptions, interp draw.Interpolator) (*raw.StreamObj, error) {
	img, err := imaging.FromXObject(ctx, doc, st, k.limits())
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*opts.Scale))
	h := max(1, int(float64(b.Dy())*opts.Scale))

	var scaled image.Image = imaging.Resize(img, w, h, interp)
	colorSpace := "DeviceRGB"
	if imaging.IsGray(img) {
		gray := image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), scaled, image.Point{}, draw.Src)
		scaled = gray
		colorSpace = "DeviceGray"
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, err
	}
	if buf.Len() >= len(st.Data) {
		return nil, nil
	}

	dict := raw.Clone(st.Dict).(*raw.DictObj)
	dict.Delete("DecodeParms")
	dict.Delete("Length")
	dict.Put("Filter", raw.NameLiteral("DCTDecode"))
	dict.Put("ColorSpace", raw.NameLiteral(colorSpace))
	dict.Put("BitsPerComponent", raw.NumberInt(8))
	dict.Put("Width", raw.NumberInt(int64(w)))
	dict.Put("Height", raw.NumberInt(int64(h)))
	return raw.NewStream(dict, buf.Bytes()), nil
}
