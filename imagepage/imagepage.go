// Package imagepage turns a raster image into a self-contained page
// subgraph: an RGB image XObject, a content stream that paints it, and the
// page dictionary that ties them together.
package imagepage

import (
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/imaging"
	"github.com/soamn/slicepdf/ir/raw"
)

// A4 in points.
const (
	DefaultPageWidth  = 595.0
	DefaultPageHeight = 842.0
	DefaultMaxDPI     = 150.0
)

// ImageName is the resource name the content stream paints.
const ImageName = "Im1"

// Allocator hands out object ids that are unused in the graph the page will
// be added to.
type Allocator interface {
	Allocate() raw.ObjectRef
}

type Options struct {
	PageWidth  float64
	PageHeight float64
	MaxDPI     float64
	// Filter names the resampling kernel, see imaging.ParseFilter.
	Filter string
	// Level is the zlib level for the pixel data.
	Level int
}

func (o Options) withDefaults() Options {
	if o.PageWidth <= 0 {
		o.PageWidth = DefaultPageWidth
	}
	if o.PageHeight <= 0 {
		o.PageHeight = DefaultPageHeight
	}
	if o.MaxDPI <= 0 {
		o.MaxDPI = DefaultMaxDPI
	}
	if o.Level == 0 {
		o.Level = zlib.BestCompression
	}
	return o
}

// Page is a synthesized page. Objects holds the image, content and page
// objects keyed by their allocated ids; the page has no Parent yet.
type Page struct {
	Ref           raw.ObjectRef
	Width, Height float64
	PixelWidth    int
	PixelHeight   int
	Objects       map[raw.ObjectRef]raw.Object
}

var ErrEmptyImage = errors.New("image has no pixels")

// Fit returns the page size for an imgW x imgH image: the largest rectangle
// with the image's aspect ratio inside pageW x pageH.
func Fit(imgW, imgH int, pageW, pageH float64) (float64, float64) {
	aspect := float64(imgW) / float64(imgH)
	if aspect > pageW/pageH {
		return pageW, pageW / aspect
	}
	return pageH * aspect, pageH
}

// PixelBox is the largest pixel size worth embedding on a w x h point page
// rendered at dpi.
func PixelBox(w, h, dpi float64) (int, int) {
	pw := int(math.Floor(w / 72 * dpi))
	ph := int(math.Floor(h / 72 * dpi))
	if pw < 1 {
		pw = 1
	}
	if ph < 1 {
		ph = 1
	}
	return pw, ph
}

// Synthesize builds the page subgraph for img, drawing ids from alloc in the
// order image, content, page.
func Synthesize(img image.Image, alloc Allocator, opts Options) (*Page, error) {
	opts = opts.withDefaults()
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	interp, err := imaging.ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	w, h := Fit(b.Dx(), b.Dy(), opts.PageWidth, opts.PageHeight)
	maxW, maxH := PixelBox(w, h, opts.MaxDPI)
	if b.Dx() > maxW || b.Dy() > maxH {
		nw, nh := imaging.FitWithin(b.Dx(), b.Dy(), maxW, maxH)
		img = imaging.Resize(img, nw, nh, interp)
		b = img.Bounds()
	}

	packed, err := filters.FlateEncode(imaging.RGB(img), opts.Level)
	if err != nil {
		return nil, fmt.Errorf("compress image: %w", err)
	}

	page := &Page{
		Width:       w,
		Height:      h,
		PixelWidth:  b.Dx(),
		PixelHeight: b.Dy(),
		Objects:     make(map[raw.ObjectRef]raw.Object, 3),
	}

	imgRef := alloc.Allocate()
	xo := raw.Dict()
	xo.Put("Type", raw.NameLiteral("XObject"))
	xo.Put("Subtype", raw.NameLiteral("Image"))
	xo.Put("Width", raw.NumberInt(int64(b.Dx())))
	xo.Put("Height", raw.NumberInt(int64(b.Dy())))
	xo.Put("ColorSpace", raw.NameLiteral("DeviceRGB"))
	xo.Put("BitsPerComponent", raw.NumberInt(8))
	xo.Put("Filter", raw.NameLiteral("FlateDecode"))
	page.Objects[imgRef] = raw.NewStream(xo, packed)

	contentRef := alloc.Allocate()
	content := fmt.Sprintf("q %s 0 0 %s 0 0 cm /%s Do Q", num(w), num(h), ImageName)
	page.Objects[contentRef] = raw.NewStream(raw.Dict(), []byte(content))

	page.Ref = alloc.Allocate()
	xobjects := raw.Dict()
	xobjects.Put(ImageName, raw.RefTo(imgRef))
	res := raw.Dict()
	res.Put("XObject", xobjects)
	res.Put("ProcSet", raw.NewArray(raw.NameLiteral("PDF"), raw.NameLiteral("ImageC")))
	pd := raw.Dict()
	pd.Put("Type", raw.NameLiteral("Page"))
	pd.Put("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberFloat(w), raw.NumberFloat(h)))
	pd.Put("Resources", res)
	pd.Put("Contents", raw.RefTo(contentRef))
	page.Objects[page.Ref] = pd

	return page, nil
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
