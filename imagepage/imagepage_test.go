package imagepage

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/color"
	"io"
	"math"
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
)

type counter struct{ next int }

func (c *counter) Allocate() raw.ObjectRef {
	c.next++
	return raw.ObjectRef{Num: c.next}
}

func TestFitChoosesWidthOrHeight(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH float64
	}{
		{2000, 1000, 595, 297.5},
		{1000, 2000, 421, 842},
		{595, 842, 595, 842},
		{100, 100, 595, 595},
	}
	for _, tc := range cases {
		w, h := Fit(tc.w, tc.h, DefaultPageWidth, DefaultPageHeight)
		if math.Abs(w-tc.wantW) > 0.001 || math.Abs(h-tc.wantH) > 0.001 {
			t.Fatalf("Fit(%d,%d) = %.3f,%.3f want %.3f,%.3f", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
		if w > DefaultPageWidth+1e-9 || h > DefaultPageHeight+1e-9 {
			t.Fatalf("page %vx%v exceeds reference size", w, h)
		}
	}
}

func TestPixelBox(t *testing.T) {
	w, h := PixelBox(595, 842, 150)
	if w != 1239 || h != 1754 {
		t.Fatalf("unexpected A4 pixel box %dx%d", w, h)
	}
	if w, h := PixelBox(0.1, 0.1, 150); w != 1 || h != 1 {
		t.Fatalf("pixel box must be at least 1x1, got %dx%d", w, h)
	}
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestSynthesizeBuildsSelfContainedPage(t *testing.T) {
	alloc := &counter{next: 40}
	pg, err := Synthesize(gradient(200, 100), alloc, Options{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if pg.Ref != (raw.ObjectRef{Num: 43}) || len(pg.Objects) != 3 {
		t.Fatalf("unexpected allocation %v %d", pg.Ref, len(pg.Objects))
	}
	if pg.Width != 595 || math.Abs(pg.Height-297.5) > 1e-9 {
		t.Fatalf("unexpected page size %vx%v", pg.Width, pg.Height)
	}
	if pg.PixelWidth != 200 || pg.PixelHeight != 100 {
		t.Fatalf("small image should not be resized, got %dx%d", pg.PixelWidth, pg.PixelHeight)
	}

	page := pg.Objects[pg.Ref].(*raw.DictObj)
	if _, ok := page.Lookup("Parent"); ok {
		t.Fatalf("page must not have a Parent yet")
	}
	if typ, _ := page.NameValue("Type"); typ != "Page" {
		t.Fatalf("unexpected type %q", typ)
	}
	contents, _ := page.Lookup("Contents")
	content := pg.Objects[contents.(raw.RefObj).R].(*raw.StreamObj)
	if got := string(content.Data); got != "q 595 0 0 297.5 0 0 cm /Im1 Do Q" {
		t.Fatalf("unexpected content stream %q", got)
	}

	resObj, _ := page.Lookup("Resources")
	xobjs, _ := resObj.(*raw.DictObj).Lookup("XObject")
	imRef, _ := xobjs.(*raw.DictObj).Lookup(ImageName)
	xo := pg.Objects[imRef.(raw.RefObj).R].(*raw.StreamObj)
	if f, _ := xo.Dict.NameValue("Filter"); f != "FlateDecode" {
		t.Fatalf("expected FlateDecode, got %q", f)
	}
	if cs, _ := xo.Dict.NameValue("ColorSpace"); cs != "DeviceRGB" {
		t.Fatalf("expected DeviceRGB, got %q", cs)
	}
	zr, err := zlib.NewReader(bytes.NewReader(xo.Data))
	if err != nil {
		t.Fatalf("zlib: %v", err)
	}
	pixels, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if len(pixels) != 200*100*3 {
		t.Fatalf("expected %d pixel bytes, got %d", 200*100*3, len(pixels))
	}
	if pixels[3*5] != 5 || pixels[3*5+2] != 128 {
		t.Fatalf("pixel data not RGB: %v", pixels[15:18])
	}

	// Every reference inside the subgraph resolves within it.
	for ref, obj := range pg.Objects {
		raw.Refs(obj, func(_ string, r raw.ObjectRef) {
			if _, ok := pg.Objects[r]; !ok {
				t.Fatalf("object %v refers outside the subgraph to %v", ref, r)
			}
		})
	}
}

func TestSynthesizeDownsamplesLargeImages(t *testing.T) {
	pg, err := Synthesize(gradient(3000, 600), &counter{}, Options{MaxDPI: 72})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	// 72 dpi on a 595 x 119 page.
	if pg.PixelWidth != 595 || pg.PixelHeight != 119 {
		t.Fatalf("expected 595x119 pixels, got %dx%d", pg.PixelWidth, pg.PixelHeight)
	}
	xo := pg.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
	if w, _ := xo.Dict.IntValue("Width"); w != 595 {
		t.Fatalf("XObject width %d", w)
	}
}

func TestSynthesizeRejectsEmptyImageAndBadFilter(t *testing.T) {
	if _, err := Synthesize(image.NewRGBA(image.Rect(0, 0, 0, 0)), &counter{}, Options{}); err != ErrEmptyImage {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	alloc := &counter{}
	if _, err := Synthesize(gradient(2, 2), alloc, Options{Filter: "bogus"}); err == nil {
		t.Fatalf("expected filter error")
	}
	if alloc.next != 0 {
		t.Fatalf("no ids should be allocated on failure")
	}
}
