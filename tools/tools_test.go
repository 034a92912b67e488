package tools

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/writer"
)

// fixture describes a generated test document.
type fixture struct {
	pages int
	// inheritedRotate is set on the Pages root, not on the pages.
	inheritedRotate int
	images          []*raw.StreamObj
	encrypt         bool
}

func writeFixture(t *testing.T, path string, fx fixture) {
	t.Helper()
	doc := raw.NewDocument("1.7")
	next := 0
	alloc := func() raw.ObjectRef { next++; return raw.ObjectRef{Num: next} }

	catRef, rootRef := alloc(), alloc()
	xobjects := raw.Dict()
	for i, img := range fx.images {
		ref := alloc()
		doc.Objects[ref] = img
		xobjects.Put("Im"+string(rune('A'+i)), raw.RefTo(ref))
	}
	resources := raw.Dict()
	resources.Put("XObject", xobjects)

	var kids []raw.Object
	for i := 0; i < fx.pages; i++ {
		ref := alloc()
		page := raw.Dict()
		page.Put("Type", raw.NameLiteral("Page"))
		page.Put("Parent", raw.RefTo(rootRef))
		page.Put("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
		page.Put("Resources", resources)
		doc.Objects[ref] = page
		kids = append(kids, raw.RefTo(ref))
	}
	root := raw.Dict()
	root.Put("Type", raw.NameLiteral("Pages"))
	root.Put("Kids", raw.NewArray(kids...))
	root.Put("Count", raw.NumberInt(int64(fx.pages)))
	if fx.inheritedRotate != 0 {
		root.Put("Rotate", raw.NumberInt(int64(fx.inheritedRotate)))
	}
	doc.Objects[rootRef] = root
	cat := raw.Dict()
	cat.Put("Type", raw.NameLiteral("Catalog"))
	cat.Put("Pages", raw.RefTo(rootRef))
	doc.Objects[catRef] = cat
	doc.Trailer.Put("Root", raw.RefTo(catRef))

	if err := writer.WriteFile(context.Background(), doc, path, writer.Config{Compression: 6}); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if fx.encrypt {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read fixture: %v", err)
		}
		data = []byte(strings.Replace(string(data), "trailer\n<<", "trailer\n<</Encrypt 1 0 R ", 1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("rewrite fixture: %v", err)
		}
	}
}

// noiseImage returns an uncompressed image XObject filled with
// pseudo-random samples, which flate cannot shrink.
func noiseImage(w, h int, colorSpace string, comps int) *raw.StreamObj {
	data := make([]byte, w*h*comps)
	seed := uint32(7)
	for i := range data {
		seed = seed*1664525 + 1013904223
		data[i] = byte(seed >> 24)
	}
	d := raw.Dict()
	d.Put("Type", raw.NameLiteral("XObject"))
	d.Put("Subtype", raw.NameLiteral("Image"))
	d.Put("Width", raw.NumberInt(int64(w)))
	d.Put("Height", raw.NumberInt(int64(h)))
	d.Put("ColorSpace", raw.NameLiteral(colorSpace))
	d.Put("BitsPerComponent", raw.NumberInt(8))
	return raw.NewStream(d, data)
}

func load(t *testing.T, path string) (*raw.Document, parser.PageIndex) {
	t.Helper()
	doc, err := parser.Load(context.Background(), path, parser.Config{})
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	idx, err := parser.Pages(doc)
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	return doc, idx
}
