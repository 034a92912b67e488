package merge

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/writer"
)

type sourceSpec struct {
	label string
	pages int
	// nested splits the pages over two intermediate Pages nodes and puts
	// MediaBox and Resources on the root only.
	nested bool
	// dangling adds a reference to an object that does not exist.
	dangling bool
	// widget puts a text field widget on page 1 whose Parent is the field.
	widget  bool
	encrypt bool
}

// writeSource writes a PDF whose page i (1-based) draws "<label> <i>".
func writeSource(t *testing.T, dir, name string, spec sourceSpec) string {
	t.Helper()
	doc := raw.NewDocument("1.7")
	next := 0
	alloc := func() raw.ObjectRef { next++; return raw.ObjectRef{Num: next} }

	catRef, rootRef, fontRef := alloc(), alloc(), alloc()
	font := raw.Dict()
	font.Put("Type", raw.NameLiteral("Font"))
	font.Put("Subtype", raw.NameLiteral("Type1"))
	font.Put("BaseFont", raw.NameLiteral("Helvetica"))
	doc.Objects[fontRef] = font

	fonts := raw.Dict()
	fonts.Put("F1", raw.RefTo(fontRef))
	resources := raw.Dict()
	resources.Put("Font", fonts)
	mediaBox := raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792))

	parents := []raw.ObjectRef{rootRef}
	if spec.nested {
		parents = []raw.ObjectRef{alloc(), alloc()}
	}
	kidsOf := make(map[raw.ObjectRef][]raw.Object)
	for i := 1; i <= spec.pages; i++ {
		parent := parents[0]
		if spec.nested && i > spec.pages/2 {
			parent = parents[1]
		}
		pageRef, contentRef := alloc(), alloc()
		doc.Objects[contentRef] = raw.NewStream(raw.Dict(), []byte(fmt.Sprintf("BT /F1 12 Tf (%s %d) Tj ET", spec.label, i)))
		page := raw.Dict()
		page.Put("Type", raw.NameLiteral("Page"))
		page.Put("Parent", raw.RefTo(parent))
		page.Put("Contents", raw.RefTo(contentRef))
		if !spec.nested {
			page.Put("MediaBox", mediaBox)
			page.Put("Resources", resources)
		}
		if spec.dangling && i == 1 {
			page.Put("Annots", raw.NewArray(raw.Ref(999, 0)))
		}
		if spec.widget && i == 1 {
			fieldRef, widgetRef := alloc(), alloc()
			field := raw.Dict()
			field.Put("FT", raw.NameLiteral("Tx"))
			field.Put("T", raw.Str([]byte("name")))
			field.Put("V", raw.Str([]byte(spec.label)))
			field.Put("DA", raw.Str([]byte("/F1 10 Tf 0 g")))
			field.Put("Kids", raw.NewArray(raw.RefTo(widgetRef)))
			doc.Objects[fieldRef] = field
			widget := raw.Dict()
			widget.Put("Type", raw.NameLiteral("Annot"))
			widget.Put("Subtype", raw.NameLiteral("Widget"))
			widget.Put("Rect", raw.NewArray(raw.NumberInt(10), raw.NumberInt(10), raw.NumberInt(200), raw.NumberInt(30)))
			widget.Put("Parent", raw.RefTo(fieldRef))
			widget.Put("P", raw.RefTo(pageRef))
			doc.Objects[widgetRef] = widget
			page.Put("Annots", raw.NewArray(raw.RefTo(widgetRef)))
		}
		doc.Objects[pageRef] = page
		kidsOf[parent] = append(kidsOf[parent], raw.RefTo(pageRef))
	}

	root := raw.Dict()
	root.Put("Type", raw.NameLiteral("Pages"))
	root.Put("Count", raw.NumberInt(int64(spec.pages)))
	if spec.nested {
		root.Put("MediaBox", mediaBox)
		root.Put("Resources", resources)
		var kids []raw.Object
		for _, p := range parents {
			node := raw.Dict()
			node.Put("Type", raw.NameLiteral("Pages"))
			node.Put("Parent", raw.RefTo(rootRef))
			node.Put("Kids", raw.NewArray(kidsOf[p]...))
			node.Put("Count", raw.NumberInt(int64(len(kidsOf[p]))))
			doc.Objects[p] = node
			kids = append(kids, raw.RefTo(p))
		}
		root.Put("Kids", raw.NewArray(kids...))
	} else {
		root.Put("Kids", raw.NewArray(kidsOf[rootRef]...))
	}
	doc.Objects[rootRef] = root

	cat := raw.Dict()
	cat.Put("Type", raw.NameLiteral("Catalog"))
	cat.Put("Pages", raw.RefTo(rootRef))
	doc.Objects[catRef] = cat
	doc.Trailer.Put("Root", raw.RefTo(catRef))

	path := filepath.Join(dir, name)
	if err := writer.WriteFile(context.Background(), doc, path, writer.Config{Compression: 6}); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if spec.encrypt {
		// The writer never emits /Encrypt; patch it into the trailer.
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read fixture: %v", err)
		}
		data = []byte(strings.Replace(string(data), "trailer\n<<", "trailer\n<</Encrypt 1 0 R ", 1))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("rewrite fixture: %v", err)
		}
	}
	return path
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
	return path
}

// pageContent returns the decoded content stream of page ref.
func pageContent(t *testing.T, doc *raw.Document, ref raw.ObjectRef) string {
	t.Helper()
	page, ok := doc.ResolveDict(raw.RefTo(ref))
	if !ok {
		t.Fatalf("page %v missing", ref)
	}
	cobj, _ := page.Lookup("Contents")
	st, ok := doc.Resolve(cobj).(*raw.StreamObj)
	if !ok {
		t.Fatalf("page %v has no content stream", ref)
	}
	names, params := filters.ExtractFilters(st.Dict)
	data, err := filters.NewDefaultPipeline(filters.Limits{}).Decode(context.Background(), st.Data, names, params)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	return string(data)
}

func loadOutput(t *testing.T, path string) (*raw.Document, parser.PageIndex) {
	t.Helper()
	doc, err := parser.Load(context.Background(), path, parser.Config{})
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	idx, err := parser.Pages(doc)
	if err != nil {
		t.Fatalf("output pages: %v", err)
	}
	return doc, idx
}
