package merge

import (
	"fmt"

	"github.com/soamn/slicepdf/ir/raw"
)

// Assemble hangs the recorded pages off one new Pages node, in recording
// order, and adds the Catalog and trailer. Every page's Parent is replaced.
// With no recorded pages it fails with ErrNoPagesSelected.
func Assemble(t *Target, producer string) (*raw.Document, error) {
	if len(t.pages) == 0 {
		return nil, newError(KindNoPagesSelected, "", nil)
	}

	pagesRef := t.Allocate()
	kids := make([]raw.Object, 0, len(t.pages))
	for _, ref := range t.pages {
		page, ok := t.doc.Objects[ref].(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("page %v is not a dictionary", ref)
		}
		page.Put("Parent", raw.RefTo(pagesRef))
		kids = append(kids, raw.RefTo(ref))
	}
	pages := raw.Dict()
	pages.Put("Type", raw.NameLiteral("Pages"))
	pages.Put("Kids", raw.NewArray(kids...))
	pages.Put("Count", raw.NumberInt(int64(len(kids))))
	t.Add(pagesRef, pages)

	catalogRef := t.Allocate()
	catalog := raw.Dict()
	catalog.Put("Type", raw.NameLiteral("Catalog"))
	catalog.Put("Pages", raw.RefTo(pagesRef))
	t.Add(catalogRef, catalog)

	t.doc.Trailer = raw.Dict()
	t.doc.Trailer.Put("Root", raw.RefTo(catalogRef))
	if producer != "" {
		infoRef := t.Allocate()
		info := raw.Dict()
		info.Put("Producer", raw.Str([]byte(producer)))
		t.Add(infoRef, info)
		t.doc.Trailer.Put("Info", raw.RefTo(infoRef))
	}
	t.doc.Trailer.Put("Size", raw.NumberInt(int64(t.next)))
	return t.doc, nil
}
