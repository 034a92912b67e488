package parser

import (
	"errors"
	"fmt"

	"github.com/soamn/slicepdf/ir/raw"
)

// InheritableKeys are the page attributes a leaf may take from an ancestor
// Pages node.
var InheritableKeys = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Page is one leaf of the page tree. Inherited holds the inheritable
// attributes the leaf does not set itself but an ancestor does.
type Page struct {
	Ref       raw.ObjectRef
	Inherited map[string]raw.Object
}

// PageIndex lists a document's pages in reading order. Page numbers are
// 1-based.
type PageIndex struct {
	pages []Page
}

func (p PageIndex) Len() int { return len(p.pages) }

// Lookup returns page n (1-based).
func (p PageIndex) Lookup(n int) (Page, bool) {
	if n < 1 || n > len(p.pages) {
		return Page{}, false
	}
	return p.pages[n-1], true
}

// Refs returns the page object ids in order.
func (p PageIndex) Refs() []raw.ObjectRef {
	out := make([]raw.ObjectRef, len(p.pages))
	for i, pg := range p.pages {
		out[i] = pg.Ref
	}
	return out
}

const maxPageTreeDepth = 64

// Pages walks Catalog -> Pages depth-first and returns the leaves in order.
// Nested Pages nodes are flattened; a node reached twice is skipped.
func Pages(doc *raw.Document) (PageIndex, error) {
	cat, _, err := doc.Catalog()
	if err != nil {
		return PageIndex{}, err
	}
	rootObj, ok := cat.Lookup("Pages")
	if !ok {
		return PageIndex{}, errors.New("catalog has no Pages entry")
	}
	rootRef, ok := rootObj.(raw.RefObj)
	if !ok {
		return PageIndex{}, errors.New("catalog Pages entry is not a reference")
	}
	w := &pageWalker{doc: doc, seen: make(map[raw.ObjectRef]bool)}
	if err := w.walk(rootRef.R, nil, 0); err != nil {
		return PageIndex{}, err
	}
	return PageIndex{pages: w.pages}, nil
}

type pageWalker struct {
	doc   *raw.Document
	seen  map[raw.ObjectRef]bool
	pages []Page
}

func (w *pageWalker) walk(ref raw.ObjectRef, inherited map[string]raw.Object, depth int) error {
	if depth > maxPageTreeDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxPageTreeDepth)
	}
	if w.seen[ref] {
		return nil
	}
	w.seen[ref] = true

	node, ok := w.doc.ResolveDict(raw.RefTo(ref))
	if !ok {
		// Dangling kids are dropped rather than failing the whole tree.
		return nil
	}
	typ, _ := node.NameValue("Type")
	kidsObj, hasKids := node.Lookup("Kids")
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		w.pages = append(w.pages, Page{Ref: ref, Inherited: missingFrom(node, inherited)})
		return nil
	}

	next := make(map[string]raw.Object, len(InheritableKeys))
	for k, v := range inherited {
		next[k] = v
	}
	for _, k := range InheritableKeys {
		if v, ok := node.Lookup(k); ok {
			next[k] = v
		}
	}

	kids, ok := w.doc.Resolve(kidsObj).(*raw.ArrayObj)
	if !ok {
		return nil
	}
	for _, kid := range kids.Items {
		kref, ok := kid.(raw.RefObj)
		if !ok {
			continue
		}
		if err := w.walk(kref.R, next, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func missingFrom(page *raw.DictObj, inherited map[string]raw.Object) map[string]raw.Object {
	var out map[string]raw.Object
	for k, v := range inherited {
		if _, own := page.Lookup(k); own {
			continue
		}
		if out == nil {
			out = make(map[string]raw.Object)
		}
		out[k] = v
	}
	return out
}

// CountPages returns the number of leaf pages in doc.
func CountPages(doc *raw.Document) (int, error) {
	idx, err := Pages(doc)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}
