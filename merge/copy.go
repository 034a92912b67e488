package merge

import (
	"github.com/soamn/slicepdf/ir/raw"
)

// copyPage adds page n of src and every object it reaches to t, without
// following Parent links out of page tree nodes. Parent on any other object
// (a widget's field, a popup's markup annotation) is followed. Inherited
// attributes are written onto the copied page dictionary, since the copy
// will hang directly off the new flat Pages node. A page that is already an
// output page is duplicated under a fresh id.
func copyPage(t *Target, src *Source, n int) (raw.ObjectRef, bool) {
	pg, ok := src.Pages.Lookup(n)
	if !ok {
		return raw.ObjectRef{}, false
	}
	orig, _ := src.Doc.ResolveDict(raw.RefTo(pg.Ref))
	page := raw.Clone(orig).(*raw.DictObj)
	for k, v := range pg.Inherited {
		page.Put(k, raw.Clone(v))
	}

	ref := pg.Ref
	if t.isPage(ref) {
		ref = t.Allocate()
	}
	t.Add(ref, page)

	queue := make([]raw.ObjectRef, 0, 16)
	push := func(_ string, r raw.ObjectRef) { queue = append(queue, r) }
	refsOf(page, push)
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if t.Has(r) {
			continue
		}
		obj, ok := src.Doc.Objects[r]
		if !ok {
			continue
		}
		t.Add(r, obj)
		refsOf(obj, push)
	}
	return ref, true
}

// refsOf reports the references held by obj. For Page and Pages nodes the
// top-level Parent entry is left out.
func refsOf(obj raw.Object, fn func(string, raw.ObjectRef)) {
	d, ok := obj.(*raw.DictObj)
	if !ok {
		raw.Refs(obj, fn)
		return
	}
	if typ, _ := d.NameValue("Type"); typ != "Page" && typ != "Pages" {
		raw.Refs(d, fn)
		return
	}
	for k, v := range d.KV {
		if k == "Parent" {
			continue
		}
		raw.Refs(v, fn)
	}
}
