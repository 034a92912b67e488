// Package renumber shifts the object numbers of a graph so it can be combined
// with another graph without id collisions.
package renumber

import (
	"sort"

	"github.com/soamn/slicepdf/ir/raw"
)

// Apply returns a copy of doc in which every object number, and every
// reference anywhere in the graph or its trailer, is increased by offset.
// Generations are kept. References to objects that do not exist are shifted
// like any other reference; use Dangling to find them.
//
// Stream payloads are shared with doc. doc itself is not modified.
func Apply(doc *raw.Document, offset int) *raw.Document {
	shift := func(r raw.ObjectRef) raw.ObjectRef {
		return raw.ObjectRef{Num: r.Num + offset, Gen: r.Gen}
	}
	out := &raw.Document{
		Objects:   make(map[raw.ObjectRef]raw.Object, len(doc.Objects)),
		Version:   doc.Version,
		Encrypted: doc.Encrypted,
	}
	for ref, obj := range doc.Objects {
		out.Objects[shift(ref)] = raw.MapRefs(obj, shift)
	}
	if doc.Trailer != nil {
		out.Trailer = raw.MapRefs(doc.Trailer, shift).(*raw.DictObj)
	} else {
		out.Trailer = raw.Dict()
	}
	return out
}

// Dangling lists the distinct references in doc, trailer included, whose
// target object is missing. The result is sorted by object number.
func Dangling(doc *raw.Document) []raw.ObjectRef {
	missing := make(map[raw.ObjectRef]bool)
	check := func(_ string, r raw.ObjectRef) {
		if _, ok := doc.Objects[r]; !ok {
			missing[r] = true
		}
	}
	for _, obj := range doc.Objects {
		raw.Refs(obj, check)
	}
	if doc.Trailer != nil {
		raw.Refs(doc.Trailer, check)
	}
	out := make([]raw.ObjectRef, 0, len(missing))
	for r := range missing {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Num != out[j].Num {
			return out[i].Num < out[j].Num
		}
		return out[i].Gen < out[j].Gen
	})
	return out
}
