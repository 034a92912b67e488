package renumber

import (
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
)

func nestedDoc() *raw.Document {
	doc := raw.NewDocument("1.6")
	inner := raw.Dict()
	inner.Put("Font", raw.Ref(3, 0))
	mid := raw.Dict()
	mid.Put("Deep", inner)
	outer := raw.Dict()
	outer.Put("Res", mid)
	outer.Put("Kids", raw.NewArray(raw.Ref(2, 0), raw.NewArray(raw.Ref(3, 0))))
	doc.Objects[raw.ObjectRef{Num: 1}] = outer

	page := raw.Dict()
	page.Put("Parent", raw.Ref(1, 0)) // cycle back to 1
	doc.Objects[raw.ObjectRef{Num: 2}] = page

	sd := raw.Dict()
	sd.Put("Length", raw.Ref(4, 0))
	doc.Objects[raw.ObjectRef{Num: 3, Gen: 2}] = raw.NewStream(sd, []byte("payload"))
	doc.Objects[raw.ObjectRef{Num: 4}] = raw.NumberInt(7)

	doc.Trailer.Put("Root", raw.Ref(1, 0))
	return doc
}

func TestApplyShiftsIdsAndNestedReferences(t *testing.T) {
	src := nestedDoc()
	out := Apply(src, 10)

	if len(out.Objects) != len(src.Objects) {
		t.Fatalf("object count changed: %d vs %d", len(out.Objects), len(src.Objects))
	}
	for _, ref := range []raw.ObjectRef{{Num: 11}, {Num: 12}, {Num: 13, Gen: 2}, {Num: 14}} {
		if _, ok := out.Objects[ref]; !ok {
			t.Fatalf("expected %v in renumbered graph", ref)
		}
	}

	outer := out.Objects[raw.ObjectRef{Num: 11}].(*raw.DictObj)
	res, _ := outer.Lookup("Res")
	deep, _ := res.(*raw.DictObj).Lookup("Deep")
	font, _ := deep.(*raw.DictObj).Lookup("Font")
	if font != raw.Ref(13, 0) {
		t.Fatalf("three-level nested reference not rewritten: %v", font)
	}
	kids, _ := outer.Lookup("Kids")
	items := kids.(*raw.ArrayObj).Items
	if items[0] != raw.Ref(12, 0) || items[1].(*raw.ArrayObj).Items[0] != raw.Ref(13, 0) {
		t.Fatalf("array references not rewritten: %v", items)
	}

	page := out.Objects[raw.ObjectRef{Num: 12}].(*raw.DictObj)
	if p, _ := page.Lookup("Parent"); p != raw.Ref(11, 0) {
		t.Fatalf("cyclic parent not rewritten: %v", p)
	}

	st := out.Objects[raw.ObjectRef{Num: 13, Gen: 2}].(*raw.StreamObj)
	if l, _ := st.Dict.Lookup("Length"); l != raw.Ref(14, 0) {
		t.Fatalf("stream dictionary reference not rewritten: %v", l)
	}
	if string(st.Data) != "payload" {
		t.Fatalf("stream payload changed")
	}

	if root, _ := out.Trailer.Lookup("Root"); root != raw.Ref(11, 0) {
		t.Fatalf("trailer Root not rewritten: %v", root)
	}
	if out.MaxNum() != src.MaxNum()+10 {
		t.Fatalf("expected max %d, got %d", src.MaxNum()+10, out.MaxNum())
	}
	if out.Version != "1.6" {
		t.Fatalf("version lost")
	}
}

func TestApplyLeavesSourceUntouched(t *testing.T) {
	src := nestedDoc()
	_ = Apply(src, 100)
	page := src.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	if p, _ := page.Lookup("Parent"); p != raw.Ref(1, 0) {
		t.Fatalf("source graph was mutated: %v", p)
	}
	if root, _ := src.Trailer.Lookup("Root"); root != raw.Ref(1, 0) {
		t.Fatalf("source trailer was mutated: %v", root)
	}
}

func TestApplyIdsAreDisjointFromLowerGraphs(t *testing.T) {
	a := nestedDoc()
	b := Apply(nestedDoc(), a.MaxNum()+1)
	for ref := range b.Objects {
		if _, clash := a.Objects[ref]; clash {
			t.Fatalf("id %v present in both graphs", ref)
		}
		if ref.Num <= a.MaxNum() {
			t.Fatalf("id %v not above offset", ref)
		}
	}
}

func TestDanglingReferencesSurviveAndAreReported(t *testing.T) {
	src := nestedDoc()
	page := src.Objects[raw.ObjectRef{Num: 2}].(*raw.DictObj)
	page.Put("Annots", raw.NewArray(raw.Ref(40, 0), raw.Ref(40, 0), raw.Ref(9, 0)))
	// 3 0 R is dangling too: the stream lives at generation 2.
	if got := Dangling(src); len(got) != 3 || got[0] != (raw.ObjectRef{Num: 3}) || got[1].Num != 9 || got[2].Num != 40 {
		t.Fatalf("unexpected dangling set %v", got)
	}

	out := Apply(src, 5)
	got := Dangling(out)
	if len(got) != 3 || got[0].Num != 8 || got[1].Num != 14 || got[2].Num != 45 {
		t.Fatalf("dangling references should shift with the graph, got %v", got)
	}
}

func TestDanglingEmptyForClosedGraph(t *testing.T) {
	doc := raw.NewDocument("1.7")
	a := raw.Dict()
	a.Put("Next", raw.Ref(2, 0))
	b := raw.Dict()
	b.Put("Next", raw.Ref(1, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = a
	doc.Objects[raw.ObjectRef{Num: 2}] = b
	if got := Dangling(doc); len(got) != 0 {
		t.Fatalf("expected no dangling refs, got %v", got)
	}
}
