package merge

import (
	"github.com/soamn/slicepdf/ir/raw"
)

// Target is the document being assembled. Objects are only ever added, and
// the id counter always stays above every object number in the graph.
type Target struct {
	doc   *raw.Document
	next  int
	pages []raw.ObjectRef
	kids  map[raw.ObjectRef]bool
}

// NewTarget returns an empty target whose first allocated id is 1.
func NewTarget(version string) *Target {
	if version == "" {
		version = "1.7"
	}
	return &Target{
		doc:  raw.NewDocument(version),
		next: 1,
		kids: make(map[raw.ObjectRef]bool),
	}
}

// Allocate returns a fresh object id.
func (t *Target) Allocate() raw.ObjectRef {
	ref := raw.ObjectRef{Num: t.next}
	t.next++
	return ref
}

// Next is the id the next Allocate call will return.
func (t *Target) Next() int { return t.next }

func (t *Target) reserveThrough(num int) {
	if num >= t.next {
		t.next = num + 1
	}
}

// Add stores obj under ref, replacing any object already there.
func (t *Target) Add(ref raw.ObjectRef, obj raw.Object) {
	t.doc.Objects[ref] = obj
	t.reserveThrough(ref.Num)
}

// Has reports whether ref is already in the graph.
func (t *Target) Has(ref raw.ObjectRef) bool {
	_, ok := t.doc.Objects[ref]
	return ok
}

// AppendPage records ref as the next page of the output.
func (t *Target) AppendPage(ref raw.ObjectRef) {
	t.pages = append(t.pages, ref)
	t.kids[ref] = true
}

func (t *Target) isPage(ref raw.ObjectRef) bool { return t.kids[ref] }

// Pages returns the recorded page ids in output order.
func (t *Target) Pages() []raw.ObjectRef {
	return append([]raw.ObjectRef(nil), t.pages...)
}

// Document exposes the graph being built.
func (t *Target) Document() *raw.Document { return t.doc }
