package raw

import (
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key Name) (Object, bool)
	Set(key Name, value Object)
	Keys() []Name
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (undecoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is an object graph: every indirect object keyed by its id, with
// references stored as plain ObjectRef values so cycles are just data.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	Encrypted bool
}

// NewDocument returns an empty graph with an empty trailer.
func NewDocument(version string) *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: Dict(),
		Version: version,
	}
}

// MaxNum returns the highest object number present in the graph, or 0 for
// an empty graph.
func (d *Document) MaxNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	obj, ok := d.Objects[ref]
	return obj, ok
}

// Resolve follows references until it reaches a direct object. Dangling
// references and reference loops resolve to NullObj.
func (d *Document) Resolve(obj Object) Object {
	for hops := 0; hops < 32; hops++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// ResolveDict resolves obj and returns it as a dictionary. Streams yield
// their dictionary.
func (d *Document) ResolveDict(obj Object) (*DictObj, bool) {
	switch v := d.Resolve(obj).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, v.Dict != nil
	}
	return nil, false
}

// Catalog returns the document catalog named by the trailer's Root entry.
func (d *Document) Catalog() (*DictObj, ObjectRef, error) {
	if d.Trailer == nil {
		return nil, ObjectRef{}, fmt.Errorf("document has no trailer")
	}
	rootObj, ok := d.Trailer.Get(NameLiteral("Root"))
	if !ok {
		return nil, ObjectRef{}, fmt.Errorf("trailer has no Root entry")
	}
	ref, ok := rootObj.(RefObj)
	if !ok {
		return nil, ObjectRef{}, fmt.Errorf("trailer Root is %s, not a reference", rootObj.Type())
	}
	cat, ok := d.ResolveDict(ref)
	if !ok {
		return nil, ref.R, fmt.Errorf("catalog %s is missing or not a dictionary", ref.R)
	}
	return cat, ref.R, nil
}
