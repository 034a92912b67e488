package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/recovery"
	"github.com/soamn/slicepdf/scanner"
	"github.com/soamn/slicepdf/security"
	"github.com/soamn/slicepdf/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// ErrObjectNotFound is returned when the xref data has no entry for a
// requested object.
var ErrObjectNotFound = errors.New("object not found in xref")

type ObjectLoaderBuilder struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithReader(r io.ReaderAt) *ObjectLoaderBuilder {
	b.reader = r
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithRecovery(s recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = s
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.reader == nil || b.xrefTable == nil {
		return nil, errors.New("reader and xrefTable required")
	}
	return &objectLoader{
		reader:    b.reader,
		xrefTable: b.xrefTable,
		limits:    b.limits.WithDefaults(),
		cache:     b.cache,
		recovery:  b.recovery,
		objstm:    make(map[int]map[int]raw.Object),
	}, nil
}

type objectLoader struct {
	reader    io.ReaderAt
	xrefTable xref.Table
	limits    security.Limits
	cache     Cache
	recovery  recovery.Strategy

	mu       sync.Mutex
	objstm   map[int]map[int]raw.Object
	repaired xref.Table
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}

	o.mu.Lock()
	obj, err := o.loadLocked(ctx, ref.Num, 0)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

// loadLocked assumes the caller holds the loader mutex. depth counts nested
// loads triggered by indirect stream lengths.
func (o *objectLoader) loadLocked(ctx context.Context, objNum, depth int) (raw.Object, error) {
	if depth > o.limits.MaxIndirectDepth {
		return nil, errors.New("max indirect depth exceeded")
	}
	e, found := o.xrefTable.Lookup(objNum)
	if !found {
		return nil, ErrObjectNotFound
	}
	if e.Kind == xref.EntryCompressed {
		return o.loadFromObjectStream(ctx, objNum, e.Stream, e.Index, depth)
	}
	obj, err := o.loadAtOffset(ctx, objNum, e.Offset, e.Gen, depth)
	if err == nil {
		return obj, nil
	}
	// Offsets in damaged files are often shifted; retry from a repair scan
	// when the recovery strategy allows it.
	if !o.tolerate(err, objNum, e.Gen, e.Offset) {
		return nil, err
	}
	if o.repaired == nil {
		t, rerr := xref.Repair(ctx, o.reader)
		if rerr != nil {
			return nil, err
		}
		o.repaired = t
	}
	re, ok := o.repaired.Lookup(objNum)
	if !ok || re.Offset == e.Offset {
		return nil, err
	}
	return o.loadAtOffset(ctx, objNum, re.Offset, re.Gen, depth)
}

func (o *objectLoader) tolerate(err error, num, gen int, offset int64) bool {
	if o.recovery == nil {
		return false
	}
	loc := recovery.Location{ByteOffset: offset, ObjectNum: num, ObjectGen: gen, Component: "loader"}
	return o.recovery.OnError(err, loc) != recovery.ActionFail
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxArrayDepth:   o.limits.MaxNestingDepth,
		MaxDictDepth:    o.limits.MaxNestingDepth,
		MaxStreamLength: o.limits.MaxStreamLength,
	}
}

func (o *objectLoader) loadAtOffset(ctx context.Context, objNum int, offset int64, gen, depth int) (raw.Object, error) {
	// A fresh scanner per load keeps nested length lookups from sharing a cursor.
	rd := raw.NewObjectReader(scanner.New(o.reader, o.scannerConfig()))
	if err := rd.SeekTo(offset); err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	var lengthErr error
	ref, obj, err := rd.ReadIndirect(func(d *raw.DictObj) int64 {
		n, err := o.resolveStreamLength(ctx, d, objNum, depth)
		if err != nil {
			lengthErr = err
			return -1
		}
		return n
	})
	if err != nil {
		return nil, fmt.Errorf("object %d at offset %d: %w", objNum, offset, err)
	}
	if ref.Num != objNum || ref.Gen != gen {
		return nil, fmt.Errorf("object header %d %d does not match xref entry %d %d", ref.Num, ref.Gen, objNum, gen)
	}
	if lengthErr != nil && !o.tolerate(lengthErr, objNum, gen, offset) {
		return nil, lengthErr
	}
	return obj, nil
}

func (o *objectLoader) resolveStreamLength(ctx context.Context, dict *raw.DictObj, self, depth int) (int64, error) {
	val, ok := dict.Lookup("Length")
	if !ok {
		return -1, nil
	}
	switch v := val.(type) {
	case raw.NumberObj:
		return v.Int(), nil
	case raw.RefObj:
		if v.R.Num == self {
			return -1, fmt.Errorf("object %d: stream length refers to itself", self)
		}
		obj, err := o.loadLocked(ctx, v.R.Num, depth+1)
		if err != nil {
			return -1, fmt.Errorf("length reference %v: %w", v.R, err)
		}
		if num, ok := obj.(raw.NumberObj); ok {
			return num.Int(), nil
		}
		return -1, fmt.Errorf("length reference %v is not numeric", v.R)
	}
	return -1, nil
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, objNum, streamNum, idx, depth int) (raw.Object, error) {
	objs, ok := o.objstm[streamNum]
	if !ok {
		e, found := o.xrefTable.Lookup(streamNum)
		if !found || e.Kind != xref.EntryInUse {
			return nil, fmt.Errorf("object stream %d missing", streamNum)
		}
		streamObj, err := o.loadAtOffset(ctx, streamNum, e.Offset, e.Gen, depth+1)
		if err != nil {
			return nil, err
		}
		st, ok := streamObj.(*raw.StreamObj)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", streamNum)
		}
		objs, err = o.expandObjectStream(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		o.objstm[streamNum] = objs
	}
	if obj, ok := objs[objNum]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %d not found in object stream %d (index %d)", objNum, streamNum, idx)
}

// expandObjectStream decodes an /ObjStm and parses every object it holds.
func (o *objectLoader) expandObjectStream(ctx context.Context, st *raw.StreamObj) (map[int]raw.Object, error) {
	n, _ := st.Dict.IntValue("N")
	first, _ := st.Dict.IntValue("First")
	names, params := filters.ExtractFilters(st.Dict)
	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: o.limits.MaxDecompressedSize,
		MaxDecodeTime:       o.limits.MaxDecodeTime,
	})
	data, err := pipeline.Decode(ctx, st.Data, names, params)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(data)) {
		return nil, errors.New("First exceeds decoded length")
	}

	hdr := raw.NewObjectReader(scanner.New(bytes.NewReader(data[:first]), o.scannerConfig()))
	type slot struct{ num, off int }
	slots := make([]slot, 0, n)
	for int64(len(slots)) < n {
		numTok, err1 := hdr.Next()
		offTok, err2 := hdr.Next()
		if err1 != nil || err2 != nil {
			break
		}
		if numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			return nil, errors.New("malformed object stream header")
		}
		slots = append(slots, slot{num: int(numTok.Int), off: int(offTok.Int)})
	}

	body := data[first:]
	objs := make(map[int]raw.Object, len(slots))
	for _, s := range slots {
		if s.off < 0 || s.off > len(body) {
			continue
		}
		rd := raw.NewObjectReader(scanner.New(bytes.NewReader(body[s.off:]), o.scannerConfig()))
		obj, err := rd.ReadObject()
		if err != nil {
			if !o.tolerate(err, s.num, 0, int64(s.off)) {
				return nil, fmt.Errorf("object %d: %w", s.num, err)
			}
			continue
		}
		objs[s.num] = obj
	}
	return objs, nil
}
