package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/recovery"
	"github.com/soamn/slicepdf/scanner"
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. In-use objects carry a byte Offset and Gen;
// compressed objects live at position Index inside object stream Stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table maps object numbers to their locations.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Trailer() *raw.DictObj
	Type() string
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
	Limits       filters.Limits
}

// NewResolver returns a resolver for classic tables, xref streams and
// hybrid files, following Prev chains of incremental updates.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	return &chainResolver{cfg: cfg}
}

type chainResolver struct {
	cfg ResolverConfig
}

func (c *chainResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data := readAll(r)
	t, err := c.resolve(ctx, data)
	if err == nil {
		return t, nil
	}
	if c.cfg.Recovery == nil {
		return nil, err
	}
	if c.cfg.Recovery.OnError(err, recovery.Location{Component: "xref"}) == recovery.ActionFail {
		return nil, err
	}
	return repair(ctx, data)
}

// Repair rebuilds a table by scanning r for object headers.
func Repair(ctx context.Context, r io.ReaderAt) (Table, error) {
	return repair(ctx, readAll(r))
}

func (c *chainResolver) resolve(ctx context.Context, data []byte) (Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	out := &table{entries: make(map[int]Entry), trailer: raw.Dict()}
	visited := make(map[int64]bool)
	if err := c.loadSection(ctx, data, offset, out, visited, 0); err != nil {
		return nil, err
	}
	if _, ok := out.trailer.Lookup("Root"); !ok {
		return nil, errors.New("xref trailer has no Root entry")
	}
	return out, nil
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	offset, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if offset <= 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", offset)
	}
	return offset, nil
}

// loadSection merges the section at offset into out. Sections are visited
// newest first, so entries and trailer keys already present win.
func (c *chainResolver) loadSection(ctx context.Context, data []byte, offset int64, out *table, visited map[int64]bool, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if visited[offset] {
		return nil
	}
	if depth > c.cfg.MaxXRefDepth {
		return fmt.Errorf("xref chain deeper than %d sections", c.cfg.MaxXRefDepth)
	}
	if offset < 0 || offset >= int64(len(data)) {
		return fmt.Errorf("xref offset out of range: %d", offset)
	}
	visited[offset] = true

	rd := raw.NewObjectReader(scanner.New(bytes.NewReader(data), scanner.Config{}))
	if err := rd.SeekTo(offset); err != nil {
		return err
	}
	first, err := rd.Next()
	if err != nil {
		return fmt.Errorf("read xref at %d: %w", offset, err)
	}

	var trailer *raw.DictObj
	if first.Type == scanner.TokenKeyword && first.Str == "xref" {
		trailer, err = parseClassic(rd, out)
		if err != nil {
			return err
		}
		out.noteKind("table")
	} else {
		rd.Unread(first)
		trailer, err = c.parseStream(ctx, rd, out)
		if err != nil {
			return err
		}
		out.noteKind("stream")
	}
	out.mergeTrailer(trailer)

	// Hybrid files point at a supplementary xref stream from the classic
	// trailer; its entries rank just below the table that references it.
	if stm, ok := trailer.IntValue("XRefStm"); ok {
		if err := c.loadSection(ctx, data, stm, out, visited, depth+1); err != nil {
			return err
		}
	}
	if prev, ok := trailer.IntValue("Prev"); ok {
		return c.loadSection(ctx, data, prev, out, visited, depth+1)
	}
	return nil
}

func parseClassic(rd *raw.ObjectReader, out *table) (*raw.DictObj, error) {
	for {
		tok, err := rd.Next()
		if err != nil {
			return nil, fmt.Errorf("read xref subsection: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		countTok, err := rd.Next()
		if err != nil {
			return nil, fmt.Errorf("read xref subsection: %w", err)
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt || countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at offset %d", tok.Pos)
		}
		start, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := rd.Next()
			genTok, err2 := rd.Next()
			kindTok, err3 := rd.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("unexpected end of xref section: %w", err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at offset %d", offTok.Pos)
			}
			e := Entry{Kind: EntryFree, Offset: offTok.Int, Gen: int(genTok.Int)}
			switch kindTok.Str {
			case "n":
				e.Kind = EntryInUse
			case "f":
			default:
				return nil, fmt.Errorf("invalid xref entry type %q", kindTok.Str)
			}
			// Object 0 is always the head of the free list.
			if e.Kind == EntryInUse && e.Offset == 0 {
				e.Kind = EntryFree
			}
			out.add(start+i, e)
		}
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return trailer, nil
}

func (c *chainResolver) parseStream(ctx context.Context, rd *raw.ObjectReader, out *table) (*raw.DictObj, error) {
	_, obj, err := rd.ReadIndirect(func(d *raw.DictObj) int64 {
		if n, ok := d.IntValue("Length"); ok {
			return n
		}
		return -1
	})
	if err != nil {
		return nil, fmt.Errorf("read xref stream: %w", err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("xref offset does not point at a table or stream")
	}
	if t, _ := stream.Dict.NameValue("Type"); t != "XRef" {
		return nil, fmt.Errorf("xref stream has Type %q", t)
	}
	names, params := filters.ExtractFilters(stream.Dict)
	payload, err := filters.NewDefaultPipeline(c.cfg.Limits).Decode(ctx, stream.Data, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	if err := decodeStreamEntries(stream.Dict, payload, out); err != nil {
		return nil, err
	}
	return stream.Dict, nil
}

func decodeStreamEntries(dict *raw.DictObj, payload []byte, out *table) error {
	wObj, _ := dict.Lookup("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() < 3 {
		return errors.New("xref stream missing W array")
	}
	var w [3]int
	rowLen := 0
	for i := 0; i < 3; i++ {
		n, ok := wArr.Items[i].(raw.NumberObj)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return errors.New("xref stream W entries must be small integers")
		}
		w[i] = int(n.Int())
		rowLen += w[i]
	}
	if rowLen == 0 {
		return errors.New("xref stream W describes empty rows")
	}

	var index []int
	if idx, ok := dict.Lookup("Index"); ok {
		if arr, ok := idx.(*raw.ArrayObj); ok {
			for _, it := range arr.Items {
				if n, ok := it.(raw.NumberObj); ok {
					index = append(index, int(n.Int()))
				}
			}
		}
	}
	if len(index) == 0 {
		size, _ := dict.IntValue("Size")
		index = []int{0, int(size)}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(payload) {
				return nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			kind := int64(1)
			if w[0] > 0 {
				kind = readBigEndian(row[:w[0]])
			}
			f2 := readBigEndian(row[w[0] : w[0]+w[1]])
			f3 := readBigEndian(row[w[0]+w[1]:])
			var e Entry
			switch kind {
			case 0:
				e = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				e = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				e = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			default:
				// Unknown types are treated as null references.
				continue
			}
			out.add(start+j, e)
		}
	}
	return nil
}

func readBigEndian(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

type table struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

// add records e unless a newer section already described objNum.
func (t *table) add(objNum int, e Entry) {
	if _, seen := t.entries[objNum]; seen {
		return
	}
	t.entries[objNum] = e
}

func (t *table) mergeTrailer(d *raw.DictObj) {
	for k, v := range d.KV {
		switch k {
		case "Prev", "XRefStm", "W", "Index", "Filter", "DecodeParms", "Length", "Type":
			continue
		}
		if _, ok := t.trailer.KV[k]; !ok {
			t.trailer.KV[k] = v
		}
	}
}

func (t *table) noteKind(kind string) {
	switch {
	case t.kind == "":
		t.kind = kind
	case t.kind != kind:
		t.kind = "hybrid"
	}
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) Type() string          { return t.kind }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
