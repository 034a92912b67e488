package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/recovery"
	"github.com/soamn/slicepdf/security"
	"github.com/soamn/slicepdf/xref"
)

// ErrEncrypted is returned for documents carrying an /Encrypt dictionary.
// Such files must be decrypted before their objects can be used.
var ErrEncrypted = errors.New("document is encrypted")

// Config controls high-level PDF parsing (xref resolution + object loading).
// A nil Recovery makes every structural problem fatal.
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Cache    Cache
	Logger   observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

// Parse reads every live object reachable through the cross-reference data.
// Bookkeeping objects (xref streams, object streams and the linearization
// dictionary) are not part of the returned graph.
func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
		Limits: filters.Limits{
			MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       p.cfg.Limits.MaxDecodeTime,
		},
	})
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	doc := raw.NewDocument(detectHeaderVersion(r))
	doc.Trailer = trailerFrom(table.Trailer())
	if _, ok := table.Trailer().Lookup("Encrypt"); ok {
		doc.Encrypted = true
		return doc, ErrEncrypted
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithReader(r).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithRecovery(p.cfg.Recovery).
		WithCache(p.cfg.Cache).
		Build()
	if err != nil {
		return nil, err
	}

	for _, objNum := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if objNum == 0 {
			continue // free head entry
		}
		e, _ := table.Lookup(objNum)
		gen := e.Gen
		if e.Kind == xref.EntryCompressed {
			gen = 0
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if p.cfg.Recovery != nil && p.cfg.Recovery.OnError(err, recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "parser"}) != recovery.ActionFail {
				p.cfg.Logger.Warn("skipping unreadable object",
					observability.Int("object", objNum), observability.Error("error", err))
				continue
			}
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[ref] = obj
	}

	// A repair scan only sees top-level objects; pull the rest out of any
	// object streams it found.
	if table.Type() == "repair" {
		p.expandAllObjectStreams(ctx, loader.(*objectLoader), doc)
	}

	dropBookkeeping(doc)

	if _, ok := doc.Trailer.Lookup("Root"); !ok {
		if ref, ok := findCatalog(doc); ok {
			doc.Trailer.Put("Root", raw.RefTo(ref))
		}
	}
	if _, _, err := doc.Catalog(); err != nil {
		return nil, err
	}
	if cat, _, _ := doc.Catalog(); cat != nil {
		if v, ok := cat.NameValue("Version"); ok && v > doc.Version {
			doc.Version = v
		}
	}
	return doc, nil
}

func (p *DocumentParser) expandAllObjectStreams(ctx context.Context, o *objectLoader, doc *raw.Document) {
	refs := make([]raw.ObjectRef, 0)
	for ref, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok {
			if t, _ := st.Dict.NameValue("Type"); t == "ObjStm" {
				refs = append(refs, ref)
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Num < refs[j].Num })
	for _, ref := range refs {
		objs, err := o.expandObjectStream(ctx, doc.Objects[ref].(*raw.StreamObj))
		if err != nil {
			p.cfg.Logger.Warn("skipping unreadable object stream",
				observability.Int("object", ref.Num), observability.Error("error", err))
			continue
		}
		for num, obj := range objs {
			key := raw.ObjectRef{Num: num}
			if _, exists := doc.Objects[key]; !exists {
				doc.Objects[key] = obj
			}
		}
	}
}

// trailerFrom keeps the trailer entries that describe the document rather
// than the file layout.
func trailerFrom(src *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, k := range []string{"Root", "Info", "ID", "Encrypt"} {
		if v, ok := src.Lookup(k); ok {
			out.Put(k, v)
		}
	}
	return out
}

func dropBookkeeping(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		var d *raw.DictObj
		switch v := obj.(type) {
		case *raw.DictObj:
			d = v
		case *raw.StreamObj:
			d = v.Dict
		default:
			continue
		}
		if t, _ := d.NameValue("Type"); t == "XRef" || t == "ObjStm" {
			delete(doc.Objects, ref)
			continue
		}
		if _, ok := d.Lookup("Linearized"); ok {
			delete(doc.Objects, ref)
		}
	}
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	var found []raw.ObjectRef
	for ref, obj := range doc.Objects {
		if d, ok := obj.(*raw.DictObj); ok {
			if t, _ := d.NameValue("Type"); t == "Catalog" {
				found = append(found, ref)
			}
		}
	}
	if len(found) == 0 {
		return raw.ObjectRef{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Num > found[j].Num })
	return found[0], true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, _ := r.ReadAt(buf, 0)
	buf = buf[:n]
	for i := 0; i+8 <= len(buf); i++ {
		if string(buf[i:i+5]) != "%PDF-" {
			continue
		}
		end := i + 5
		for end < len(buf) && (buf[end] == '.' || (buf[end] >= '0' && buf[end] <= '9')) {
			end++
		}
		if end > i+5 {
			return string(buf[i+5 : end])
		}
	}
	return "1.7"
}

// LoadError reports a source that could not be opened or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Load opens path and parses it into an object graph. Every failure,
// including a missing file, is returned as a *LoadError.
func Load(ctx context.Context, path string, cfg Config) (*raw.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	doc, err := NewDocumentParser(cfg).Parse(ctx, f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}
