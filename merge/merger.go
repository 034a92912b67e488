package merge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/soamn/slicepdf/imagepage"
	"github.com/soamn/slicepdf/imaging"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/writer"
)

// DefaultProducer is recorded in the Info dictionary of merged files.
const DefaultProducer = "slicepdf"

// Options configures a Merger. The zero value merges onto A4 with the
// default writer settings.
type Options struct {
	Parser parser.Config
	Page   imagepage.Options
	Writer writer.Config
	// Version of the output file. Defaults to 1.7.
	Version  string
	Producer string
	// StrictReferences fails a source whose graph has references to
	// missing objects instead of passing them through.
	StrictReferences bool
	Logger           observability.Logger
	Tracer           observability.Tracer
}

// Request is one merge. Sources maps the logical ids named by the
// instructions to file paths.
type Request struct {
	Instructions []Instruction
	Sources      map[string]string
	Destination  string
}

// Result summarizes a successful merge.
type Result struct {
	Destination string
	Pages       int
	Objects     int
	Sources     int
	Duration    time.Duration
}

// Message is the user-facing success line.
func (r Result) Message() string {
	return fmt.Sprintf("PDF merged successfully at %s", r.Destination)
}

// Merger runs merges. It holds no per-merge state, so one Merger may serve
// concurrent calls.
type Merger struct {
	opts Options
}

// New returns a Merger with defaults filled in for unset options.
func New(opts Options) *Merger {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NopTracer()
	}
	if opts.Producer == "" {
		opts.Producer = DefaultProducer
	}
	if opts.Parser.Logger == nil {
		opts.Parser.Logger = opts.Logger
	}
	return &Merger{opts: opts}
}

// run is the state of one merge: its own target and source cache.
type run struct {
	opts   Options
	target *Target
	cache  *SourceCache
	logger observability.Logger
}

// Build resolves every instruction in order and assembles the output graph
// without writing it. The first failure aborts the merge.
func (m *Merger) Build(ctx context.Context, instructions []Instruction, sources map[string]string) (*raw.Document, Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, Result{}, err
	}
	if _, err := imaging.ParseFilter(m.opts.Page.Filter); err != nil {
		return nil, Result{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	start := time.Now()
	ctx, span := m.opts.Tracer.StartSpan(ctx, "merge.build")
	defer span.Finish()

	target := NewTarget(m.opts.Version)
	r := &run{
		opts:   m.opts,
		target: target,
		cache:  NewSourceCache(target, m.opts.Parser, m.opts.StrictReferences, m.opts.Logger),
		logger: m.opts.Logger,
	}
	for i, in := range instructions {
		if err := r.apply(ctx, i, in, sources); err != nil {
			span.SetError(err)
			return nil, Result{}, err
		}
	}

	doc, err := Assemble(target, m.opts.Producer)
	if err != nil {
		span.SetError(err)
		return nil, Result{}, err
	}
	res := Result{
		Pages:    len(target.pages),
		Objects:  len(doc.Objects),
		Sources:  r.cache.Len(),
		Duration: time.Since(start),
	}
	span.SetTag("pages", res.Pages)
	return doc, res, nil
}

func (r *run) apply(ctx context.Context, i int, in Instruction, sources map[string]string) error {
	ctx, span := r.opts.Tracer.StartSpan(ctx, "merge.instruction")
	defer span.Finish()
	span.SetTag("index", i)

	id := in.SourceID()
	path, ok := sources[id]
	if !ok || path == "" {
		err := newError(KindSourceNotFound, id, nil)
		span.SetError(err)
		return err
	}
	ref, err := in.resolve(ctx, r, path)
	if err != nil {
		span.SetError(err)
		return err
	}
	r.target.AppendPage(ref)
	r.logger.Debug("page resolved",
		observability.Int("instruction", i),
		observability.String("source", id),
		observability.Int("object", ref.Num))
	return nil
}

func (r *run) copyPage(ctx context.Context, path string, n int) (raw.ObjectRef, error) {
	src, err := r.cache.Resolve(ctx, path)
	if err != nil {
		return raw.ObjectRef{}, newError(KindLoad, path, err)
	}
	ref, ok := copyPage(r.target, src, n)
	if !ok {
		return raw.ObjectRef{}, &Error{
			Kind:   KindPageOutOfRange,
			Source: path,
			Page:   n,
			Err:    fmt.Errorf("source has %d pages", src.Pages.Len()),
		}
	}
	return ref, nil
}

func (r *run) embedImage(path string) (raw.ObjectRef, error) {
	start := time.Now()
	img, _, err := imaging.Open(path)
	if err != nil {
		return raw.ObjectRef{}, newError(KindImageDecode, path, err)
	}
	pg, err := imagepage.Synthesize(img, r.target, r.opts.Page)
	if err != nil {
		return raw.ObjectRef{}, newError(KindImageDecode, path, err)
	}
	for ref, obj := range pg.Objects {
		r.target.Add(ref, obj)
	}
	r.logger.Debug("image page synthesized",
		observability.String("path", path),
		observability.Int("width", pg.PixelWidth),
		observability.Int("height", pg.PixelHeight),
		observability.Duration(observability.MetricImageTime, time.Since(start)))
	return pg.Ref, nil
}

// Merge builds the output and writes it to req.Destination. The writer is
// only invoked once every instruction has resolved, so a failed
// instruction never creates the destination. A failed write may leave a
// partial file behind; callers should remove it.
func (m *Merger) Merge(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if req.Destination == "" {
		return Result{}, newError(KindWrite, "", errors.New("no destination"))
	}
	doc, res, err := m.Build(ctx, req.Instructions, req.Sources)
	if err != nil {
		m.opts.Logger.Error("merge failed", observability.Error("error", err))
		return Result{}, err
	}

	wstart := time.Now()
	if err := writer.WriteFile(ctx, doc, req.Destination, m.opts.Writer); err != nil {
		err = newError(KindWrite, req.Destination, err)
		m.opts.Logger.Error("merge failed", observability.Error("error", err))
		return Result{}, err
	}
	res.Destination = req.Destination
	res.Duration = time.Since(start)
	m.opts.Logger.Info("merge complete",
		observability.String("destination", req.Destination),
		observability.Int(observability.MetricPageCount, res.Pages),
		observability.Int(observability.MetricObjectCount, res.Objects),
		observability.Int(observability.MetricSourceCount, res.Sources),
		observability.Duration(observability.MetricWriteTime, time.Since(wstart)),
		observability.Duration(observability.MetricMergeTime, res.Duration))
	return res, nil
}

// DefaultFileName suggests an output name from the stems of the source
// paths, in order and without repeats.
func DefaultFileName(paths []string) string {
	seen := make(map[string]bool)
	var parts []string
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if stem == "" || stem == "." || stem == string(filepath.Separator) || seen[stem] {
			continue
		}
		seen[stem] = true
		parts = append(parts, stem)
	}
	if len(parts) == 0 {
		return "slice-pdf-merged.pdf"
	}
	return "slice-pdf-merged-" + strings.Join(parts, "-") + ".pdf"
}
