package merge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/renumber"
)

// Source is a loaded PDF whose object numbers have already been moved into
// the target's id space. It is never modified after loading.
type Source struct {
	Path   string
	Doc    *raw.Document
	Pages  parser.PageIndex
	MaxNum int
}

// SourceCache loads every source path at most once per merge.
type SourceCache struct {
	target  *Target
	cfg     parser.Config
	strict  bool
	logger  observability.Logger
	sources map[string]*Source
	loads   int
}

// NewSourceCache returns an empty cache that renumbers into target.
func NewSourceCache(target *Target, cfg parser.Config, strictRefs bool, logger observability.Logger) *SourceCache {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &SourceCache{
		target:  target,
		cfg:     cfg,
		strict:  strictRefs,
		logger:  logger,
		sources: make(map[string]*Source),
	}
}

// Resolve returns the cached source for path, loading it on first use. A
// new source is renumbered by the target's counter, which then moves past
// the source's highest id. Failures are *parser.LoadError values.
func (c *SourceCache) Resolve(ctx context.Context, path string) (*Source, error) {
	key := filepath.Clean(path)
	if src, ok := c.sources[key]; ok {
		return src, nil
	}

	doc, err := parser.Load(ctx, path, c.cfg)
	if err != nil {
		return nil, err
	}
	c.loads++

	offset := c.target.Next()
	shifted := renumber.Apply(doc, offset)
	if dangling := renumber.Dangling(shifted); len(dangling) > 0 {
		if c.strict {
			return nil, &parser.LoadError{Path: path, Err: fmt.Errorf("%d unresolved references, first %v", len(dangling), dangling[0])}
		}
		c.logger.Warn("source has unresolved references",
			observability.String("path", path),
			observability.Int("count", len(dangling)))
	}

	pages, err := parser.Pages(shifted)
	if err != nil {
		return nil, &parser.LoadError{Path: path, Err: err}
	}
	src := &Source{Path: path, Doc: shifted, Pages: pages, MaxNum: shifted.MaxNum()}
	c.target.reserveThrough(src.MaxNum)
	c.sources[key] = src

	c.logger.Debug("source loaded",
		observability.String("path", path),
		observability.Int("offset", offset),
		observability.Int(observability.MetricObjectCount, len(shifted.Objects)),
		observability.Int(observability.MetricPageCount, pages.Len()))
	return src, nil
}

// Loads counts the sources actually parsed.
func (c *SourceCache) Loads() int { return c.loads }

// Len is the number of distinct cached sources.
func (c *SourceCache) Len() int { return len(c.sources) }
