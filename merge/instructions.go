package merge

import (
	"context"

	"github.com/soamn/slicepdf/ir/raw"
)

// Instruction is one output page. The set of instructions is closed:
// CopyPage and EmbedImage are the only implementations.
type Instruction interface {
	// SourceID is the logical id resolved through Request.Sources.
	SourceID() string
	resolve(ctx context.Context, r *run, path string) (raw.ObjectRef, error)
}

// CopyPage copies page Page (1-based) of a PDF source.
type CopyPage struct {
	Source string
	Page   int
}

// SourceID names the PDF source.
func (c CopyPage) SourceID() string { return c.Source }

func (c CopyPage) resolve(ctx context.Context, r *run, path string) (raw.ObjectRef, error) {
	return r.copyPage(ctx, path, c.Page)
}

// EmbedImage turns a raster image source into a new page.
type EmbedImage struct {
	Source string
}

// SourceID names the image source.
func (e EmbedImage) SourceID() string { return e.Source }

func (e EmbedImage) resolve(ctx context.Context, r *run, path string) (raw.ObjectRef, error) {
	return r.embedImage(path)
}
