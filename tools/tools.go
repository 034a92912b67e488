// Package tools holds single-document operations that sit beside merging:
// page rotation, image recompression, and password protection.
package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/writer"
)

// Toolkit carries the settings shared by every tool. The zero value is
// ready to use.
type Toolkit struct {
	Parser parser.Config
	Writer writer.Config
	// QPDF is the qpdf executable used by Protect and Decrypt.
	QPDF   string
	Runner Runner
	Logger observability.Logger
}

func (k *Toolkit) logger() observability.Logger {
	if k.Logger == nil {
		return observability.NopLogger{}
	}
	return k.Logger
}

func (k *Toolkit) load(ctx context.Context, path string) (*raw.Document, error) {
	cfg := k.Parser
	if cfg.Logger == nil {
		cfg.Logger = k.logger()
	}
	return parser.Load(ctx, path, cfg)
}

func (k *Toolkit) limits() filters.Limits {
	l := k.Parser.Limits.WithDefaults()
	return filters.Limits{MaxDecompressedSize: l.MaxDecompressedSize, MaxDecodeTime: l.MaxDecodeTime}
}

// save writes doc to path. A partially written file is removed.
func (k *Toolkit) save(ctx context.Context, doc *raw.Document, path string) error {
	if err := writer.WriteFile(ctx, doc, path, k.Writer); err != nil {
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
