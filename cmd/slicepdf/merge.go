package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soamn/slicepdf/history"
	"github.com/soamn/slicepdf/imagepage"
	"github.com/soamn/slicepdf/manifest"
	"github.com/soamn/slicepdf/merge"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/worker"
	"github.com/soamn/slicepdf/writer"
)

func (a *app) mergeCmd() *cobra.Command {
	var manifestPath, output, saveManifest string
	cmd := &cobra.Command{
		Use:   "merge [flags] [input[:pages]...]",
		Short: "Merge pages of PDFs and images into one PDF",
		Long: `Merge builds a new PDF from an ordered list of inputs. Each PDF input
may select pages ("report.pdf:1,3-5"); without a selection every page is
used. Image inputs become one page each. Alternatively, --manifest reads
the job from a YAML or JSON file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.buildManifest(ctx, manifestPath, args)
			if err != nil {
				return err
			}
			if output != "" {
				m.Output = output
			}
			if m.Output == "" {
				m.Output = merge.DefaultFileName(m.Paths())
			}
			if saveManifest != "" {
				if err := writeManifest(m, saveManifest); err != nil {
					return err
				}
			}
			return a.runMerge(ctx, m)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Read the job from a YAML or JSON manifest")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default slice-pdf-merged-<inputs>.pdf)")
	cmd.Flags().StringVar(&saveManifest, "save-manifest", "", "Also write the job as a manifest (.json or .yaml)")
	return cmd
}

func (a *app) buildManifest(ctx context.Context, path string, args []string) (*manifest.Manifest, error) {
	switch {
	case path != "" && len(args) > 0:
		return nil, errors.New("use either --manifest or input arguments, not both")
	case path != "":
		return manifest.Load(path)
	case len(args) == 0:
		return nil, errors.New("nothing to merge: pass inputs or --manifest")
	}
	return manifest.FromArgs(ctx, args, a.parserConfig())
}

func writeManifest(m *manifest.Manifest, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = m.JSON()
	} else {
		data, err = m.YAML()
	}
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *app) merger() *merge.Merger {
	c := a.cfg.Merge
	return merge.New(merge.Options{
		Parser: a.parserConfig(),
		Page: imagepage.Options{
			PageWidth:  c.PageWidth,
			PageHeight: c.PageHeight,
			MaxDPI:     c.MaxDPI,
			Filter:     c.Filter,
		},
		Writer:           writer.Config{Version: writer.PDFVersion(c.Version), Compression: c.Compression},
		Version:          c.Version,
		StrictReferences: c.StrictReferences,
		Logger:           a.logger,
	})
}

// runMerge runs the job on a worker and waits for it. A failed write can
// leave a partial file, which is removed.
func (a *app) runMerge(ctx context.Context, m *manifest.Manifest) error {
	pool := worker.NewPool(a.cfg.Merge.Workers, a.logger)
	defer pool.Close()

	merger := a.merger()
	req := m.Request()
	started := time.Now()
	job := pool.Submit(func(ctx context.Context) (any, error) {
		return merger.Merge(ctx, req)
	})
	a.logger.Debug("merge submitted", observability.String("job", job.ID),
		observability.Int("instructions", len(req.Instructions)))

	v, err := job.Wait(ctx)
	entry := history.Entry{
		ID:          job.ID,
		Kind:        "merge",
		Destination: req.Destination,
		StartedAt:   started,
		Status:      history.StatusSucceeded,
	}
	if err != nil {
		if errors.Is(err, merge.ErrWrite) {
			if rmErr := os.Remove(req.Destination); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				a.logger.Warn("could not remove partial output", observability.Error("error", rmErr))
			}
		}
		entry.Status, entry.Error = history.StatusFailed, err.Error()
		entry.Duration = time.Since(started)
		a.record(ctx, entry)
		return err
	}

	res := v.(merge.Result)
	entry.Pages, entry.Duration = res.Pages, res.Duration
	a.record(ctx, entry)
	a.print(result{
		OK:          true,
		Message:     res.Message(),
		Destination: res.Destination,
		Job:         job.ID,
		Pages:       res.Pages,
		Objects:     res.Objects,
		Sources:     res.Sources,
		DurationMS:  res.Duration.Milliseconds(),
	}, res.Message())
	return nil
}
