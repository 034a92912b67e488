package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soamn/slicepdf/config"
	"github.com/soamn/slicepdf/history"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/recovery"
	"github.com/soamn/slicepdf/tools"
	"github.com/soamn/slicepdf/writer"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().ExecuteContext(context.Background()); err != nil {
		a.fail(err)
		os.Exit(1)
	}
}

// app is the state shared by every command: flags, the loaded
// configuration and the logger built from it.
type app struct {
	cfgPath    string
	jsonOutput bool
	logLevel   string

	cfg    config.Config
	logger observability.Logger

	stdout io.Writer
	stderr io.Writer
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slicepdf",
		Short: "Merge, rotate, compress and protect PDF files",
		Long: `slicepdf assembles new PDFs from pages of existing PDFs and from
raster images, and offers a few single-file tools next to it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default $XDG_CONFIG_HOME/slicepdf/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.jsonOutput, "json", "j", false, "Output as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.mergeCmd(),
		a.rotateCmd(),
		a.compressCmd(),
		a.protectCmd(),
		a.decryptCmd(),
		a.resizeCmd(),
		a.historyCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	opts := &slog.HandlerOptions{Level: observability.ParseLevel(cfg.Log.Level)}
	var h slog.Handler = slog.NewTextHandler(a.stderr, opts)
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(a.stderr, opts)
	}
	a.logger = observability.NewSlogLogger(slog.New(h))
	return nil
}

func (a *app) parserConfig() parser.Config {
	cfg := parser.Config{Logger: a.logger}
	if a.cfg.Merge.Lenient {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	return cfg
}

func (a *app) toolkit() *tools.Toolkit {
	return &tools.Toolkit{
		Parser: a.parserConfig(),
		Writer: writer.Config{Compression: a.cfg.Merge.Compression},
		QPDF:   a.cfg.Tools.QPDF,
		Logger: a.logger,
	}
}

// record stores a finished job. History problems are logged, never fatal.
func (a *app) record(ctx context.Context, e history.Entry) {
	if !a.cfg.History.Enabled {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		a.logger.Warn("history unavailable", observability.Error("error", err))
		return
	}
	defer store.Close()
	if err := store.Record(ctx, e); err != nil {
		a.logger.Warn("history not recorded", observability.Error("error", err))
	}
}

// finish records a single-file tool run and reports its outcome.
func (a *app) finish(ctx context.Context, kind, dest string, pages int, started time.Time, err error, msg string) error {
	e := history.Entry{
		Kind:        kind,
		Destination: dest,
		Pages:       pages,
		Status:      history.StatusSucceeded,
		StartedAt:   started,
		Duration:    time.Since(started),
	}
	if err != nil {
		e.Status, e.Error = history.StatusFailed, err.Error()
	}
	a.record(ctx, e)
	if err != nil {
		return err
	}
	a.print(result{OK: true, Message: msg, Destination: dest}, msg)
	return nil
}

type result struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message,omitempty"`
	Destination string `json:"destination,omitempty"`
	Job         string `json:"job,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	Objects     int    `json:"objects,omitempty"`
	Sources     int    `json:"sources,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
}

func (a *app) print(v any, text string) {
	if a.jsonOutput {
		printJSON(a.stdout, v)
		return
	}
	fmt.Fprintln(a.stdout, text)
}

func (a *app) fail(err error) {
	if a.jsonOutput {
		printJSON(a.stdout, result{OK: false, Message: err.Error()})
		return
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if a.jsonOutput {
				printJSON(a.stdout, map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
				return
			}
			fmt.Fprintf(a.stdout, "slicepdf %s (%s, %s)\n", version, commit, buildDate)
		},
	}
}
