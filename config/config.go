// Package config loads slicepdf settings. Values are layered: built-in
// defaults, then a YAML file, then SLICEPDF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soamn/slicepdf/imaging"
)

type Config struct {
	Merge   MergeConfig   `yaml:"merge"`
	Log     LogConfig     `yaml:"log"`
	Tools   ToolsConfig   `yaml:"tools"`
	History HistoryConfig `yaml:"history"`
}

type MergeConfig struct {
	// Reference page size in points for embedded images.
	PageWidth  float64 `yaml:"page_width"`
	PageHeight float64 `yaml:"page_height"`
	MaxDPI     float64 `yaml:"max_dpi"`
	// Compression is the zlib level used for written streams.
	Compression int    `yaml:"compression"`
	Filter      string `yaml:"filter"`
	Version     string `yaml:"version"`
	// Lenient lets the loader skip damaged objects and rebuild broken
	// cross-reference data.
	Lenient          bool `yaml:"lenient"`
	StrictReferences bool `yaml:"strict_references"`
	Workers          int  `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ToolsConfig struct {
	QPDF          string  `yaml:"qpdf"`
	JPEGQuality   int     `yaml:"jpeg_quality"`
	CompressScale float64 `yaml:"compress_scale"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Merge: MergeConfig{
			PageWidth:   595,
			PageHeight:  842,
			MaxDPI:      150,
			Compression: 9,
			Filter:      "catmullrom",
			Version:     "1.7",
			Lenient:     true,
			Workers:     2,
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Tools: ToolsConfig{QPDF: "qpdf", JPEGQuality: 65, CompressScale: 0.5},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
	}
}

// Dir is the directory holding config.yaml and the history database.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "slicepdf"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, "slicepdf"), nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultHistoryPath() string {
	dir, err := Dir()
	if err != nil {
		return "slicepdf-history.db"
	}
	return filepath.Join(dir, "history.db")
}

// Load reads path over the defaults and applies the environment. An empty
// path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.FromEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overrides fields from SLICEPDF_* variables looked up with lookup.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup("SLICEPDF_" + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup("SLICEPDF_" + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("SLICEPDF_%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup("SLICEPDF_" + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("SLICEPDF_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup("SLICEPDF_" + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("SLICEPDF_%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PAGE_WIDTH", &c.Merge.PageWidth)
	num("PAGE_HEIGHT", &c.Merge.PageHeight)
	num("MAX_DPI", &c.Merge.MaxDPI)
	integer("COMPRESSION", &c.Merge.Compression)
	str("FILTER", &c.Merge.Filter)
	str("PDF_VERSION", &c.Merge.Version)
	boolean("LENIENT", &c.Merge.Lenient)
	boolean("STRICT_REFERENCES", &c.Merge.StrictReferences)
	integer("WORKERS", &c.Merge.Workers)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("QPDF", &c.Tools.QPDF)
	integer("JPEG_QUALITY", &c.Tools.JPEGQuality)
	num("COMPRESS_SCALE", &c.Tools.CompressScale)
	boolean("HISTORY", &c.History.Enabled)
	str("HISTORY_PATH", &c.History.Path)
	return errors.Join(errs...)
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	var errs []error
	if c.Merge.PageWidth <= 0 || c.Merge.PageHeight <= 0 {
		errs = append(errs, fmt.Errorf("merge page size must be positive, got %gx%g", c.Merge.PageWidth, c.Merge.PageHeight))
	}
	if c.Merge.MaxDPI <= 0 {
		errs = append(errs, fmt.Errorf("merge max_dpi must be positive, got %g", c.Merge.MaxDPI))
	}
	if c.Merge.Compression < -1 || c.Merge.Compression > 9 {
		errs = append(errs, fmt.Errorf("merge compression must be between -1 and 9, got %d", c.Merge.Compression))
	}
	if _, err := imaging.ParseFilter(c.Merge.Filter); err != nil {
		errs = append(errs, fmt.Errorf("merge filter: %w", err))
	}
	if c.Merge.Workers < 0 {
		errs = append(errs, fmt.Errorf("merge workers must not be negative, got %d", c.Merge.Workers))
	}
	switch c.Merge.Version {
	case "1.4", "1.5", "1.6", "1.7", "2.0":
	default:
		errs = append(errs, fmt.Errorf("unsupported pdf version %q", c.Merge.Version))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	if c.Tools.JPEGQuality < 1 || c.Tools.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("tools jpeg_quality must be between 1 and 100, got %d", c.Tools.JPEGQuality))
	}
	if c.Tools.CompressScale <= 0 || c.Tools.CompressScale > 1 {
		errs = append(errs, fmt.Errorf("tools compress_scale must be in (0, 1], got %g", c.Tools.CompressScale))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history path must be set when history is enabled"))
	}
	return errors.Join(errs...)
}
