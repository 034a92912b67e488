// Package manifest describes merge jobs: which files take part, which page
// of which file goes where, and where the result is written. Jobs come
// from YAML or JSON files or from command-line arguments.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soamn/slicepdf/merge"
)

// Manifest is one merge job. Sources maps logical ids to file paths.
type Manifest struct {
	Sources      map[string]string
	Instructions []merge.Instruction
	Output       string
}

// Request turns the manifest into a merge request.
func (m *Manifest) Request() merge.Request {
	return merge.Request{Instructions: m.Instructions, Sources: m.Sources, Destination: m.Output}
}

// Paths lists source paths in the order the instructions first use them.
func (m *Manifest) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, in := range m.Instructions {
		p, ok := m.Sources[in.SourceID()]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

var ErrEmpty = errors.New("manifest has no instructions")

// Load reads a job file. Files ending in .json are read as JSON, anything
// else as YAML. Relative source paths are taken relative to the file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.rebase(filepath.Dir(path))
	return m, nil
}

// Parse decodes data as "yaml" or "json". An empty format sniffs the first
// non-space byte.
func Parse(data []byte, format string) (*Manifest, error) {
	if format == "" {
		format = "yaml"
		if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '{' {
			format = "json"
		}
	}
	var (
		m   *Manifest
		err error
	)
	switch format {
	case "yaml", "yml":
		m, err = parseYAML(data)
	case "json":
		m, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(m.Instructions) == 0 {
		return nil, ErrEmpty
	}
	return m, nil
}

func (m *Manifest) rebase(dir string) {
	for id, p := range m.Sources {
		if p != "" && !filepath.IsAbs(p) {
			m.Sources[id] = filepath.Join(dir, p)
		}
	}
	if m.Output != "" && !filepath.IsAbs(m.Output) {
		m.Output = filepath.Join(dir, m.Output)
	}
}

// entry is the format-neutral form of one instruction.
type entry struct {
	source string
	kind   string
	page   *int
	pages  string
}

func (e entry) expand(i int) ([]merge.Instruction, error) {
	if e.source == "" {
		return nil, fmt.Errorf("instruction %d: no source", i+1)
	}
	switch strings.ToLower(e.kind) {
	case "image":
		return []merge.Instruction{merge.EmbedImage{Source: e.source}}, nil
	case "", "pdf", "page":
	default:
		return nil, fmt.Errorf("instruction %d: unknown kind %q", i+1, e.kind)
	}
	switch {
	case e.pages != "":
		pages, err := ParsePages(e.pages)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i+1, err)
		}
		out := make([]merge.Instruction, len(pages))
		for j, p := range pages {
			out[j] = merge.CopyPage{Source: e.source, Page: p}
		}
		return out, nil
	case e.page != nil:
		// Page numbers are passed through as given; the merge reports
		// out-of-range ones.
		return []merge.Instruction{merge.CopyPage{Source: e.source, Page: *e.page}}, nil
	}
	return nil, fmt.Errorf("instruction %d: page or pages required", i+1)
}

func build(sources map[string]string, entries []entry, output string) (*Manifest, error) {
	m := &Manifest{Sources: sources, Output: output}
	if m.Sources == nil {
		m.Sources = make(map[string]string)
	}
	for i, e := range entries {
		ins, err := e.expand(i)
		if err != nil {
			return nil, err
		}
		m.Instructions = append(m.Instructions, ins...)
	}
	return m, nil
}

func sortedIDs(sources map[string]string) []string {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
