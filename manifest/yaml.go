package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/soamn/slicepdf/merge"
)

type yamlManifest struct {
	Sources      map[string]string `yaml:"sources"`
	Instructions []yamlEntry       `yaml:"instructions"`
	Output       string            `yaml:"output,omitempty"`
}

type yamlEntry struct {
	Source string `yaml:"source"`
	Kind   string `yaml:"kind,omitempty"`
	Page   *int   `yaml:"page,omitempty"`
	Pages  string `yaml:"pages,omitempty"`
}

func parseYAML(data []byte) (*Manifest, error) {
	var doc yamlManifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	entries := make([]entry, len(doc.Instructions))
	for i, e := range doc.Instructions {
		entries[i] = entry{source: e.Source, kind: e.Kind, page: e.Page, pages: e.Pages}
	}
	return build(doc.Sources, entries, doc.Output)
}

// YAML encodes m in the shape parseYAML reads.
func (m *Manifest) YAML() ([]byte, error) {
	doc := yamlManifest{Sources: m.Sources, Output: m.Output}
	for _, in := range m.Instructions {
		switch v := in.(type) {
		case merge.CopyPage:
			page := v.Page
			doc.Instructions = append(doc.Instructions, yamlEntry{Source: v.Source, Page: &page})
		case merge.EmbedImage:
			doc.Instructions = append(doc.Instructions, yamlEntry{Source: v.Source, Kind: "image"})
		}
	}
	return yaml.Marshal(doc)
}
