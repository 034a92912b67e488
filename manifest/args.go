package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/soamn/slicepdf/merge"
	"github.com/soamn/slicepdf/parser"
)

// imageExts are the raster formats the merge can embed.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImage reports whether path names a raster image by its extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

var pageListRE = regexp.MustCompile(`^[0-9][0-9,\- ]*$`)

// SplitSpec separates "path[:pages]". The suffix only counts as a page list
// when it looks like one, so drive letters survive.
func SplitSpec(spec string) (path, pages string) {
	i := strings.LastIndex(spec, ":")
	if i <= 0 || !pageListRE.MatchString(spec[i+1:]) {
		return spec, ""
	}
	return spec[:i], spec[i+1:]
}

// ParsePages expands a list like "1,3-5" into page numbers. A range may
// run backwards ("5-3" is 5, 4, 3). Pages start at 1.
func ParsePages(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := pageNumber(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			out = append(out, a)
			continue
		}
		b, err := pageNumber(hi)
		if err != nil {
			return nil, err
		}
		step := 1
		if b < a {
			step = -1
		}
		for p := a; ; p += step {
			out = append(out, p)
			if p == b {
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty page list %q", s)
	}
	return out, nil
}

func pageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad page number %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page numbers start at 1, got %d", n)
	}
	return n, nil
}

// FromArgs builds a manifest from "path[:pages]" specs. Images become
// embedded pages; a PDF without a page list contributes every page, which
// means opening it with cfg to count them. Each distinct path gets one
// random source id.
func FromArgs(ctx context.Context, specs []string, cfg parser.Config) (*Manifest, error) {
	m := &Manifest{Sources: make(map[string]string)}
	ids := make(map[string]string)
	idFor := func(path string) string {
		if id, ok := ids[path]; ok {
			return id
		}
		id := uuid.NewString()
		ids[path] = id
		m.Sources[id] = path
		return id
	}

	for _, spec := range specs {
		path, pages := SplitSpec(spec)
		if path == "" {
			return nil, fmt.Errorf("empty input spec %q", spec)
		}
		id := idFor(path)
		if IsImage(path) {
			if pages != "" {
				return nil, fmt.Errorf("%s: images have no pages to select", spec)
			}
			m.Instructions = append(m.Instructions, merge.EmbedImage{Source: id})
			continue
		}

		var list []int
		if pages != "" {
			var err error
			if list, err = ParsePages(pages); err != nil {
				return nil, fmt.Errorf("%s: %w", spec, err)
			}
		} else {
			doc, err := parser.Load(ctx, path, cfg)
			if err != nil {
				return nil, err
			}
			n, err := parser.CountPages(doc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			for p := 1; p <= n; p++ {
				list = append(list, p)
			}
		}
		for _, p := range list {
			m.Instructions = append(m.Instructions, merge.CopyPage{Source: id, Page: p})
		}
	}
	if len(m.Instructions) == 0 {
		return nil, ErrEmpty
	}
	return m, nil
}
