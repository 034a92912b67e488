package manifest

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/soamn/slicepdf/merge"
)

// Accepted spellings for each field. The second and third come from the
// desktop front end: {fileMap, instructions: [{fileId, pageNumber, kind}]}
// and the older {sourcepdfid, sourcePageNumber} page list.
var (
	sourcesKeys = []string{"sources", "fileMap"}
	sourceKeys  = []string{"source", "fileId", "sourcepdfid"}
	pageKeys    = []string{"page", "pageNumber", "sourcePageNumber"}
	outputKeys  = []string{"output", "destination"}
)

func first(r gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func parseJSON(data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("parse json: invalid document")
	}
	root := gjson.ParseBytes(data)

	sources := make(map[string]string)
	if s := first(root, sourcesKeys); s.Exists() {
		if !s.IsObject() {
			return nil, errors.New("parse json: sources must be an object")
		}
		s.ForEach(func(k, v gjson.Result) bool {
			sources[k.String()] = v.String()
			return true
		})
	}

	list := root.Get("instructions")
	if list.Exists() && !list.IsArray() {
		return nil, errors.New("parse json: instructions must be an array")
	}
	var entries []entry
	var bad error
	list.ForEach(func(_, v gjson.Result) bool {
		e := entry{
			source: first(v, sourceKeys).String(),
			kind:   v.Get("kind").String(),
			pages:  v.Get("pages").String(),
		}
		if p := first(v, pageKeys); p.Exists() {
			if p.Type != gjson.Number {
				bad = fmt.Errorf("instruction %d: page must be a number", len(entries)+1)
				return false
			}
			n := int(p.Int())
			e.page = &n
		}
		entries = append(entries, e)
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return build(sources, entries, first(root, outputKeys).String())
}

// JSON encodes m in the front end's shape, which Parse reads back.
func (m *Manifest) JSON() ([]byte, error) {
	out := []byte(`{"fileMap":{},"instructions":[]}`)
	var err error
	for _, id := range sortedIDs(m.Sources) {
		if out, err = sjson.SetBytes(out, "fileMap."+escapeKey(id), m.Sources[id]); err != nil {
			return nil, err
		}
	}
	for i, in := range m.Instructions {
		item := map[string]any{"fileId": in.SourceID()}
		switch v := in.(type) {
		case merge.CopyPage:
			item["kind"], item["pageNumber"] = "pdf", v.Page
		case merge.EmbedImage:
			item["kind"], item["pageNumber"] = "image", 1
		}
		if out, err = sjson.SetBytes(out, fmt.Sprintf("instructions.%d", i), item); err != nil {
			return nil, err
		}
	}
	if m.Output != "" {
		if out, err = sjson.SetBytes(out, "output", m.Output); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// escapeKey quotes the characters sjson treats as path syntax.
func escapeKey(k string) string {
	b := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b = append(b, '\\')
		}
		b = append(b, k[i])
	}
	return string(b)
}
