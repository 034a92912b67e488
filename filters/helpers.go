package filters

import "github.com/soamn/slicepdf/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary. The returned parameter slice is aligned with the names; an
// entry is nil where no parameters apply.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string

	filterObj, ok := dict.Lookup("Filter")
	if !ok {
		return nil, nil
	}

	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	params := make([]*raw.DictObj, len(names))
	pObj, ok := dict.Lookup("DecodeParms")
	if !ok {
		pObj, ok = dict.Lookup("DP")
	}
	if ok {
		switch p := pObj.(type) {
		case *raw.DictObj:
			params[0] = p
		case *raw.ArrayObj:
			for i, item := range p.Items {
				if d, ok := item.(*raw.DictObj); ok && i < len(params) {
					params[i] = d
				}
			}
		}
	}
	return names, params
}
