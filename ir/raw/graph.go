package raw

// MapRefs returns a deep copy of obj in which every reference, at any
// nesting depth, has been replaced by fn(ref). Stream payloads are shared
// with the original; their dictionaries are copied.
func MapRefs(obj Object, fn func(ObjectRef) ObjectRef) Object {
	switch v := obj.(type) {
	case RefObj:
		return RefObj{R: fn(v.R)}
	case *ArrayObj:
		items := make([]Object, len(v.Items))
		for i, it := range v.Items {
			items[i] = MapRefs(it, fn)
		}
		return &ArrayObj{Items: items}
	case *DictObj:
		return mapDict(v, fn)
	case *StreamObj:
		return &StreamObj{Dict: mapDict(v.Dict, fn), Data: v.Data}
	default:
		return obj
	}
}

func mapDict(d *DictObj, fn func(ObjectRef) ObjectRef) *DictObj {
	if d == nil {
		return Dict()
	}
	out := &DictObj{KV: make(map[string]Object, len(d.KV))}
	for k, v := range d.KV {
		out.KV[k] = MapRefs(v, fn)
	}
	return out
}

// Clone returns a deep copy of obj. Stream payloads are shared.
func Clone(obj Object) Object {
	return MapRefs(obj, func(r ObjectRef) ObjectRef { return r })
}

// Refs calls fn for every reference reachable inside obj without crossing
// into other indirect objects. Dictionary entries whose key is listed in
// skip are not visited.
func Refs(obj Object, fn func(key string, ref ObjectRef), skip ...string) {
	walkRefs("", obj, fn, skip)
}

func walkRefs(key string, obj Object, fn func(string, ObjectRef), skip []string) {
	switch v := obj.(type) {
	case RefObj:
		fn(key, v.R)
	case *ArrayObj:
		for _, it := range v.Items {
			walkRefs(key, it, fn, skip)
		}
	case *DictObj:
		if v == nil {
			return
		}
	entries:
		for k, it := range v.KV {
			for _, s := range skip {
				if k == s {
					continue entries
				}
			}
			walkRefs(k, it, fn, skip)
		}
	case *StreamObj:
		walkRefs(key, v.Dict, fn, skip)
	}
}
