package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/soamn/slicepdf/filters"
	"github.com/soamn/slicepdf/ir/raw"
)

// compressStream returns a FlateDecode copy of st when it has no filter and
// compression makes it smaller. The input stream is never modified.
func compressStream(st *raw.StreamObj, level int) *raw.StreamObj {
	if level == 0 {
		return st
	}
	if _, ok := st.Dict.Lookup("Filter"); ok {
		return st
	}
	if len(st.Data) == 0 {
		return st
	}
	packed, err := filters.FlateEncode(st.Data, level)
	if err != nil || len(packed) >= len(st.Data) {
		return st
	}
	dict := raw.Clone(st.Dict).(*raw.DictObj)
	dict.Put("Filter", raw.NameLiteral("FlateDecode"))
	dict.Delete("DecodeParms")
	return raw.NewStream(dict, packed)
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + pdfNameLiteral(v.Value()))
	case raw.NumberObj:
		if v.IsInteger() {
			return strconv.AppendInt(nil, v.Int(), 10)
		}
		return []byte(formatReal(v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		if v.IsHex() {
			return []byte("<" + strings.ToUpper(hex.EncodeToString(v.Value())) + ">")
		}
		return escapeLiteralString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		return serializeDict(v, nil)
	case *raw.StreamObj:
		var b bytes.Buffer
		b.Write(serializeDict(v.Dict, raw.NumberInt(int64(len(v.Data)))))
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.Ref().Num, v.Ref().Gen))
	default:
		return []byte("null")
	}
}

// serializeDict writes d with sorted keys. A non-nil length replaces any
// /Length entry, so stream lengths are always direct and exact.
func serializeDict(d *raw.DictObj, length raw.Object) []byte {
	var b bytes.Buffer
	b.WriteString("<<")
	keys := make([]string, 0)
	if d != nil {
		keys = make([]string, 0, len(d.KV)+1)
		for k := range d.KV {
			if length != nil && k == "Length" {
				continue
			}
			keys = append(keys, k)
		}
	}
	if length != nil {
		keys = append(keys, "Length")
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := length
		if k != "Length" || length == nil {
			val = d.KV[k]
		}
		b.WriteString("/" + pdfNameLiteral(k) + " ")
		b.Write(serializePrimitive(val))
	}
	b.WriteString(">>")
	return b.Bytes()
}

// formatReal writes the shortest decimal that parses back to f. PDF has no
// exponent syntax, so 'f' is used even for very small or large values.
func formatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// pdfNameLiteral escapes delimiters, whitespace and non-printable bytes as
// #xx sequences.
func pdfNameLiteral(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !strings.ContainsRune("#()<>[]{}/%", rune(ch)) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}
