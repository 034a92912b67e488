package writer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/soamn/slicepdf/ir/raw"
)

// ErrNoRoot is returned when the trailer has no Root entry to write.
var ErrNoRoot = errors.New("trailer has no Root")

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if obj == nil {
		obj = raw.NullObj{}
	}
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Trailer == nil {
		return ErrNoRoot
	}
	root, ok := doc.Trailer.Lookup("Root")
	if !ok {
		return ErrNoRoot
	}

	version := string(cfg.Version)
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = string(PDF17)
	}

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Num != ordered[j].Num {
			return ordered[i].Num < ordered[j].Num
		}
		return ordered[i].Gen < ordered[j].Gen
	})

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	type entry struct {
		offset int64
		gen    int
	}
	offsets := make(map[int]entry, len(ordered))
	maxNum := 0
	for _, ref := range ordered {
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		if st, ok := obj.(*raw.StreamObj); ok {
			obj = compressStream(st, cfg.Compression)
		}
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return fmt.Errorf("serialize %v: %w", ref, err)
		}
		offsets[ref.Num] = entry{offset: int64(buf.Len()), gen: ref.Gen}
		buf.Write(serialized)
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ctx, ref, int64(len(serialized))); err != nil {
				return err
			}
		}
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	id := fileID(buf.Bytes())

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		if e, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", e.offset, e.gen)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Put("Size", raw.NumberInt(int64(maxNum+1)))
	trailer.Put("Root", root)
	if info, ok := doc.Trailer.Lookup("Info"); ok {
		trailer.Put("Info", info)
	}
	trailer.Put("ID", raw.NewArray(raw.HexStr(id), raw.HexStr(id)))

	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// fileID fingerprints the serialized body. Identical graphs get identical
// ids, which keeps output reproducible.
func fileID(body []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(body)
	return h.Sum(nil)
}

// WriteFile creates path and writes doc to it. A partially written file is
// left in place on failure.
func WriteFile(ctx context.Context, doc *raw.Document, path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Write(ctx, doc, bw, cfg); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
