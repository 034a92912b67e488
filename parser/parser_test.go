package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/recovery"
)

func TestDocumentParserParsesClassicXRef(t *testing.T) {
	data := buildClassicPDF()
	p := NewDocumentParser(Config{})

	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Trailer == nil {
		t.Fatalf("trailer not captured")
	}
	if got := doc.Version; got != "1.7" {
		t.Fatalf("expected version 1.7, got %q", got)
	}
	if len(doc.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(doc.Objects))
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 1, Gen: 0}]; !ok {
		t.Fatalf("catalog missing")
	}
	if _, ok := doc.Trailer.Lookup("Size"); ok {
		t.Fatalf("layout keys should not be kept in the trailer")
	}
}

func TestDocumentParserFollowsPrevChain(t *testing.T) {
	data := buildIncrementalPDF()
	p := NewDocumentParser(Config{})

	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 3, Gen: 0}]; !ok {
		t.Fatalf("incremental object missing")
	}
	obj2, ok := doc.Objects[raw.ObjectRef{Num: 2, Gen: 0}].(*raw.DictObj)
	if !ok {
		t.Fatalf("expected dict for object 2, got %T", doc.Objects[raw.ObjectRef{Num: 2, Gen: 0}])
	}
	if n, ok := obj2.IntValue("Count"); !ok || n != 1 {
		t.Fatalf("expected Count 1 after update, got %d", n)
	}
}

func TestDocumentParserDropsBookkeepingObjects(t *testing.T) {
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(buildObjStmPDF()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Version != "1.5" {
		t.Fatalf("unexpected version %q", doc.Version)
	}
	for _, num := range []int{5, 6} {
		if _, ok := doc.Objects[raw.ObjectRef{Num: num}]; ok {
			t.Fatalf("object %d should have been dropped", num)
		}
	}
	for _, num := range []int{1, 2, 3, 4} {
		if _, ok := doc.Objects[raw.ObjectRef{Num: num}]; !ok {
			t.Fatalf("object %d missing", num)
		}
	}
}

func TestDocumentParserRejectsEncrypted(t *testing.T) {
	data := buildPDF("/Root 1 0 R /Encrypt 3 0 R",
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
		"<< /Filter /Standard /V 4 >>")
	_, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
}

func TestDocumentParserRepairsMissingXRef(t *testing.T) {
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n" +
		"%%EOF\n")

	if _, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data)); err == nil {
		t.Fatalf("strict parse should fail without xref data")
	}

	lenient := recovery.NewLenientStrategy()
	doc, err := NewDocumentParser(Config{Recovery: lenient}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if root, ok := doc.Trailer.Lookup("Root"); !ok || root != raw.Ref(1, 0) {
		t.Fatalf("expected catalog to be discovered, got %v", root)
	}
	if len(lenient.Errors()) == 0 {
		t.Fatalf("expected the missing xref to be reported")
	}
	idx, err := Pages(doc)
	if err != nil || idx.Len() != 1 {
		t.Fatalf("unexpected page index %v %v", idx.Len(), err)
	}
}

func TestDocumentParserCatalogVersionOverridesHeader(t *testing.T) {
	data := buildPDF("/Root 1 0 R",
		"<< /Type /Catalog /Pages 2 0 R /Version /1.7 >>",
		"<< /Type /Pages /Kids [] /Count 0 >>")
	data = bytes.Replace(data, []byte("%PDF-1.7"), []byte("%PDF-1.4"), 1)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Version != "1.7" {
		t.Fatalf("expected catalog version to win, got %q", doc.Version)
	}
}

func TestLoadWrapsErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.pdf")
	_, err := Load(context.Background(), missing, Config{})
	var le *LoadError
	if !errors.As(err, &le) || le.Path != missing {
		t.Fatalf("expected LoadError for %s, got %v", missing, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(context.Background(), garbage, Config{}); !errors.As(err, &le) {
		t.Fatalf("expected LoadError for garbage, got %v", err)
	}

	good := filepath.Join(t.TempDir(), "good.pdf")
	if err := os.WriteFile(good, buildClassicPDF(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(context.Background(), good, Config{}); err != nil {
		t.Fatalf("load good file: %v", err)
	}
}

func buildClassicPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 3\n")
	fmt.Fprintf(buf, "0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n", off1, off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func buildIncrementalPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xref1 := buf.Len()
	fmt.Fprintf(buf, "xref\n0 3\n0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n", off1, off2)
	fmt.Fprintf(buf, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref1)

	// Incremental update: replace object 2 and add object 3.
	off2b := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	off3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n")

	xref2 := buf.Len()
	fmt.Fprintf(buf, "xref\n2 2\n%010d 00000 n \n%010d 00000 n \n", off2b, off3)
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\n", xref1)
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xref2)
	return buf.Bytes()
}
