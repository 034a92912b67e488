package recovery_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/parser"
	"github.com/soamn/slicepdf/recovery"
)

// misplacedObjectPDF returns a file whose xref entry for object 3 points
// into the header instead of at the object itself.
func misplacedObjectPDF() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	bodies := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	offsets[2] = 1
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func TestRecoveryStrategies(t *testing.T) {
	data := misplacedObjectPDF()

	t.Run("StrictStrategy", func(t *testing.T) {
		cfg := parser.Config{Recovery: recovery.NewStrictStrategy()}
		if _, err := parser.NewDocumentParser(cfg).Parse(context.Background(), bytes.NewReader(data)); err == nil {
			t.Fatal("expected error with StrictStrategy, got nil")
		}
	})

	t.Run("NilStrategy", func(t *testing.T) {
		if _, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(data)); err == nil {
			t.Fatal("expected error without a strategy, got nil")
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := recovery.NewLenientStrategy()
		doc, err := parser.NewDocumentParser(parser.Config{Recovery: rec}).Parse(context.Background(), bytes.NewReader(data))
		if err != nil {
			t.Fatalf("expected success with LenientStrategy, got error: %v", err)
		}
		page, ok := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
		if !ok {
			t.Fatalf("page object was not recovered: %#v", doc.Objects[raw.ObjectRef{Num: 3}])
		}
		if typ, _ := page.NameValue("Type"); typ != "Page" {
			t.Fatalf("unexpected page type %q", typ)
		}
		if len(rec.Errors()) == 0 {
			t.Fatal("expected the bad offset to be reported")
		}
	})
}

func TestLenientStrategyKeepsWrappedErrors(t *testing.T) {
	rec := recovery.NewLenientStrategy()
	cause := errors.New("boom")
	if got := rec.OnError(cause, recovery.Location{Component: "scanner", ByteOffset: 12}); got != recovery.ActionWarn {
		t.Fatalf("expected warn, got %v", got)
	}
	errs := rec.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], cause) {
		t.Fatalf("unexpected errors %v", errs)
	}
	errs[0] = nil
	if rec.Errors()[0] == nil {
		t.Fatalf("Errors must return a copy")
	}
}

func TestActionString(t *testing.T) {
	cases := map[recovery.Action]string{
		recovery.ActionFail: "fail",
		recovery.ActionSkip: "skip",
		recovery.ActionFix:  "fix",
		recovery.ActionWarn: "warn",
		recovery.Action(42): "unknown",
	}
	for a, want := range cases {
		if a.String() != want {
			t.Fatalf("%d: expected %q, got %q", a, want, a.String())
		}
	}
}
