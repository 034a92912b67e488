package writer

import (
	"context"
	"io"

	"github.com/soamn/slicepdf/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

// Config controls serialization. Compression is a zlib level applied to
// every stream that carries no /Filter; 0 leaves such streams as they are.
type Config struct {
	Version     PDFVersion
	Compression int
}

// Writer serializes a complete object graph with a freshly built
// cross-reference table.
type Writer interface {
	Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes each indirect object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// Write serializes doc to out with the default writer.
func Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	return (&WriterBuilder{}).Build().Write(ctx, doc, out, cfg)
}
