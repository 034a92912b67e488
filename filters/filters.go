package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/soamn/slicepdf/ir/raw"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

// UnsupportedError reports a filter the pipeline has no decoder for. Image
// codecs such as DCTDecode and JPXDecode are deliberately left to the
// imaging package and surface here as well.
type UnsupportedError struct {
	Filter string
}

func (e UnsupportedError) Error() string { return "unsupported filter: " + e.Filter }

// ErrSizeLimit is returned when a decoded payload grows past
// Limits.MaxDecompressedSize.
var ErrSizeLimit = errors.New("decompressed size exceeds limit")

type Pipeline struct {
	decoders []Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

// NewDefaultPipeline returns a pipeline that understands every general
// purpose filter.
func NewDefaultPipeline(limits Limits) *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
		NewRunLengthDecoder(),
	}, limits)
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

func (p *Pipeline) findDecoder(name string) Decoder {
	for _, d := range p.decoders {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Decode runs input through filterNames in order. params is aligned with
// filterNames; missing or nil entries mean default parameters.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec := p.findDecoder(abbreviations[name])
		if dec == nil {
			dec = p.findDecoder(name)
		}
		if dec == nil {
			return nil, UnsupportedError{Filter: name}
		}
		var param *raw.DictObj
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, ErrSizeLimit
		}
		data = out
	}
	return data, nil
}

// abbreviations maps the inline-image filter names onto the full ones.
var abbreviations = map[string]string{
	"Fl":  "FlateDecode",
	"LZW": "LZWDecode",
	"A85": "ASCII85Decode",
	"AHx": "ASCIIHexDecode",
	"RL":  "RunLengthDecode",
}

type Registry struct{ decoders map[string]Decoder }

func (r *Registry) Register(d Decoder) {
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
}
func (r *Registry) Get(name string) (Decoder, bool) { d, ok := r.decoders[name]; return d, ok }

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }
func NewFlateDecoder() Decoder    { return flateDecoder{} }

// Decode accepts both zlib-wrapped and bare deflate data. A truncated
// stream yields whatever was inflated before the damage.
func (flateDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var r io.ReadCloser
	if zr, err := zlib.NewReader(bytes.NewReader(in)); err == nil {
		r = zr
	} else {
		r = flate.NewReader(bytes.NewReader(in))
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		if out.Len() == 0 || !(errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, zlib.ErrChecksum)) {
			return nil, err
		}
	}
	return applyPredictor(out.Bytes(), params)
}

// FlateEncode compresses data with a zlib wrapper, which is what
// FlateDecode readers expect.
func FlateEncode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }
func (ascii85Decoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, len(trimmed)*4/5+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }
func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	if i := bytes.IndexByte(in, '>'); i >= 0 {
		in = in[:i]
	}
	digits := make([]byte, 0, len(in))
	for _, c := range in {
		switch c {
		case ' ', '\t', '\r', '\n', '\f', 0:
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	result := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(result, digits)
	if err != nil {
		return nil, err
	}
	return result[:n], nil
}
func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }
func (runLengthDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(in); {
		n := int(in[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			end := i + n + 1
			if end > len(in) {
				return nil, errors.New("run length literal overruns input")
			}
			out.Write(in[i:end])
			i = end
		default:
			if i >= len(in) {
				return nil, errors.New("run length repeat missing byte")
			}
			out.Write(bytes.Repeat(in[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}
func NewRunLengthDecoder() Decoder { return runLengthDecoder{} }
