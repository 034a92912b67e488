package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"testing"

	"github.com/soamn/slicepdf/ir/raw"
)

func TestFlateDecode(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("hello world"))
	w.Close()

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeZlib(t *testing.T) {
	enc, err := FlateEncode([]byte("zlib wrapped payload"), zlib.BestCompression)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc[0] != 0x78 {
		t.Fatalf("expected zlib header, got %#x", enc[0])
	}
	out, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "zlib wrapped payload" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeTruncated(t *testing.T) {
	enc, _ := FlateEncode(bytes.Repeat([]byte("abcdefgh"), 512), zlib.NoCompression)
	out, err := NewFlateDecoder().Decode(context.Background(), enc[:len(enc)-64], nil)
	if err != nil {
		t.Fatalf("truncated stream should yield partial data, got %v", err)
	}
	if len(out) == 0 || !bytes.HasPrefix(out, []byte("abcdefgh")) {
		t.Fatalf("unexpected partial output of %d bytes", len(out))
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	var comp bytes.Buffer
	w, _ := flate.NewWriter(&comp, flate.BestSpeed)
	// PNG predictor row: filter byte 1 (Sub), then row bytes.
	w.Write([]byte{1, 10, 12, 20})
	w.Close()

	params := raw.Dict()
	params.Put("Predictor", raw.NumberInt(12))
	params.Put("Colors", raw.NumberInt(1))
	params.Put("BitsPerComponent", raw.NumberInt(8))
	params.Put("Columns", raw.NumberInt(3))

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), comp.Bytes(), params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 22, 42}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestPNGUpPredictorAcrossRows(t *testing.T) {
	params := raw.Dict()
	params.Put("Predictor", raw.NumberInt(12))
	params.Put("Columns", raw.NumberInt(2))
	in := []byte{0, 5, 6, 2, 1, 1}
	out, err := applyPredictor(in, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	if !bytes.Equal(out, []byte{5, 6, 6, 7}) {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Put("Predictor", raw.NumberInt(2))
	params.Put("Columns", raw.NumberInt(3))
	out, err := applyPredictor([]byte{1, 1, 1, 4, 0, 2}, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 4, 4, 6}) {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestLZWDecode(t *testing.T) {
	// Sample sequence "-----A---B" with EarlyChange 1.
	in := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	out, err := NewLZWDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "-----A---B" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal run of 3 bytes (len=2), then repeat 'A' 2 times (len=255 => count=2), then EOD 128
	data := []byte{2, 'h', 'i', '!', 255, 'A', 128}
	dec := NewRunLengthDecoder()
	out, err := dec.Decode(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hi!AA" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCII85Decode(t *testing.T) {
	dec := NewASCII85Decoder()
	out, err := dec.Decode(context.Background(), []byte("<~87cURD_*#4DfTZ)+T~>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "Hello, World!" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	dec := NewASCIIHexDecoder()
	out, err := dec.Decode(context.Background(), []byte("68656c6c 6f20776f\n726c64>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPipelineChain(t *testing.T) {
	enc, _ := FlateEncode([]byte("chained"), zlib.DefaultCompression)
	var hexed bytes.Buffer
	for _, b := range enc {
		hexed.WriteString(string("0123456789abcdef"[b>>4]) + string("0123456789abcdef"[b&15]))
	}
	hexed.WriteByte('>')

	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), hexed.Bytes(), []string{"AHx", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("pipeline decode: %v", err)
	}
	if string(out) != "chained" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPipelineSizeLimit(t *testing.T) {
	enc, _ := FlateEncode(make([]byte, 4096), zlib.BestCompression)
	p := NewDefaultPipeline(Limits{MaxDecompressedSize: 100})
	if _, err := p.Decode(context.Background(), enc, []string{"FlateDecode"}, nil); !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestUnsupportedFilters(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	_, err := p.Decode(context.Background(), []byte{0x00}, []string{"DCTDecode"}, nil)
	var ue UnsupportedError
	if err == nil || !errors.As(err, &ue) || ue.Filter != "DCTDecode" {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestExtractFilters(t *testing.T) {
	d := raw.Dict()
	d.Put("Filter", raw.NewArray(raw.NameLiteral("ASCII85Decode"), raw.NameLiteral("FlateDecode")))
	parms := raw.Dict()
	parms.Put("Predictor", raw.NumberInt(12))
	d.Put("DecodeParms", raw.NewArray(raw.NullObj{}, parms))

	names, params := ExtractFilters(d)
	if len(names) != 2 || names[1] != "FlateDecode" {
		t.Fatalf("unexpected names %v", names)
	}
	if params[0] != nil || params[1] != parms {
		t.Fatalf("params not aligned: %v", params)
	}
}
