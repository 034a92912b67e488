package filters

import (
	"context"
	"errors"

	"github.com/soamn/slicepdf/ir/raw"
)

// compress/lzw cannot express the EarlyChange convention PDF writers use by
// default, so the decoder is implemented here.
type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }
func NewLZWDecoder() Decoder    { return lzwDecoder{} }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	early := 1
	if params != nil {
		if v, ok := params.IntValue("EarlyChange"); ok {
			early = int(v)
		}
	}
	out, err := lzwDecode(in, early)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

const (
	lzwClear = 256
	lzwEOD   = 257
)

func lzwDecode(in []byte, early int) ([]byte, error) {
	var (
		out    []byte
		table  [][]byte
		width  = 9
		prev   []byte
		bitBuf uint32
		bitLen int
		pos    int
	)
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		table = append(table, nil, nil)
		width = 9
		prev = nil
	}
	reset()
	for {
		for bitLen < width && pos < len(in) {
			bitBuf = bitBuf<<8 | uint32(in[pos])
			bitLen += 8
			pos++
		}
		if bitLen < width {
			return out, nil
		}
		code := int(bitBuf>>(bitLen-width)) & (1<<width - 1)
		bitLen -= width

		switch {
		case code == lzwClear:
			reset()
			continue
		case code == lzwEOD:
			return out, nil
		}

		var entry []byte
		switch {
		case code < len(table) && table[code] != nil:
			entry = table[code]
		case code == len(table) && prev != nil:
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, errors.New("lzw: code out of range")
		}
		out = append(out, entry...)
		if prev != nil && len(table) < 4096 {
			table = append(table, append(append([]byte(nil), prev...), entry[0]))
		}
		prev = entry
		if next := len(table) + early; next >= 1<<width && width < 12 {
			width++
		}
	}
}
