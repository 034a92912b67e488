package filters

import (
	"errors"
	"fmt"

	"github.com/soamn/slicepdf/ir/raw"
)

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params *raw.DictObj) predictorParams {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return p
	}
	if v, ok := params.IntValue("Predictor"); ok {
		p.predictor = int(v)
	}
	if v, ok := params.IntValue("Colors"); ok && v > 0 {
		p.colors = int(v)
	}
	if v, ok := params.IntValue("BitsPerComponent"); ok && v > 0 {
		p.bpc = int(v)
	}
	if v, ok := params.IntValue("Columns"); ok && v > 0 {
		p.columns = int(v)
	}
	return p
}

// applyPredictor reverses a TIFF (2) or PNG (10-15) predictor.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	p := readPredictorParams(params)
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return undoTIFF(data, p)
	case p.predictor >= 10:
		return undoPNG(data, p)
	}
	return nil, fmt.Errorf("unsupported predictor %d", p.predictor)
}

func undoTIFF(data []byte, p predictorParams) ([]byte, error) {
	if p.bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor with %d bits per component", p.bpc)
	}
	rowLen := p.colors * p.columns
	out := append([]byte(nil), data...)
	for row := 0; row+rowLen <= len(out); row += rowLen {
		for i := p.colors; i < rowLen; i++ {
			out[row+i] += out[row+i-p.colors]
		}
	}
	return out, nil
}

func undoPNG(data []byte, p predictorParams) ([]byte, error) {
	bpp := (p.colors*p.bpc + 7) / 8
	rowLen := (p.colors*p.bpc*p.columns + 7) / 8
	if rowLen <= 0 {
		return nil, errors.New("invalid predictor row length")
	}
	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for off := 0; off < len(data); off += rowLen + 1 {
		filter := data[off]
		end := off + 1 + rowLen
		if end > len(data) {
			// Short final row; keep what is there.
			end = len(data)
		}
		n := copy(cur, data[off+1:end])
		for i := n; i < rowLen; i++ {
			cur[i] = 0
		}
		for i := 0; i < rowLen; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch filter {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG filter type %d", filter)
			}
		}
		out = append(out, cur[:n]...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
