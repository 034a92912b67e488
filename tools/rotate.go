package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
)

var (
	ErrNoInstructions  = errors.New("no instructions provided")
	ErrInvalidRotation = errors.New("rotation must be a multiple of 90 degrees")
)

// RotateInstruction turns one page (1-based) by Degrees clockwise.
type RotateInstruction struct {
	Page    int
	Degrees int
}

type RotateResult struct {
	Rotated int
	// Skipped lists page numbers that do not exist in the document.
	Skipped []int
}

// Rotate applies instrs in order and writes the result to out. Several
// instructions for one page add up.
func (k *Toolkit) Rotate(ctx context.Context, in, out string, instrs []RotateInstruction) (RotateResult, error) {
	var res RotateResult
	if len(instrs) == 0 {
		return res, ErrNoInstructions
	}
	for _, inst := range instrs {
		if inst.Degrees%90 != 0 {
			return res, fmt.Errorf("page %d: %w (got %d)", inst.Page, ErrInvalidRotation, inst.Degrees)
		}
	}

	doc, err := k.load(ctx, in)
	if err != nil {
		return res, err
	}
	idx, err := parser.Pages(doc)
	if err != nil {
		return res, fmt.Errorf("page tree: %w", err)
	}

	for _, inst := range instrs {
		pg, ok := idx.Lookup(inst.Page)
		if !ok {
			k.logger().Debug("rotate: page out of range", observability.Int("page", inst.Page))
			res.Skipped = append(res.Skipped, inst.Page)
			continue
		}
		dict, ok := doc.Objects[pg.Ref].(*raw.DictObj)
		if !ok {
			res.Skipped = append(res.Skipped, inst.Page)
			continue
		}
		current := currentRotation(doc, dict, pg)
		dict.Put("Rotate", raw.NumberInt(int64(NormalizeRotation(current+inst.Degrees))))
		res.Rotated++
	}

	if err := k.save(ctx, doc, out); err != nil {
		return res, err
	}
	return res, nil
}

func currentRotation(doc *raw.Document, page *raw.DictObj, pg parser.Page) int {
	v, ok := page.Lookup("Rotate")
	if !ok {
		v, ok = pg.Inherited["Rotate"]
	}
	if !ok {
		return 0
	}
	if n, ok := doc.Resolve(v).(raw.NumberObj); ok {
		return int(n.Int())
	}
	return 0
}

// NormalizeRotation maps any multiple of 90 onto 0, 90, 180 or 270.
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
