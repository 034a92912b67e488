package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// DefaultFilter is the resampling kernel used when none is configured.
const DefaultFilter = "catmullrom"

// ParseFilter maps a configuration name to a resampling kernel.
func ParseFilter(name string) (draw.Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "catmullrom", "catmull-rom":
		return draw.CatmullRom, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "nearest", "nearestneighbor":
		return draw.NearestNeighbor, nil
	}
	return nil, fmt.Errorf("unknown resample filter %q", name)
}

// FitWithin returns the largest size with the aspect ratio of w x h that
// fits inside maxW x maxH. Sizes already inside the box are returned as is.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := clampDim(int(math.Round(float64(w)*scale)), maxW)
	nh := clampDim(int(math.Round(float64(h)*scale)), maxH)
	return nw, nh
}

func clampDim(v, max int) int {
	if v < 1 {
		return 1
	}
	if v > max {
		return max
	}
	return v
}

// Resize scales img to exactly w x h. A nil interpolator uses CatmullRom,
// which averages over the source area when shrinking.
func Resize(img image.Image, w, h int, interp draw.Interpolator) *image.RGBA {
	if interp == nil {
		interp = draw.CatmullRom
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
