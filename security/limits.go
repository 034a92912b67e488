package security

import "time"

// Limits defines resource boundaries for reading untrusted PDFs.
// They guard against decompression bombs, deep nesting and runaway xref
// chains in hostile or damaged inputs.
type Limits struct {
	// Maximum decompressed stream size. Default: 100 MB.
	MaxDecompressedSize int64

	// Maximum chain of references followed while resolving a value. Default: 100.
	MaxIndirectDepth int

	// Maximum XRef chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum array / dictionary nesting inside one object. Default: 256.
	MaxNestingDepth int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 512 MB.
	MaxStreamLength int64

	// Maximum decode time per stream. Default: 30s.
	MaxDecodeTime time.Duration
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024, // 100 MB
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxNestingDepth:     256,
		MaxStringLength:     10 * 1024 * 1024,  // 10 MB
		MaxStreamLength:     512 * 1024 * 1024, // 512 MB
		MaxDecodeTime:       30 * time.Second,
	}
}

// WithDefaults fills every zero field of l from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDecompressedSize == 0 {
		l.MaxDecompressedSize = d.MaxDecompressedSize
	}
	if l.MaxIndirectDepth == 0 {
		l.MaxIndirectDepth = d.MaxIndirectDepth
	}
	if l.MaxXRefDepth == 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxNestingDepth == 0 {
		l.MaxNestingDepth = d.MaxNestingDepth
	}
	if l.MaxStringLength == 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength == 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	if l.MaxDecodeTime == 0 {
		l.MaxDecodeTime = d.MaxDecodeTime
	}
	return l
}
