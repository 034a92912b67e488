package security

import (
	"testing"
	"time"
)

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	l := Limits{MaxXRefDepth: 3, MaxDecodeTime: time.Second}.WithDefaults()
	if l.MaxXRefDepth != 3 || l.MaxDecodeTime != time.Second {
		t.Fatalf("explicit values overwritten: %+v", l)
	}
	if l.MaxDecompressedSize != DefaultLimits().MaxDecompressedSize {
		t.Fatalf("zero value not defaulted: %+v", l)
	}
}
