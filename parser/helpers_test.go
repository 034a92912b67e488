package parser

import (
	"bytes"
	"fmt"
)

// buildPDF lays out bodies as objects 1..n behind a classic xref table.
// trailer is the trailer dictionary body without the surrounding << >>.
func buildPDF(trailer string, bodies ...string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(bodies)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", len(bodies)+1, trailer, xrefOffset)
	return buf.Bytes()
}
