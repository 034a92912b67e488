package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/soamn/slicepdf/ir/raw"
	"github.com/soamn/slicepdf/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; when
// the file only carries xref streams, their dictionaries stand in for the
// trailer. Later definitions of an object win, as in incremental updates.
func repair(ctx context.Context, data []byte) (Table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	rd := raw.NewObjectReader(s)
	entries := make(map[int]Entry)
	var lastTrailer, lastXRefDict *raw.DictObj

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before := s.Position()
		tok, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip the offending byte and keep scanning.
			if s.Position() <= before {
				if rd.SeekTo(before+1) != nil {
					break
				}
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			tokGen, err := rd.Next()
			if err != nil {
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				rd.Unread(tokGen)
				continue
			}
			tokObj, err := rd.Next()
			if err != nil {
				continue
			}
			if tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
				// tokGen could start the next header, as in "1 2 0 obj".
				rd.Unread(tokObj)
				rd.Unread(tokGen)
				continue
			}
			entries[int(tok.Int)] = Entry{Kind: EntryInUse, Offset: tok.Pos, Gen: int(tokGen.Int)}
			if obj, err := rd.ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					if t, _ := d.NameValue("Type"); t == "XRef" {
						lastXRefDict = d
					}
				}
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := rd.ReadObject()
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	out := &table{entries: entries, trailer: raw.Dict(), kind: "repair"}
	if lastTrailer != nil {
		out.mergeTrailer(lastTrailer)
	}
	if lastXRefDict != nil {
		out.mergeTrailer(lastXRefDict)
	}
	if _, ok := out.trailer.Lookup("Size"); !ok {
		maxNum := 0
		for n := range entries {
			if n > maxNum {
				maxNum = n
			}
		}
		out.trailer.Put("Size", raw.NumberInt(int64(maxNum+1)))
	}
	return out, nil
}
