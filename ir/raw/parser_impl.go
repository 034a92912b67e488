package raw

import (
	"errors"
	"fmt"
	"io"

	"github.com/soamn/slicepdf/recovery"
	"github.com/soamn/slicepdf/scanner"
)

// ObjectReader assembles raw objects from a token stream.
type ObjectReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

// NewObjectReader wraps s.
func NewObjectReader(s scanner.Scanner) *ObjectReader {
	return &ObjectReader{s: s}
}

// Next returns the next token, honouring tokens pushed back with Unread.
func (r *ObjectReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

// Unread pushes tok back so the following Next returns it.
func (r *ObjectReader) Unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

// SeekTo repositions the underlying scanner and drops pushed-back tokens.
func (r *ObjectReader) SeekTo(offset int64) error {
	r.buf = r.buf[:0]
	return r.s.SeekTo(offset)
}

// Scanner exposes the wrapped scanner.
func (r *ObjectReader) Scanner() scanner.Scanner { return r.s }

// ReadObject parses one direct object.
func (r *ObjectReader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	}
	return nil, &UnexpectedTokenError{Tok: tok}
}

// UnexpectedTokenError reports a token that cannot start an object.
type UnexpectedTokenError struct {
	Tok scanner.Token
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected token %q at offset %d", e.Tok.Str, e.Tok.Pos)
}

func (r *ObjectReader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		r.Unread(tok)
		item, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *ObjectReader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key in dictionary at offset %d", tok.Pos)
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent entry.
		if _, isNull := val.(NullObj); isNull {
			continue
		}
		d.Put(tok.Str, val)
	}
}

// ErrNotIndirect is returned by ReadIndirect when the input at the current
// position does not start with an "N G obj" header.
var ErrNotIndirect = errors.New("not an indirect object header")

// ReadIndirect parses "N G obj <object> [stream ...] endobj" at the current
// position. lengthOf, when non-nil, supplies the declared payload length of
// a stream dictionary (-1 when unknown).
func (r *ObjectReader) ReadIndirect(lengthOf func(*DictObj) int64) (ObjectRef, Object, error) {
	numTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	genTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	kwTok, err := r.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt ||
		genTok.Type != scanner.TokenNumber || !genTok.IsInt ||
		kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
		return ObjectRef{}, nil, ErrNotIndirect
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}
	if rc, ok := r.s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "object"})
	}

	obj, err := r.ReadObject()
	if err != nil {
		// "N G obj endobj" is an empty object; treat it as null.
		var ute *UnexpectedTokenError
		if errors.As(err, &ute) && ute.Tok.Type == scanner.TokenKeyword && ute.Tok.Str == "endobj" {
			return ref, NullObj{}, nil
		}
		return ref, nil, fmt.Errorf("parse object %d %d: %w", ref.Num, ref.Gen, err)
	}

	if dict, ok := obj.(*DictObj); ok {
		length := int64(-1)
		if lengthOf != nil {
			length = lengthOf(dict)
		}
		r.s.SetNextStreamLength(length)
		tok, err := r.Next()
		r.s.SetNextStreamLength(-1)
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			return ref, nil, fmt.Errorf("parse stream %d %d: %w", ref.Num, ref.Gen, err)
		case err != nil:
		case tok.Type == scanner.TokenStream:
			obj = NewStream(dict, tok.Bytes)
		default:
			r.Unread(tok)
		}
	}

	if tok, err := r.Next(); err == nil {
		if tok.Type != scanner.TokenKeyword || tok.Str != "endobj" {
			r.Unread(tok)
		}
	}
	return ref, obj, nil
}
