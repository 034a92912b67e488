package merge

import (
	"errors"
	"fmt"
)

// Kind classifies why a merge failed.
type Kind int

// Failure kinds, each matched by the sentinel of the same name.
const (
	KindSourceNotFound Kind = iota + 1
	KindLoad
	KindPageOutOfRange
	KindImageDecode
	KindNoPagesSelected
	KindWrite
)

// Sentinels for errors.Is. An *Error matches the one for its Kind.
var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrLoad            = errors.New("load error")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrImageDecode     = errors.New("image decode error")
	ErrNoPagesSelected = errors.New("no pages selected for merge")
	ErrWrite           = errors.New("write error")
)

// ErrInvalidOptions is returned before any instruction runs when the
// Options cannot be used, such as an unknown resample filter.
var ErrInvalidOptions = errors.New("invalid merge options")

func (k Kind) sentinel() error {
	switch k {
	case KindSourceNotFound:
		return ErrSourceNotFound
	case KindLoad:
		return ErrLoad
	case KindPageOutOfRange:
		return ErrPageOutOfRange
	case KindImageDecode:
		return ErrImageDecode
	case KindNoPagesSelected:
		return ErrNoPagesSelected
	case KindWrite:
		return ErrWrite
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindSourceNotFound:
		return "SourceNotFound"
	case KindLoad:
		return "LoadError"
	case KindPageOutOfRange:
		return "PageOutOfRange"
	case KindImageDecode:
		return "ImageDecodeError"
	case KindNoPagesSelected:
		return "NoPagesSelected"
	case KindWrite:
		return "WriteError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the terminal failure of a merge. errors.Is matches it against
// the Err* sentinel of its kind as well as anything in the Err chain.
type Error struct {
	Kind Kind
	// Source is the logical source id, or the path once it is known.
	Source string
	// Page is the requested page number for CopyPage failures.
	Page int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	switch {
	case e.Kind == KindPageOutOfRange:
		msg = fmt.Sprintf("%s: page %d of %s", msg, e.Page, e.Source)
	case e.Source != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target != nil && target == e.Kind.sentinel() }

func newError(kind Kind, source string, err error) *Error {
	return &Error{Kind: kind, Source: source, Err: err}
}
