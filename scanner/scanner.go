package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/soamn/slicepdf/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // stream payload following the 'stream' keyword
	TokenKeyword                  // other keywords (obj, endobj, trailer, xref, >>, ], etc.)
)

// Token is a single lexical element. Which value fields are meaningful
// depends on Type: Str for names and keywords, Int/Float/IsInt for numbers,
// Int/Gen for references, Bytes for strings and stream payloads.
type Token struct {
	Type  TokenType
	Str   string
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Bytes []byte
	Hex   bool
	Gen   int
	Pos   int64
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
	MaxStreamScan   int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

// pdfScanner incrementally buffers PDF data from a ReaderAt in fixed-size windows.
type pdfScanner struct {
	reader        io.ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	arrayDepth    int
	dictDepth     int
	recLoc        recovery.Location
}

// New returns a scanner reading r lazily in windows of cfg.WindowSize bytes.
func New(r io.ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	s.arrayDepth, s.dictDepth = 0, 0
	s.nextStreamLen = -1
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: ">", Pos: start})
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return s.emit(Token{Type: TokenKeyword, Str: string(c), Pos: start})
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil {
					return err
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

// ensure makes data[n] addressable, returning io.EOF when the input ends first.
func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	off := int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if errors.Is(err, io.EOF) || n == 0 {
		s.eof = true
		return nil
	}
	return err
}

func (s *pdfScanner) at(i int64) (byte, bool) {
	if s.ensure(i) != nil {
		return 0, false
	}
	return s.data[i], true
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isRegular(c byte) bool    { return !isDelimiter(c) }

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		if c == '#' {
			a, okA := s.at(s.pos + 1)
			b, okB := s.at(s.pos + 2)
			if okA && okB && isHex(a) && isHex(b) {
				out.WriteByte(fromHex(a)<<4 | fromHex(b))
				s.pos += 3
				continue
			}
		}
		out.WriteByte(c)
		s.pos++
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		switch c {
		case '\\':
			s.pos++
			esc, ok := s.at(s.pos)
			if !ok {
				continue
			}
			switch {
			case esc == '\r':
				s.pos++
				if n, ok := s.at(s.pos); ok && n == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2; k++ {
					d, ok := s.at(s.pos)
					if !ok || d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				continue
			}
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, s.fail(errors.New("literal string too long"), "literal")
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		hexbuf = append(hexbuf, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, s.fail(errors.New("hex string too long"), "hex")
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Hex: true, Pos: start})
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

// scanStream consumes the payload after the 'stream' keyword. With a length
// hint the payload is sliced directly; otherwise the scanner searches for
// the next 'endstream' marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	c, ok := s.at(s.pos)
	if !ok {
		return Token{}, s.fail(errors.New("stream missing EOL before data"), "stream")
	}
	switch c {
	case '\r':
		s.pos++
		if n, ok := s.at(s.pos); ok && n == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		if err := s.recover(errors.New("stream missing EOL before data"), "stream"); err != nil {
			return Token{}, err
		}
	}
	dataStart := s.pos
	needle := []byte("endstream")

	if l := s.nextStreamLen; l >= 0 {
		s.nextStreamLen = -1
		if s.cfg.MaxStreamLength > 0 && l > s.cfg.MaxStreamLength {
			return Token{}, s.fail(errors.New("stream too long"), "stream")
		}
		_ = s.ensure(dataStart + l + int64(len(needle)) + 2)
		end := dataStart + l
		if end > int64(len(s.data)) {
			end = int64(len(s.data))
		}
		after := end
		for after < int64(len(s.data)) && isWhitespace(s.data[after]) {
			after++
		}
		if bytes.HasPrefix(s.data[after:], needle) {
			payload := append([]byte(nil), s.data[dataStart:end]...)
			s.pos = after + int64(len(needle))
			return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
		}
		// Declared length is wrong; fall through to a marker search.
		if err := s.recover(errors.New("stream length does not match endstream position"), "stream"); err != nil {
			return Token{}, err
		}
	}

	idx := int64(-1)
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil {
			break
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			return Token{}, s.fail(errors.New("endstream not found within scan limit"), "stream")
		}
		if s.data[i] != 'e' || !bytes.Equal(s.data[i:i+int64(len(needle))], needle) {
			continue
		}
		idx = i
		break
	}
	if idx == -1 {
		if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
			return Token{}, err
		}
		payload := append([]byte(nil), s.data[dataStart:]...)
		s.pos = int64(len(s.data))
		return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
	}
	// Trim the EOL that belongs to the endstream marker.
	end := idx
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
		return Token{}, s.fail(errors.New("stream too long"), "stream")
	}
	s.pos = idx + int64(len(needle))
	return s.emit(Token{Type: TokenStream, Bytes: payload, Pos: start})
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func (s *pdfScanner) peekAhead(n int64) byte {
	c, _ := s.at(s.pos + n)
	return c
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for {
		c, ok := s.at(s.pos)
		if !ok || isDelimiter(c) {
			break
		}
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start})
	}
	n1, err1 := strconv.ParseInt(num1, 10, 64)
	if err1 != nil {
		f, _ := strconv.ParseFloat(num1, 64)
		return s.emit(Token{Type: TokenNumber, Float: f, Pos: start})
	}

	// Look ahead for "<gen> R"; rewind when the pattern does not match.
	after := s.pos
	if s.skipWSAndComments() == nil {
		num2 := s.scanNumberString()
		if n2, err := strconv.ParseInt(num2, 10, 64); err == nil && n1 >= 0 && n2 >= 0 {
			if s.skipWSAndComments() == nil {
				if c, _ := s.at(s.pos); c == 'R' {
					if next, ok := s.at(s.pos + 1); !ok || isDelimiter(next) {
						s.pos++
						return s.emit(Token{Type: TokenRef, Int: n1, Gen: int(n2), IsInt: true, Pos: start})
					}
				}
			}
		}
	}
	s.pos = after
	return s.emit(Token{Type: TokenNumber, Int: n1, Float: float64(n1), IsInt: true, Pos: start})
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for {
		c, ok := s.at(s.pos)
		if !ok {
			break
		}
		if c == '+' || c == '-' {
			if s.pos != start {
				break
			}
		} else if c >= '0' && c <= '9' {
			seenDigit = true
		} else if c != '.' {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

// recover consults the recovery strategy; a nil return means the caller may
// continue with its best-effort result.
func (s *pdfScanner) recover(err error, component string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	loc := s.recLoc
	loc.ByteOffset = s.pos
	if loc.Component != "" {
		loc.Component += "->"
	}
	loc.Component += "scanner:" + component
	switch s.cfg.Recovery.OnError(err, loc) {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

// fail reports err to the strategy for bookkeeping but always aborts the token.
func (s *pdfScanner) fail(err error, component string) error {
	_ = s.recover(err, component)
	return err
}

func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, s.fail(errors.New("array depth exceeded"), "array")
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, s.fail(errors.New("dict depth exceeded"), "dict")
		}
	case TokenKeyword:
		switch tok.Str {
		case "]":
			if s.arrayDepth > 0 {
				s.arrayDepth--
			}
		case ">>":
			if s.dictDepth > 0 {
				s.dictDepth--
			}
		}
	}
	return tok, nil
}
