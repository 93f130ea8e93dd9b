package reader

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/shopspring/decimal"
)

var (
	ErrUnexpectedEOF       = errors.New("unexpected end of input")
	ErrUnexpectedDelimiter = errors.New("unexpected closing delimiter")
	ErrInvalidToken        = errors.New("invalid token")
	ErrNotSingleForm       = errors.New("expected exactly one form")

	intRegex    = regexp.MustCompile(`^[+-]?[0-9]+$`)
	bigIntRegex = regexp.MustCompile(`^[+-]?[0-9]+N$`)
	doubleRegex = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+([eE][+-]?[0-9]+)?|[eE][+-]?[0-9]+)$`)
	bigDecRegex = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?M$`)
)

// ReadError is a located reading error.
type ReadError struct {
	Err error
	Loc form.Loc
}

func (e *ReadError) Error() string {
	return e.Loc.String() + " " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func (e *ReadError) MessageWithoutLocation() string {
	return e.Err.Error()
}

func (e *ReadError) Location() form.Loc {
	return e.Loc
}

// ReadAll reads every form of src.
func ReadAll(sourceName string, src string) ([]form.Form, error) {
	r := newReader(sourceName, src)
	var forms []form.Form

	for {
		r.skipSpaceAndComments()
		if r.eof() {
			return forms, nil
		}
		f, err := r.readForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
}

// ReadOne reads src that must contain exactly one form.
func ReadOne(sourceName string, src string) (form.Form, error) {
	forms, err := ReadAll(sourceName, src)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrNotSingleForm, len(forms))
	}
	return forms[0], nil
}

type reader struct {
	sourceName string
	s          []rune
	i          int32
	line       int32
	col        int32
}

type mark struct {
	i, line, col int32
}

func newReader(sourceName, src string) *reader {
	return &reader{sourceName: sourceName, s: []rune(src), line: 1, col: 1}
}

func (r *reader) eof() bool {
	return r.i >= int32(len(r.s))
}

func (r *reader) peek() rune {
	return r.s[r.i]
}

func (r *reader) advance() rune {
	c := r.s[r.i]
	r.i++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *reader) mark() mark {
	return mark{r.i, r.line, r.col}
}

func (r *reader) loc(start mark) form.Loc {
	return form.Loc{
		SourceName:  r.sourceName,
		StartLine:   start.line,
		StartColumn: start.col,
		EndLine:     r.line,
		EndColumn:   r.col,
		Span:        form.Span{Start: start.i, End: r.i},
	}
}

func (r *reader) errorf(start mark, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &ReadError{Err: err, Loc: r.loc(start)}
}

func (r *reader) skipSpaceAndComments() {
	for !r.eof() {
		c := r.peek()
		switch {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.advance()
			}
		case c == ',' || isSpace(c):
			r.advance()
		default:
			return
		}
	}
}

func (r *reader) readForm() (form.Form, error) {
	start := r.mark()
	c := r.peek()

	switch c {
	case '(':
		r.advance()
		elems, err := r.readElements(start, ')')
		if err != nil {
			return nil, err
		}
		return &form.ListForm{Loc: r.loc(start), Elements: elems}, nil
	case '[':
		r.advance()
		elems, err := r.readElements(start, ']')
		if err != nil {
			return nil, err
		}
		return &form.VectorForm{Loc: r.loc(start), Elements: elems}, nil
	case '{':
		r.advance()
		elems, err := r.readElements(start, '}')
		if err != nil {
			return nil, err
		}
		return &form.RecordForm{Loc: r.loc(start), Elements: elems}, nil
	case ')', ']', '}':
		r.advance()
		return nil, r.errorf(start, ErrUnexpectedDelimiter, "%q", c)
	case '"':
		return r.readString(start)
	case '\'':
		r.advance()
		quoted, err := r.readNested(start)
		if err != nil {
			return nil, err
		}
		loc := r.loc(start)
		return &form.ListForm{Loc: loc, Elements: []form.Form{&form.SymbolForm{Loc: loc, Sym: symbol.Intern("quote")}, quoted}}, nil
	case '~':
		r.advance()
		unquoted, err := r.readNested(start)
		if err != nil {
			return nil, err
		}
		return &form.UnquoteForm{Loc: r.loc(start), Form: unquoted}, nil
	case '#':
		if r.i+1 < int32(len(r.s)) && r.s[r.i+1] == '{' {
			r.advance()
			r.advance()
			elems, err := r.readElements(start, '}')
			if err != nil {
				return nil, err
			}
			return &form.SetForm{Loc: r.loc(start), Elements: elems}, nil
		}
	}

	return r.readAtom(start)
}

func (r *reader) readNested(start mark) (form.Form, error) {
	r.skipSpaceAndComments()
	if r.eof() {
		return nil, r.errorf(start, ErrUnexpectedEOF, "")
	}
	return r.readForm()
}

func (r *reader) readElements(start mark, closing rune) ([]form.Form, error) {
	elems := []form.Form{}
	for {
		r.skipSpaceAndComments()
		if r.eof() {
			return nil, r.errorf(start, ErrUnexpectedEOF, "missing %q", closing)
		}
		if r.peek() == closing {
			r.advance()
			return elems, nil
		}
		f, err := r.readForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, f)
	}
}

func (r *reader) readString(start mark) (form.Form, error) {
	r.advance()
	var b strings.Builder

	for {
		if r.eof() {
			return nil, r.errorf(start, ErrUnexpectedEOF, "unterminated string")
		}
		c := r.advance()
		switch c {
		case '"':
			return &form.StringForm{Loc: r.loc(start), Value: b.String()}, nil
		case '\\':
			if r.eof() {
				return nil, r.errorf(start, ErrUnexpectedEOF, "unterminated string")
			}
			escaped := r.advance()
			switch escaped {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '"', '\\':
				b.WriteRune(escaped)
			default:
				return nil, r.errorf(start, ErrInvalidToken, "unknown escape \\%c", escaped)
			}
		default:
			b.WriteRune(c)
		}
	}
}

func (r *reader) readAtom(start mark) (form.Form, error) {
	for !r.eof() && !isDelimiter(r.peek()) {
		r.advance()
	}
	token := string(r.s[start.i:r.i])
	loc := r.loc(start)

	if token == "" {
		r.advance()
		return nil, r.errorf(start, ErrInvalidToken, "")
	}

	switch {
	case intRegex.MatchString(token):
		i, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, r.errorf(start, ErrInvalidToken, "integer out of range: %s", token)
		}
		return &form.IntForm{Loc: loc, Value: i}, nil
	case bigIntRegex.MatchString(token):
		i, ok := new(big.Int).SetString(strings.TrimSuffix(token, "N"), 10)
		if !ok {
			return nil, r.errorf(start, ErrInvalidToken, "%s", token)
		}
		return &form.BigIntForm{Loc: loc, Value: i}, nil
	case doubleRegex.MatchString(token):
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, r.errorf(start, ErrInvalidToken, "%s", token)
		}
		return &form.DoubleForm{Loc: loc, Value: f}, nil
	case bigDecRegex.MatchString(token):
		d, err := decimal.NewFromString(strings.TrimSuffix(token, "M"))
		if err != nil {
			return nil, r.errorf(start, ErrInvalidToken, "%s", token)
		}
		return &form.BigDecForm{Loc: loc, Value: d}, nil
	case token[0] == ':':
		return readKeyword(token, loc, r, start)
	}

	if ns, local, ok := splitQualified(token); ok {
		return &form.QSymbolForm{Loc: loc, Sym: symbol.Q(ns, local)}, nil
	}
	return &form.SymbolForm{Loc: loc, Sym: symbol.Intern(token)}, nil
}

func readKeyword(token string, loc form.Loc, r *reader, start mark) (form.Form, error) {
	name := token[1:]
	if name == "" {
		return nil, r.errorf(start, ErrInvalidToken, "empty keyword")
	}
	if ns, local, ok := splitQualified(name); ok {
		return &form.KeywordForm{Loc: loc, NS: symbol.Intern(ns), Name: symbol.Intern(local)}, nil
	}
	return &form.KeywordForm{Loc: loc, Name: symbol.Intern(name)}, nil
}

func splitQualified(token string) (ns, local string, ok bool) {
	idx := strings.LastIndexByte(token, '/')
	if idx <= 0 || idx == len(token)-1 {
		return "", "", false
	}
	return token[:idx], token[idx+1:], true
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c rune) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';', ',', '\'', '~':
		return true
	}
	return isSpace(c)
}
