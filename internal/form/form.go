package form

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/shopspring/decimal"
)

const (
	INT_KIND           = "Int"
	DOUBLE_KIND        = "Double"
	BIG_INT_KIND       = "BigInt"
	BIG_DEC_KIND       = "BigDec"
	STRING_KIND        = "String"
	SYMBOL_KIND        = "Symbol"
	QUALIFIED_SYM_KIND = "QualifiedSymbol"
	KEYWORD_KIND       = "Keyword"
	LIST_KIND          = "List"
	VECTOR_KIND        = "Vector"
	SET_KIND           = "Set"
	RECORD_KIND        = "Record"
	UNQUOTE_KIND       = "Unquote"
)

// A Form is an immutable, source-located syntax node produced by the reader.
type Form interface {
	Location() Loc
	//Kind returns the name of the form constructor, for example "List".
	Kind() string
	String() string
}

type IntForm struct {
	Loc   Loc
	Value int64
}

type DoubleForm struct {
	Loc   Loc
	Value float64
}

type BigIntForm struct {
	Loc   Loc
	Value *big.Int
}

type BigDecForm struct {
	Loc   Loc
	Value decimal.Decimal
}

type StringForm struct {
	Loc   Loc
	Value string
}

type SymbolForm struct {
	Loc Loc
	Sym symbol.Symbol
}

type QSymbolForm struct {
	Loc Loc
	Sym symbol.QSymbol
}

// KeywordForm is :name or :ns/name, NS is the zero symbol in the first case.
type KeywordForm struct {
	Loc  Loc
	NS   symbol.Symbol
	Name symbol.Symbol
}

type ListForm struct {
	Loc      Loc
	Elements []Form
}

type VectorForm struct {
	Loc      Loc
	Elements []Form
}

type SetForm struct {
	Loc      Loc
	Elements []Form
}

// RecordForm is a record literal, elements alternate between keys and values.
type RecordForm struct {
	Loc      Loc
	Elements []Form
}

type UnquoteForm struct {
	Loc  Loc
	Form Form
}

func (f *IntForm) Location() Loc     { return f.Loc }
func (f *DoubleForm) Location() Loc  { return f.Loc }
func (f *BigIntForm) Location() Loc  { return f.Loc }
func (f *BigDecForm) Location() Loc  { return f.Loc }
func (f *StringForm) Location() Loc  { return f.Loc }
func (f *SymbolForm) Location() Loc  { return f.Loc }
func (f *QSymbolForm) Location() Loc { return f.Loc }
func (f *KeywordForm) Location() Loc { return f.Loc }
func (f *ListForm) Location() Loc    { return f.Loc }
func (f *VectorForm) Location() Loc  { return f.Loc }
func (f *SetForm) Location() Loc     { return f.Loc }
func (f *RecordForm) Location() Loc  { return f.Loc }
func (f *UnquoteForm) Location() Loc { return f.Loc }

func (f *IntForm) Kind() string     { return INT_KIND }
func (f *DoubleForm) Kind() string  { return DOUBLE_KIND }
func (f *BigIntForm) Kind() string  { return BIG_INT_KIND }
func (f *BigDecForm) Kind() string  { return BIG_DEC_KIND }
func (f *StringForm) Kind() string  { return STRING_KIND }
func (f *SymbolForm) Kind() string  { return SYMBOL_KIND }
func (f *QSymbolForm) Kind() string { return QUALIFIED_SYM_KIND }
func (f *KeywordForm) Kind() string { return KEYWORD_KIND }
func (f *ListForm) Kind() string    { return LIST_KIND }
func (f *VectorForm) Kind() string  { return VECTOR_KIND }
func (f *SetForm) Kind() string     { return SET_KIND }
func (f *RecordForm) Kind() string  { return RECORD_KIND }
func (f *UnquoteForm) Kind() string { return UNQUOTE_KIND }

func (f *IntForm) String() string { return strconv.FormatInt(f.Value, 10) }

func (f *DoubleForm) String() string { return FormatDouble(f.Value) }

func (f *BigIntForm) String() string { return f.Value.String() + "N" }

func (f *BigDecForm) String() string { return f.Value.String() + "M" }

func (f *StringForm) String() string { return strconv.Quote(f.Value) }

func (f *SymbolForm) String() string { return f.Sym.Name() }

func (f *QSymbolForm) String() string { return f.Sym.String() }

func (f *KeywordForm) String() string {
	if f.NS.IsZero() {
		return ":" + f.Name.Name()
	}
	return ":" + f.NS.Name() + "/" + f.Name.Name()
}

func (f *ListForm) String() string { return join("(", f.Elements, ")") }

func (f *VectorForm) String() string { return join("[", f.Elements, "]") }

func (f *SetForm) String() string { return join("#{", f.Elements, "}") }

func (f *RecordForm) String() string { return join("{", f.Elements, "}") }

func (f *UnquoteForm) String() string { return "~" + f.Form.String() }

// FormatDouble prints a float so that it reads back as a double.
func FormatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

func join(open string, elements []Form, close string) string {
	var b strings.Builder
	b.WriteString(open)
	for i, e := range elements {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.String())
	}
	b.WriteString(close)
	return b.String()
}

func Sym(name string) *SymbolForm {
	return &SymbolForm{Sym: symbol.Intern(name)}
}

func List(elements ...Form) *ListForm {
	return &ListForm{Elements: elements}
}

// SymbolName returns the name of f if it is an unqualified symbol.
func SymbolName(f Form) (string, bool) {
	s, ok := f.(*SymbolForm)
	if !ok {
		return "", false
	}
	return s.Sym.Name(), true
}

// Head returns the name of the leading symbol of a list form.
func Head(f Form) (string, bool) {
	l, ok := f.(*ListForm)
	if !ok || len(l.Elements) == 0 {
		return "", false
	}
	return SymbolName(l.Elements[0])
}

// Elements returns the elements of a collection form (list, vector, set, record).
func Elements(f Form) ([]Form, bool) {
	switch f := f.(type) {
	case *ListForm:
		return f.Elements, true
	case *VectorForm:
		return f.Elements, true
	case *SetForm:
		return f.Elements, true
	case *RecordForm:
		return f.Elements, true
	}
	return nil, false
}

// Equal reports whether two forms are structurally equal, locations are ignored.
func Equal(a, b Form) bool {
	switch a := a.(type) {
	case *IntForm:
		b, ok := b.(*IntForm)
		return ok && a.Value == b.Value
	case *DoubleForm:
		b, ok := b.(*DoubleForm)
		return ok && a.Value == b.Value
	case *BigIntForm:
		b, ok := b.(*BigIntForm)
		return ok && a.Value.Cmp(b.Value) == 0
	case *BigDecForm:
		b, ok := b.(*BigDecForm)
		return ok && a.Value.Equal(b.Value)
	case *StringForm:
		b, ok := b.(*StringForm)
		return ok && a.Value == b.Value
	case *SymbolForm:
		b, ok := b.(*SymbolForm)
		return ok && a.Sym == b.Sym
	case *QSymbolForm:
		b, ok := b.(*QSymbolForm)
		return ok && a.Sym == b.Sym
	case *KeywordForm:
		b, ok := b.(*KeywordForm)
		return ok && a.NS == b.NS && a.Name == b.Name
	case *UnquoteForm:
		b, ok := b.(*UnquoteForm)
		return ok && Equal(a.Form, b.Form)
	}

	aElems, ok := Elements(a)
	if !ok || a.Kind() != b.Kind() {
		return false
	}
	bElems, _ := Elements(b)
	if len(aElems) != len(bElems) {
		return false
	}
	for i := range aElems {
		if !Equal(aElems[i], bElems[i]) {
			return false
		}
	}
	return true
}

// WithDefaultLoc returns f where every form without a location gets loc, forms built at
// runtime (macro expansions) are located at the macro call this way.
func WithDefaultLoc(f Form, loc Loc) Form {
	if !f.Location().IsZero() {
		return f
	}

	relocate := func(elements []Form) []Form {
		relocated := make([]Form, len(elements))
		for i, el := range elements {
			relocated[i] = WithDefaultLoc(el, loc)
		}
		return relocated
	}

	switch f := f.(type) {
	case *IntForm:
		return &IntForm{Loc: loc, Value: f.Value}
	case *DoubleForm:
		return &DoubleForm{Loc: loc, Value: f.Value}
	case *BigIntForm:
		return &BigIntForm{Loc: loc, Value: f.Value}
	case *BigDecForm:
		return &BigDecForm{Loc: loc, Value: f.Value}
	case *StringForm:
		return &StringForm{Loc: loc, Value: f.Value}
	case *SymbolForm:
		return &SymbolForm{Loc: loc, Sym: f.Sym}
	case *QSymbolForm:
		return &QSymbolForm{Loc: loc, Sym: f.Sym}
	case *KeywordForm:
		return &KeywordForm{Loc: loc, NS: f.NS, Name: f.Name}
	case *ListForm:
		return &ListForm{Loc: loc, Elements: relocate(f.Elements)}
	case *VectorForm:
		return &VectorForm{Loc: loc, Elements: relocate(f.Elements)}
	case *SetForm:
		return &SetForm{Loc: loc, Elements: relocate(f.Elements)}
	case *RecordForm:
		return &RecordForm{Loc: loc, Elements: relocate(f.Elements)}
	case *UnquoteForm:
		return &UnquoteForm{Loc: loc, Form: WithDefaultLoc(f.Form, loc)}
	}
	return f
}
