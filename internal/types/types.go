package types

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/bridjelang/bridje/internal/symbol"
)

var (
	INT     = &PrimitiveType{Name: "Int"}
	BOOL    = &PrimitiveType{Name: "Bool"}
	STRING  = &PrimitiveType{Name: "String"}
	FLOAT   = &PrimitiveType{Name: "Float"}
	BIG_INT = &PrimitiveType{Name: "BigInt"}
	BIG_DEC = &PrimitiveType{Name: "BigDec"}
	FORM    = &PrimitiveType{Name: "Form"}
	TAG     = &PrimitiveType{Name: "Tag"}

	PRIMITIVES = []*PrimitiveType{INT, BOOL, STRING, FLOAT, BIG_INT, BIG_DEC, FORM, TAG}
)

// MonoType is the closed set of monomorphic types:
// primitives, Vector, Set, Fn, Record and type variables.
type MonoType interface {
	String() string
	monoType()
}

type PrimitiveType struct {
	Name string
}

type VectorType struct {
	Elem MonoType
}

type SetType struct {
	Elem MonoType
}

type FnType struct {
	Params []MonoType
	Result MonoType
}

// RecordType maps record keys (identified by their qualified name) to field types.
type RecordType struct {
	Fields map[symbol.QSymbol]MonoType
}

// A TypeVar is a unification variable, it is identified by its id in an Arena.
type TypeVar struct {
	ID uint64
}

func (*PrimitiveType) monoType() {}
func (*VectorType) monoType()    {}
func (*SetType) monoType()       {}
func (*FnType) monoType()        {}
func (*RecordType) monoType()    {}
func (TypeVar) monoType()        {}

func (t *PrimitiveType) String() string {
	return t.Name
}

func (t *VectorType) String() string {
	return "[" + t.Elem.String() + "]"
}

func (t *SetType) String() string {
	return "#{" + t.Elem.String() + "}"
}

func (t *FnType) String() string {
	var b strings.Builder
	b.WriteString("(Fn")
	for _, p := range t.Params {
		b.WriteByte(' ')
		b.WriteString(p.String())
	}
	b.WriteByte(' ')
	b.WriteString(t.Result.String())
	b.WriteByte(')')
	return b.String()
}

func (t *RecordType) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range t.SortedKeys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte(':')
		b.WriteString(key.String())
		b.WriteByte(' ')
		b.WriteString(t.Fields[key].String())
	}
	b.WriteByte('}')
	return b.String()
}

func (t *RecordType) SortedKeys() []symbol.QSymbol {
	keys := make([]symbol.QSymbol, 0, len(t.Fields))
	for k := range t.Fields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b symbol.QSymbol) int {
		return cmp.Compare(a.String(), b.String())
	})
	return keys
}

func (v TypeVar) String() string {
	return "?" + strconv.FormatUint(v.ID, 10)
}

func NewFnType(result MonoType, params ...MonoType) *FnType {
	return &FnType{Params: params, Result: result}
}

func NewRecordType(fields map[symbol.QSymbol]MonoType) *RecordType {
	return &RecordType{Fields: fields}
}

// An Arena allocates type variables, ids are never reused within an arena.
type Arena struct {
	next uint64
}

func (a *Arena) Fresh() TypeVar {
	a.next++
	return TypeVar{ID: a.next}
}

func (a *Arena) Size() int {
	return int(a.next)
}

// Map rebuilds t bottom-up, fn is called on every type variable.
func Map(t MonoType, fn func(TypeVar) MonoType) MonoType {
	switch t := t.(type) {
	case TypeVar:
		return fn(t)
	case *VectorType:
		return &VectorType{Elem: Map(t.Elem, fn)}
	case *SetType:
		return &SetType{Elem: Map(t.Elem, fn)}
	case *FnType:
		params := make([]MonoType, len(t.Params))
		for i, p := range t.Params {
			params[i] = Map(p, fn)
		}
		return &FnType{Params: params, Result: Map(t.Result, fn)}
	case *RecordType:
		fields := make(map[symbol.QSymbol]MonoType, len(t.Fields))
		for k, f := range t.Fields {
			fields[k] = Map(f, fn)
		}
		return &RecordType{Fields: fields}
	default:
		return t
	}
}

// FreeVars returns the type variables of t in order of first appearance.
func FreeVars(t MonoType) []TypeVar {
	var vars []TypeVar
	seen := map[uint64]bool{}

	var walk func(t MonoType)
	walk = func(t MonoType) {
		switch t := t.(type) {
		case TypeVar:
			if !seen[t.ID] {
				seen[t.ID] = true
				vars = append(vars, t)
			}
		case *VectorType:
			walk(t.Elem)
		case *SetType:
			walk(t.Elem)
		case *FnType:
			for _, p := range t.Params {
				walk(p)
			}
			walk(t.Result)
		case *RecordType:
			for _, k := range t.SortedKeys() {
				walk(t.Fields[k])
			}
		}
	}
	walk(t)
	return vars
}

// Instantiate replaces every type variable of t with a fresh variable of arena,
// occurrences of the same variable get the same fresh variable.
func Instantiate(t MonoType, arena *Arena) MonoType {
	mapping := map[uint64]TypeVar{}
	return Map(t, func(v TypeVar) MonoType {
		fresh, ok := mapping[v.ID]
		if !ok {
			fresh = arena.Fresh()
			mapping[v.ID] = fresh
		}
		return fresh
	})
}

// Pretty prints t with its type variables named a, b, c... in order of appearance.
func Pretty(t MonoType) string {
	names := map[uint64]string{}
	for i, v := range FreeVars(t) {
		names[v.ID] = varName(i)
	}
	return Map(t, func(v TypeVar) MonoType {
		return &PrimitiveType{Name: names[v.ID]}
	}).String()
}

func varName(i int) string {
	name := string(rune('a' + i%26))
	if i >= 26 {
		name += strconv.Itoa(i / 26)
	}
	return name
}

// Equal reports whether two types are structurally equal, type variables are compared by id.
func Equal(a, b MonoType) bool {
	switch a := a.(type) {
	case TypeVar:
		b, ok := b.(TypeVar)
		return ok && a.ID == b.ID
	case *PrimitiveType:
		b, ok := b.(*PrimitiveType)
		return ok && a.Name == b.Name
	case *VectorType:
		b, ok := b.(*VectorType)
		return ok && Equal(a.Elem, b.Elem)
	case *SetType:
		b, ok := b.(*SetType)
		return ok && Equal(a.Elem, b.Elem)
	case *FnType:
		b, ok := b.(*FnType)
		if !ok || len(a.Params) != len(b.Params) || !Equal(a.Result, b.Result) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	case *RecordType:
		b, ok := b.(*RecordType)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for k, f := range a.Fields {
			other, ok := b.Fields[k]
			if !ok || !Equal(f, other) {
				return false
			}
		}
		return true
	}
	return false
}
