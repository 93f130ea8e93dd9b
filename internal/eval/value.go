package eval

import (
	"math"
	"math/big"
	"slices"
	"strings"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/shopspring/decimal"
	"src.elv.sh/pkg/persistent/hash"
	"src.elv.sh/pkg/persistent/hashmap"
	"src.elv.sh/pkg/persistent/vector"
)

// Value is a runtime value:
//   - int64, float64, *big.Int, decimal.Decimal, string, bool, nil
//   - vector.Vector, *Set, *Record
//   - *TagValue, form.Form
//   - Callable values: *Fn, *Builtin, *TagConstructor, *KeywordFn, *EffectFn
type Value = any

// A Callable is a value that can be called with a fixed number of arguments.
type Callable interface {
	Arity() int
	call(state *TreeWalkState, args []Value) (Value, error)
}

// A Fn is a function created by evaluating a fn expression.
type Fn struct {
	Expr *expr.FnExpr

	//handlers of with-fx are evaluated with the effect handlers that were bound when they were
	//created, nil for other functions.
	fx hashmap.Map
}

// A Builtin is a function implemented in Go.
type Builtin struct {
	Name  string
	arity int
	impl  func(state *TreeWalkState, args []Value) (Value, error)
}

func NewBuiltin(name string, arity int, impl func(args []Value) (Value, error)) *Builtin {
	return &Builtin{
		Name:  name,
		arity: arity,
		impl: func(_ *TreeWalkState, args []Value) (Value, error) {
			return impl(args)
		},
	}
}

// A TagValue is an instance of a tag, nullary tags have no fields.
type TagValue struct {
	Tag    symbol.QSymbol
	Fields []Value
}

// A TagConstructor creates instances of a tag with fields.
type TagConstructor struct {
	Tag    symbol.QSymbol
	Fields []symbol.Symbol
}

// A KeywordFn is a record key in value position: it returns the field of a record.
type KeywordFn struct {
	Key symbol.QSymbol
}

// An EffectFn calls the handler bound to an effect, or its default implementation.
type EffectFn struct {
	Var *expr.EffectVar
}

func (f *Fn) Arity() int             { return len(f.Expr.Params) }
func (b *Builtin) Arity() int        { return b.arity }
func (c *TagConstructor) Arity() int { return len(c.Fields) }
func (*KeywordFn) Arity() int        { return 1 }
func (f *EffectFn) Arity() int       { return len(f.Var.Type.Mono.(*types.FnType).Params) }

// ---------------- sets ----------------

// A Set is a persistent set of values.
type Set struct {
	m hashmap.Map
}

var EmptySet = &Set{m: hashmap.New(Equal, Hash)}

func NewSet(elements ...Value) *Set {
	set := EmptySet
	for _, el := range elements {
		set = set.Conj(el)
	}
	return set
}

func (s *Set) Len() int {
	return s.m.Len()
}

func (s *Set) Contains(v Value) bool {
	_, ok := s.m.Index(v)
	return ok
}

func (s *Set) Conj(v Value) *Set {
	return &Set{m: s.m.Assoc(v, struct{}{})}
}

func (s *Set) Disj(v Value) *Set {
	return &Set{m: s.m.Dissoc(v)}
}

// Elements returns the elements sorted by their printed representation.
func (s *Set) Elements() []Value {
	elements := make([]Value, 0, s.m.Len())
	for it := s.m.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		elements = append(elements, k)
	}
	slices.SortFunc(elements, func(a, b Value) int {
		return strings.Compare(PrStr(a), PrStr(b))
	})
	return elements
}

// ---------------- records ----------------

// A Record maps qualified key names to values.
type Record struct {
	m hashmap.Map
}

var EmptyRecord = &Record{m: hashmap.New(Equal, Hash)}

func (r *Record) Len() int {
	return r.m.Len()
}

func (r *Record) Get(key symbol.QSymbol) (Value, bool) {
	return r.m.Index(key.String())
}

func (r *Record) Assoc(key symbol.QSymbol, v Value) *Record {
	return &Record{m: r.m.Assoc(key.String(), v)}
}

// Keys returns the qualified names of the keys, sorted.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.m.Len())
	for it := r.m.Iterator(); it.HasElem(); it.Next() {
		k, _ := it.Elem()
		keys = append(keys, k.(string))
	}
	slices.Sort(keys)
	return keys
}

// ---------------- vectors ----------------

func NewVector(elements ...Value) vector.Vector {
	vec := vector.Empty
	for _, el := range elements {
		vec = vec.Conj(el)
	}
	return vec
}

func VectorElements(vec vector.Vector) []Value {
	elements := make([]Value, 0, vec.Len())
	for it := vec.Iterator(); it.HasElem(); it.Next() {
		elements = append(elements, it.Elem())
	}
	return elements
}

// ---------------- equality & hashing ----------------

// Equal reports whether two values are structurally equal, functions are compared by identity.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case int64, float64, string, bool:
		return a == b
	case *big.Int:
		b, ok := b.(*big.Int)
		return ok && a.Cmp(b) == 0
	case decimal.Decimal:
		b, ok := b.(decimal.Decimal)
		return ok && a.Equal(b)
	case vector.Vector:
		b, ok := b.(vector.Vector)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			x, _ := a.Index(i)
			y, _ := b.Index(i)
			if !Equal(x, y) {
				return false
			}
		}
		return true
	case *Set:
		b, ok := b.(*Set)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for it := a.m.Iterator(); it.HasElem(); it.Next() {
			k, _ := it.Elem()
			if !b.Contains(k) {
				return false
			}
		}
		return true
	case *Record:
		b, ok := b.(*Record)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for it := a.m.Iterator(); it.HasElem(); it.Next() {
			k, v := it.Elem()
			other, ok := b.m.Index(k)
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	case *TagValue:
		b, ok := b.(*TagValue)
		if !ok || a.Tag != b.Tag || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !Equal(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case form.Form:
		b, ok := b.(form.Form)
		return ok && form.Equal(a, b)
	}
	return a == b
}

func Hash(v Value) uint32 {
	switch v := v.(type) {
	case nil:
		return 0
	case int64:
		return hash.UInt64(uint64(v))
	case float64:
		return hash.UInt64(math.Float64bits(v))
	case string:
		return hash.String(v)
	case bool:
		if v {
			return 1
		}
		return 2
	case *big.Int:
		return hash.String(v.String())
	case decimal.Decimal:
		return hash.String(v.String())
	case vector.Vector:
		h := hash.DJBInit
		for it := v.Iterator(); it.HasElem(); it.Next() {
			h = hash.DJBCombine(h, Hash(it.Elem()))
		}
		return h
	case *Set:
		//order independent
		var h uint32
		for it := v.m.Iterator(); it.HasElem(); it.Next() {
			k, _ := it.Elem()
			h += Hash(k)
		}
		return h
	case *Record:
		var h uint32
		for it := v.m.Iterator(); it.HasElem(); it.Next() {
			k, val := it.Elem()
			h += hash.DJBCombine(Hash(k), Hash(val))
		}
		return h
	case *TagValue:
		h := hash.DJBCombine(hash.DJBInit, hash.String(v.Tag.String()))
		for _, field := range v.Fields {
			h = hash.DJBCombine(h, Hash(field))
		}
		return h
	case form.Form:
		return hash.String(v.String())
	case *Fn:
		return hash.String(v.Expr.Name.Name())
	case *Builtin:
		return hash.String(v.Name)
	case *TagConstructor:
		return hash.String(v.Tag.String())
	case *KeywordFn:
		return hash.String(v.Key.String())
	case *EffectFn:
		return hash.String(v.Var.Sym.String())
	}
	return 0
}
