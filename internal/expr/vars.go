package expr

import (
	"strconv"
	"sync/atomic"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
)

// A LocalVar is a lexically scoped binding, its slot is an index into the frame of the
// enclosing fn (or top-level form). Two LocalVars are only equal if they are the same pointer.
type LocalVar struct {
	Name symbol.Symbol
	Slot int
}

func (l *LocalVar) String() string {
	return l.Name.Name() + "_" + strconv.Itoa(l.Slot)
}

// GlobalVar is a namespace-level binding: *DefVar, *EffectVar, *MacroVar or *TagVar.
type GlobalVar interface {
	QSymbol() symbol.QSymbol
	globalVar()
}

// A DefVar is a plain definition.
type DefVar struct {
	Sym symbol.QSymbol
	Loc form.Loc

	//zero while the definition is being analysed and checked (recursive references).
	Type types.Type

	//set once before the var is installed in a namespace.
	Value any
}

// An EffectVar is an effect declaration (defx), it may receive a default implementation
// through a later def of the same name.
type EffectVar struct {
	Sym symbol.QSymbol
	Loc form.Loc

	//Type.Mono is a *types.FnType and Type.Effects contains the effect itself.
	Type types.Type

	defaultImpl atomic.Pointer[effectImpl]
}

type effectImpl struct {
	value any
}

// A MacroVar is a macro definition, Fn is the evaluated expansion function.
type MacroVar struct {
	Sym  symbol.QSymbol
	Loc  form.Loc
	Type types.Type
	Fn   any
}

// A TagVar is a tag constructor declared by deftag, a nullary tag is its own value.
type TagVar struct {
	Sym    symbol.QSymbol
	Loc    form.Loc
	Fields []symbol.Symbol
	Value  any
}

// A RecordKey is a record field declared by defkey.
type RecordKey struct {
	Sym symbol.QSymbol
	Loc form.Loc

	//declared type of the field values, nil if the key was declared without a type.
	Type types.MonoType
}

func (v *DefVar) QSymbol() symbol.QSymbol    { return v.Sym }
func (v *EffectVar) QSymbol() symbol.QSymbol { return v.Sym }
func (v *MacroVar) QSymbol() symbol.QSymbol  { return v.Sym }
func (v *TagVar) QSymbol() symbol.QSymbol    { return v.Sym }

func (*DefVar) globalVar()    {}
func (*EffectVar) globalVar() {}
func (*MacroVar) globalVar()  {}
func (*TagVar) globalVar()    {}

func (v *DefVar) IsPending() bool {
	return v.Type.IsZero()
}

func NewEffectVar(sym symbol.QSymbol, loc form.Loc, fnType *types.FnType) *EffectVar {
	return &EffectVar{
		Sym:  sym,
		Loc:  loc,
		Type: types.Type{Mono: fnType, Effects: types.NewEffects(sym)},
	}
}

func (v *EffectVar) SetDefault(impl any) {
	v.defaultImpl.Store(&effectImpl{value: impl})
}

func (v *EffectVar) Default() (any, bool) {
	impl := v.defaultImpl.Load()
	if impl == nil {
		return nil, false
	}
	return impl.value, true
}

func (v *TagVar) IsNullary() bool {
	return len(v.Fields) == 0
}

// VarType returns the declared or inferred type of a global, tag constructors are typed
// with fresh variables from arena.
func VarType(v GlobalVar, arena *types.Arena) types.Type {
	switch v := v.(type) {
	case *DefVar:
		return v.Type
	case *EffectVar:
		return v.Type
	case *MacroVar:
		return v.Type
	case *TagVar:
		if v.IsNullary() {
			return types.Type{Mono: types.TAG}
		}
		params := make([]types.MonoType, len(v.Fields))
		for i := range params {
			params[i] = arena.Fresh()
		}
		return types.Type{Mono: types.NewFnType(types.TAG, params...)}
	}
	return types.Type{}
}
