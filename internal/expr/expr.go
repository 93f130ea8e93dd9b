package expr

import (
	"math/big"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/shopspring/decimal"
)

// Expr is the result of analysing a top-level form: a ValueExpr or one of the
// definition nodes (DefExpr, DefTagExpr, DefMacroExpr, DefKeyExpr, DefxExpr, TopLevelDo).
type Expr interface {
	Location() form.Loc
	expr()
}

// ValueExpr is an expression that produces a value.
type ValueExpr interface {
	Expr
	valueExpr()
}

// ---------------- top-level nodes ----------------

type DefExpr struct {
	Loc form.Loc
	Var *DefVar

	//non-nil if the def provides the default implementation of an effect.
	Effect *EffectVar

	Value ValueExpr
}

type DefTagExpr struct {
	Loc    form.Loc
	Name   symbol.Symbol
	Fields []symbol.Symbol
}

type DefMacroExpr struct {
	Loc  form.Loc
	Name symbol.Symbol
	Fn   *FnExpr
}

type DefKeyExpr struct {
	Loc  form.Loc
	Name symbol.Symbol
	Type types.MonoType //nil if not annotated
}

type DefxExpr struct {
	Loc  form.Loc
	Name symbol.Symbol
	Type *types.FnType
}

// TopLevelDo is a (do ...) at top level, its forms are evaluated as top-level forms.
type TopLevelDo struct {
	Loc   form.Loc
	Forms []form.Form
}

// ---------------- value nodes ----------------

type IntExpr struct {
	Loc   form.Loc
	Value int64
}

type DoubleExpr struct {
	Loc   form.Loc
	Value float64
}

type BigIntExpr struct {
	Loc   form.Loc
	Value *big.Int
}

type BigDecExpr struct {
	Loc   form.Loc
	Value decimal.Decimal
}

type StringExpr struct {
	Loc   form.Loc
	Value string
}

type BoolExpr struct {
	Loc   form.Loc
	Value bool
}

type NilExpr struct {
	Loc form.Loc
}

type VectorExpr struct {
	Loc      form.Loc
	Elements []ValueExpr
}

type SetExpr struct {
	Loc      form.Loc
	Elements []ValueExpr
}

type RecordField struct {
	Key   *RecordKey
	Value ValueExpr
}

type RecordExpr struct {
	Loc    form.Loc
	Fields []RecordField
}

type LocalVarExpr struct {
	Loc form.Loc
	Var *LocalVar
}

type GlobalVarExpr struct {
	Loc form.Loc
	Var GlobalVar
}

// KeywordExpr is a record key in value position, it evaluates to a field accessor.
type KeywordExpr struct {
	Loc form.Loc
	Key *RecordKey
}

type LetExpr struct {
	Loc     form.Loc
	Var     *LocalVar
	Binding ValueExpr
	Body    ValueExpr
}

type FnExpr struct {
	Loc       form.Loc
	Name      symbol.Symbol
	Params    []*LocalVar
	Body      ValueExpr
	SlotCount int
}

type CallExpr struct {
	Loc  form.Loc
	Fn   ValueExpr
	Args []ValueExpr
}

type DoExpr struct {
	Loc         form.Loc
	SideEffects []ValueExpr
	Result      ValueExpr
}

type IfExpr struct {
	Loc  form.Loc
	Pred ValueExpr
	Then ValueExpr
	Else ValueExpr
}

type CaseExpr struct {
	Loc       form.Loc
	Scrutinee ValueExpr
	Branches  []CaseBranch
}

type CaseBranch struct {
	Loc     form.Loc
	Pattern CasePattern
	Body    ValueExpr
}

type FxHandler struct {
	Effect *EffectVar
	Fn     *FnExpr
}

// WithFxExpr evaluates Body with the handlers bound to their effects.
type WithFxExpr struct {
	Loc      form.Loc
	Handlers []FxHandler
	Body     ValueExpr
}

// GensymExpr evaluates to a generated name, memoized by base name within one
// macro-expansion scope.
type GensymExpr struct {
	Loc  form.Loc
	Base string
}

// ErrorExpr replaces a sub-expression that failed to analyse.
type ErrorExpr struct {
	Loc     form.Loc
	Message string
}

// ---------------- case patterns ----------------

type CasePattern interface {
	Location() form.Loc
	casePattern()
}

type NilPattern struct {
	Loc form.Loc
}

type TagPattern struct {
	Loc      form.Loc
	Tag      *TagVar
	Bindings []*LocalVar
}

// CatchAllPattern binds the whole scrutinee.
type CatchAllPattern struct {
	Loc form.Loc
	Var *LocalVar
}

type DefaultPattern struct {
	Loc form.Loc
}

func (p *NilPattern) Location() form.Loc      { return p.Loc }
func (p *TagPattern) Location() form.Loc      { return p.Loc }
func (p *CatchAllPattern) Location() form.Loc { return p.Loc }
func (p *DefaultPattern) Location() form.Loc  { return p.Loc }

func (*NilPattern) casePattern()      {}
func (*TagPattern) casePattern()      {}
func (*CatchAllPattern) casePattern() {}
func (*DefaultPattern) casePattern()  {}

func (e *DefExpr) Location() form.Loc       { return e.Loc }
func (e *DefTagExpr) Location() form.Loc    { return e.Loc }
func (e *DefMacroExpr) Location() form.Loc  { return e.Loc }
func (e *DefKeyExpr) Location() form.Loc    { return e.Loc }
func (e *DefxExpr) Location() form.Loc      { return e.Loc }
func (e *TopLevelDo) Location() form.Loc    { return e.Loc }
func (e *IntExpr) Location() form.Loc       { return e.Loc }
func (e *DoubleExpr) Location() form.Loc    { return e.Loc }
func (e *BigIntExpr) Location() form.Loc    { return e.Loc }
func (e *BigDecExpr) Location() form.Loc    { return e.Loc }
func (e *StringExpr) Location() form.Loc    { return e.Loc }
func (e *BoolExpr) Location() form.Loc      { return e.Loc }
func (e *NilExpr) Location() form.Loc       { return e.Loc }
func (e *VectorExpr) Location() form.Loc    { return e.Loc }
func (e *SetExpr) Location() form.Loc       { return e.Loc }
func (e *RecordExpr) Location() form.Loc    { return e.Loc }
func (e *LocalVarExpr) Location() form.Loc  { return e.Loc }
func (e *GlobalVarExpr) Location() form.Loc { return e.Loc }
func (e *KeywordExpr) Location() form.Loc   { return e.Loc }
func (e *LetExpr) Location() form.Loc       { return e.Loc }
func (e *FnExpr) Location() form.Loc        { return e.Loc }
func (e *CallExpr) Location() form.Loc      { return e.Loc }
func (e *DoExpr) Location() form.Loc        { return e.Loc }
func (e *IfExpr) Location() form.Loc        { return e.Loc }
func (e *CaseExpr) Location() form.Loc      { return e.Loc }
func (e *WithFxExpr) Location() form.Loc    { return e.Loc }
func (e *GensymExpr) Location() form.Loc    { return e.Loc }
func (e *ErrorExpr) Location() form.Loc     { return e.Loc }

func (*DefExpr) expr()       {}
func (*DefTagExpr) expr()    {}
func (*DefMacroExpr) expr()  {}
func (*DefKeyExpr) expr()    {}
func (*DefxExpr) expr()      {}
func (*TopLevelDo) expr()    {}
func (*IntExpr) expr()       {}
func (*DoubleExpr) expr()    {}
func (*BigIntExpr) expr()    {}
func (*BigDecExpr) expr()    {}
func (*StringExpr) expr()    {}
func (*BoolExpr) expr()      {}
func (*NilExpr) expr()       {}
func (*VectorExpr) expr()    {}
func (*SetExpr) expr()       {}
func (*RecordExpr) expr()    {}
func (*LocalVarExpr) expr()  {}
func (*GlobalVarExpr) expr() {}
func (*KeywordExpr) expr()   {}
func (*LetExpr) expr()       {}
func (*FnExpr) expr()        {}
func (*CallExpr) expr()      {}
func (*DoExpr) expr()        {}
func (*IfExpr) expr()        {}
func (*CaseExpr) expr()      {}
func (*WithFxExpr) expr()    {}
func (*GensymExpr) expr()    {}
func (*ErrorExpr) expr()     {}

func (*IntExpr) valueExpr()       {}
func (*DoubleExpr) valueExpr()    {}
func (*BigIntExpr) valueExpr()    {}
func (*BigDecExpr) valueExpr()    {}
func (*StringExpr) valueExpr()    {}
func (*BoolExpr) valueExpr()      {}
func (*NilExpr) valueExpr()       {}
func (*VectorExpr) valueExpr()    {}
func (*SetExpr) valueExpr()       {}
func (*RecordExpr) valueExpr()    {}
func (*LocalVarExpr) valueExpr()  {}
func (*GlobalVarExpr) valueExpr() {}
func (*KeywordExpr) valueExpr()   {}
func (*LetExpr) valueExpr()       {}
func (*FnExpr) valueExpr()        {}
func (*CallExpr) valueExpr()      {}
func (*DoExpr) valueExpr()        {}
func (*IfExpr) valueExpr()        {}
func (*CaseExpr) valueExpr()      {}
func (*WithFxExpr) valueExpr()    {}
func (*GensymExpr) valueExpr()    {}
func (*ErrorExpr) valueExpr()     {}
