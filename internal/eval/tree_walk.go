package eval

import (
	"context"
	"fmt"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/symbol"
	"src.elv.sh/pkg/persistent/hashmap"
	"src.elv.sh/pkg/persistent/vector"
)

const (
	DEFAULT_MAX_CALL_DEPTH = 10_000
)

// An Evaluator evaluates analysed expressions by walking the tree.
type Evaluator struct {
	gensyms      symbol.GensymCounter
	maxCallDepth int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{maxCallDepth: DEFAULT_MAX_CALL_DEPTH}
}

// TreeWalkState is the state of one call: its frame of local slots, the effect handlers in
// scope and the gensym scope of the current macro expansion.
type TreeWalkState struct {
	ctx     context.Context
	ev      *Evaluator
	frame   []Value
	fx      hashmap.Map //effect name -> Callable
	gensyms *gensymScope
	depth   int
}

// A gensymScope memoizes the generated names by base name during one macro expansion
// (or one top-level evaluation).
type gensymScope struct {
	counter *symbol.GensymCounter
	names   map[string]string
}

func (s *gensymScope) gensym(base string) string {
	if name, ok := s.names[base]; ok {
		return name
	}
	name := s.counter.Gensym(base).Name()
	s.names[base] = name
	return name
}

func (ev *Evaluator) newState(ctx context.Context) *TreeWalkState {
	return &TreeWalkState{
		ctx:     ctx,
		ev:      ev,
		fx:      hashmap.New(Equal, Hash),
		gensyms: ev.newGensymScope(),
	}
}

func (ev *Evaluator) newGensymScope() *gensymScope {
	return &gensymScope{counter: &ev.gensyms, names: map[string]string{}}
}

// Eval evaluates a top-level value expression.
func (ev *Evaluator) Eval(ctx context.Context, e expr.ValueExpr) (Value, error) {
	return TreeWalkEval(e, ev.newState(ctx))
}

// Call calls a callable value from Go.
func (ev *Evaluator) Call(ctx context.Context, fn Value, args ...Value) (Value, error) {
	callable, ok := fn.(Callable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, PrStr(fn))
	}
	return callValue(ev.newState(ctx), callable, args)
}

// MakeFn creates the function value of a fn expression.
func (ev *Evaluator) MakeFn(fn *expr.FnExpr) *Fn {
	return &Fn{Expr: fn}
}

func (state *TreeWalkState) get(local *expr.LocalVar) Value {
	if local.Slot >= len(state.frame) {
		return nil
	}
	return state.frame[local.Slot]
}

func (state *TreeWalkState) set(local *expr.LocalVar, v Value) {
	if local.Slot >= len(state.frame) {
		frame := make([]Value, local.Slot+1, max(local.Slot+1, 2*len(state.frame)))
		copy(frame, state.frame)
		state.frame = frame
	}
	state.frame[local.Slot] = v
}

// TreeWalkEval evaluates e.
func TreeWalkEval(e expr.ValueExpr, state *TreeWalkState) (result Value, err error) {
	switch e := e.(type) {
	case *expr.IntExpr:
		return e.Value, nil
	case *expr.DoubleExpr:
		return e.Value, nil
	case *expr.BigIntExpr:
		return e.Value, nil
	case *expr.BigDecExpr:
		return e.Value, nil
	case *expr.StringExpr:
		return e.Value, nil
	case *expr.BoolExpr:
		return e.Value, nil
	case *expr.NilExpr:
		return nil, nil
	case *expr.GensymExpr:
		return state.gensyms.gensym(e.Base), nil
	case *expr.VectorExpr:
		vec := vector.Empty
		for _, el := range e.Elements {
			v, err := TreeWalkEval(el, state)
			if err != nil {
				return nil, err
			}
			vec = vec.Conj(v)
		}
		return vec, nil
	case *expr.SetExpr:
		set := EmptySet
		for _, el := range e.Elements {
			v, err := TreeWalkEval(el, state)
			if err != nil {
				return nil, err
			}
			set = set.Conj(v)
		}
		return set, nil
	case *expr.RecordExpr:
		record := EmptyRecord
		for _, field := range e.Fields {
			v, err := TreeWalkEval(field.Value, state)
			if err != nil {
				return nil, err
			}
			record = record.Assoc(field.Key.Sym, v)
		}
		return record, nil
	case *expr.LocalVarExpr:
		return state.get(e.Var), nil
	case *expr.GlobalVarExpr:
		return globalValue(e)
	case *expr.KeywordExpr:
		return &KeywordFn{Key: e.Key.Sym}, nil
	case *expr.LetExpr:
		v, err := TreeWalkEval(e.Binding, state)
		if err != nil {
			return nil, err
		}
		state.set(e.Var, v)
		return TreeWalkEval(e.Body, state)
	case *expr.FnExpr:
		return state.ev.MakeFn(e), nil
	case *expr.CallExpr:
		return treeWalkCall(e, state)
	case *expr.DoExpr:
		for _, sideEffect := range e.SideEffects {
			if _, err := TreeWalkEval(sideEffect, state); err != nil {
				return nil, err
			}
		}
		return TreeWalkEval(e.Result, state)
	case *expr.IfExpr:
		pred, err := TreeWalkEval(e.Pred, state)
		if err != nil {
			return nil, err
		}
		b, ok := pred.(bool)
		if !ok {
			return nil, newRuntimeError(e.Pred.Location(), ErrUnexpectedValue, "the condition of an if should be a boolean, got %s", PrStr(pred))
		}
		if b {
			return TreeWalkEval(e.Then, state)
		}
		return TreeWalkEval(e.Else, state)
	case *expr.CaseExpr:
		return treeWalkCase(e, state)
	case *expr.WithFxExpr:
		fx := state.fx
		for _, handler := range e.Handlers {
			fx = fx.Assoc(handler.Effect.Sym.String(), &Fn{Expr: handler.Fn, fx: state.fx})
		}

		outerFx := state.fx
		state.fx = fx
		defer func() {
			state.fx = outerFx
		}()
		return TreeWalkEval(e.Body, state)
	case *expr.ErrorExpr:
		return nil, newRuntimeError(e.Loc, ErrUnexpectedValue, "cannot evaluate an expression that failed to analyse: %s", e.Message)
	}

	return nil, fmt.Errorf("cannot evaluate %T", e)
}

func globalValue(e *expr.GlobalVarExpr) (Value, error) {
	switch v := e.Var.(type) {
	case *expr.DefVar:
		if v.Value == nil && v.IsPending() {
			return nil, newRuntimeError(e.Loc, ErrUndefinedVar, "%s", v.Sym)
		}
		return v.Value, nil
	case *expr.EffectVar:
		return &EffectFn{Var: v}, nil
	case *expr.TagVar:
		if v.Value != nil {
			return v.Value, nil
		}
		if v.IsNullary() {
			return &TagValue{Tag: v.Sym}, nil
		}
		return &TagConstructor{Tag: v.Sym, Fields: v.Fields}, nil
	}
	return nil, newRuntimeError(e.Loc, ErrUnexpectedValue, "%s cannot be used as a value", e.Var.QSymbol())
}

func treeWalkCall(e *expr.CallExpr, state *TreeWalkState) (Value, error) {
	fn, err := TreeWalkEval(e.Fn, state)
	if err != nil {
		return nil, err
	}

	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		args[i], err = TreeWalkEval(arg, state)
		if err != nil {
			return nil, err
		}
	}

	callable, ok := fn.(Callable)
	if !ok {
		return nil, newRuntimeError(e.Loc, ErrNotCallable, "%s", PrStr(fn))
	}

	result, err := callValue(state, callable, args)
	return result, locate(e.Loc, err)
}

func callValue(state *TreeWalkState, callable Callable, args []Value) (Value, error) {
	if callable.Arity() != len(args) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrArity, PrStr(callable), callable.Arity(), len(args))
	}

	if err := state.ctx.Err(); err != nil {
		return nil, err
	}

	if state.depth >= state.ev.maxCallDepth {
		return nil, ErrStackOverflow
	}

	return callable.call(state, args)
}

func (f *Fn) call(caller *TreeWalkState, args []Value) (Value, error) {
	fx := caller.fx
	if f.fx != nil {
		fx = f.fx
	}

	state := &TreeWalkState{
		ctx:     caller.ctx,
		ev:      caller.ev,
		frame:   make([]Value, max(f.Expr.SlotCount, len(args))),
		fx:      fx,
		gensyms: caller.gensyms,
		depth:   caller.depth + 1,
	}

	for i, param := range f.Expr.Params {
		state.frame[param.Slot] = args[i]
	}

	return TreeWalkEval(f.Expr.Body, state)
}

func (b *Builtin) call(state *TreeWalkState, args []Value) (Value, error) {
	return b.impl(state, args)
}

func (c *TagConstructor) call(_ *TreeWalkState, args []Value) (Value, error) {
	return &TagValue{Tag: c.Tag, Fields: args}, nil
}

func (k *KeywordFn) call(_ *TreeWalkState, args []Value) (Value, error) {
	record, ok := args[0].(*Record)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a record", ErrUnexpectedValue, PrStr(args[0]))
	}
	v, ok := record.Get(k.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, k.Key)
	}
	return v, nil
}

func (f *EffectFn) call(state *TreeWalkState, args []Value) (Value, error) {
	if handler, ok := state.fx.Index(f.Var.Sym.String()); ok {
		return callValue(state, handler.(Callable), args)
	}

	if impl, ok := f.Var.Default(); ok {
		callable, ok := impl.(Callable)
		if !ok {
			return nil, fmt.Errorf("%w: default implementation of %s", ErrNotCallable, f.Var.Sym)
		}
		return callValue(state, callable, args)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnhandledEffect, f.Var.Sym)
}

func treeWalkCase(e *expr.CaseExpr, state *TreeWalkState) (Value, error) {
	scrutinee, err := TreeWalkEval(e.Scrutinee, state)
	if err != nil {
		return nil, err
	}

	for _, branch := range e.Branches {
		switch pattern := branch.Pattern.(type) {
		case *expr.NilPattern:
			if scrutinee != nil {
				continue
			}
		case *expr.TagPattern:
			tagValue, ok := scrutinee.(*TagValue)
			if !ok || tagValue.Tag != pattern.Tag.Sym || len(tagValue.Fields) != len(pattern.Bindings) {
				continue
			}
			for i, binding := range pattern.Bindings {
				state.set(binding, tagValue.Fields[i])
			}
		case *expr.CatchAllPattern:
			state.set(pattern.Var, scrutinee)
		case *expr.DefaultPattern:
		}
		return TreeWalkEval(branch.Body, state)
	}

	return nil, newRuntimeError(e.Loc, ErrNoMatchingClause, "%s", PrStr(scrutinee))
}
