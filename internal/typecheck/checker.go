package typecheck

import (
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
)

// Check computes the typing of e. If expected is not nil the result must unify with it,
// expected is instantiated first so its type variables are never shared with e.
func Check(e expr.ValueExpr, expected types.MonoType) (*Result, error) {
	return check(e, expected, nil)
}

// TypingOf is like Check but only returns the typing of the root.
func TypingOf(e expr.ValueExpr, expected types.MonoType) (Typing, error) {
	result, err := Check(e, expected)
	if err != nil {
		return Typing{}, err
	}
	return result.Typing, nil
}

// CheckDef checks the value of a definition. Recursive references to the var being defined
// share the type of the value, a def implementing an effect must match its declared type.
func CheckDef(def *expr.DefExpr) (*Result, error) {
	var expected types.MonoType
	if def.Effect != nil {
		expected = def.Effect.Type.Mono
	}
	return check(def.Value, expected, def.Var)
}

// CheckMacro checks a macro's expansion function: it receives forms and returns a form.
func CheckMacro(fn *expr.FnExpr) (*Result, error) {
	params := make([]types.MonoType, len(fn.Params))
	for i := range params {
		params[i] = types.FORM
	}
	return check(fn, types.NewFnType(types.FORM, params...), nil)
}

type checker struct {
	arena       types.Arena
	constraints []types.Constraint
	nodeTypes   map[expr.ValueExpr]types.MonoType
	selfTypes   map[*expr.DefVar]types.TypeVar
}

func check(e expr.ValueExpr, expected types.MonoType, self *expr.DefVar) (*Result, error) {
	c := &checker{
		nodeTypes: map[expr.ValueExpr]types.MonoType{},
		selfTypes: map[*expr.DefVar]types.TypeVar{},
	}

	typing := c.typing(e)

	if expected != nil {
		c.constrain(e.Location(), types.Instantiate(expected, &c.arena), typing.Result)
	}
	if self != nil {
		if selfType, ok := c.selfTypes[self]; ok {
			c.constrain(e.Location(), selfType, typing.Result)
		}
	}

	subst, err := types.Unify(c.constraints)
	if err != nil {
		return nil, err
	}

	freeLocals := make(map[*expr.LocalVar]types.MonoType, len(typing.FreeLocals))
	for local, t := range typing.FreeLocals {
		freeLocals[local] = subst.Apply(t)
	}
	for node, t := range c.nodeTypes {
		c.nodeTypes[node] = subst.Apply(t)
	}

	return &Result{
		Typing: Typing{
			Result:     subst.Apply(typing.Result),
			FreeLocals: freeLocals,
			Effects:    typing.Effects,
		},
		NodeTypes: c.nodeTypes,
	}, nil
}

func (c *checker) fresh() types.TypeVar {
	return c.arena.Fresh()
}

func (c *checker) constrain(loc form.Loc, left, right types.MonoType) {
	c.constraints = append(c.constraints, types.Constraint{Left: left, Right: right, Loc: loc})
}

// combine merges the free locals of typings: each distinct local gets one fresh variable
// that every child's assumption for that local is tied to.
func (c *checker) combine(loc form.Loc, typings ...*Typing) map[*expr.LocalVar]types.MonoType {
	freeLocals := map[*expr.LocalVar]types.MonoType{}

	for _, typing := range typings {
		for local, t := range typing.FreeLocals {
			combined, ok := freeLocals[local]
			if !ok {
				combined = c.fresh()
				freeLocals[local] = combined
			}
			c.constrain(loc, combined, t)
		}
	}
	return freeLocals
}

func unionEffects(typings ...*Typing) types.Effects {
	var effects types.Effects
	for _, typing := range typings {
		effects = effects.Union(typing.Effects)
	}
	return effects
}

func leaf(t types.MonoType) *Typing {
	return &Typing{Result: t}
}

func (c *checker) typing(e expr.ValueExpr) *Typing {
	typing := c.typingNoRecord(e)
	c.nodeTypes[e] = typing.Result
	return typing
}

func (c *checker) typingNoRecord(e expr.ValueExpr) *Typing {
	loc := e.Location()

	switch e := e.(type) {
	case *expr.IntExpr:
		return leaf(types.INT)
	case *expr.DoubleExpr:
		return leaf(types.FLOAT)
	case *expr.BigIntExpr:
		return leaf(types.BIG_INT)
	case *expr.BigDecExpr:
		return leaf(types.BIG_DEC)
	case *expr.StringExpr:
		return leaf(types.STRING)
	case *expr.BoolExpr:
		return leaf(types.BOOL)
	case *expr.GensymExpr:
		return leaf(types.STRING)
	case *expr.NilExpr:
		return leaf(c.fresh())
	case *expr.ErrorExpr:
		return leaf(c.fresh())
	case *expr.VectorExpr:
		elem, typing := c.collTyping(loc, e.Elements)
		typing.Result = &types.VectorType{Elem: elem}
		return typing
	case *expr.SetExpr:
		elem, typing := c.collTyping(loc, e.Elements)
		typing.Result = &types.SetType{Elem: elem}
		return typing
	case *expr.RecordExpr:
		return c.recordTyping(e)
	case *expr.LocalVarExpr:
		t := c.fresh()
		return &Typing{
			Result:     t,
			FreeLocals: map[*expr.LocalVar]types.MonoType{e.Var: t},
		}
	case *expr.GlobalVarExpr:
		return c.globalVarTyping(e)
	case *expr.KeywordExpr:
		field := c.keyType(e.Key)
		record := types.NewRecordType(map[symbol.QSymbol]types.MonoType{e.Key.Sym: field})
		return leaf(types.NewFnType(field, record))
	case *expr.LetExpr:
		return c.letTyping(e)
	case *expr.FnExpr:
		return c.fnTyping(e)
	case *expr.CallExpr:
		fn := c.typing(e.Fn)
		typings := []*Typing{fn}
		argTypes := make([]types.MonoType, len(e.Args))
		for i, arg := range e.Args {
			argTyping := c.typing(arg)
			typings = append(typings, argTyping)
			argTypes[i] = argTyping.Result
		}

		freeLocals := c.combine(loc, typings...)
		result := c.fresh()
		c.constrain(loc, fn.Result, types.NewFnType(result, argTypes...))

		return &Typing{Result: result, FreeLocals: freeLocals, Effects: unionEffects(typings...)}
	case *expr.DoExpr:
		var typings []*Typing
		for _, sideEffect := range e.SideEffects {
			typings = append(typings, c.typing(sideEffect))
		}
		result := c.typing(e.Result)
		typings = append(typings, result)

		return &Typing{Result: result.Result, FreeLocals: c.combine(loc, typings...), Effects: unionEffects(typings...)}
	case *expr.IfExpr:
		pred, then, els := c.typing(e.Pred), c.typing(e.Then), c.typing(e.Else)
		freeLocals := c.combine(loc, pred, then, els)

		result := c.fresh()
		c.constrain(e.Pred.Location(), pred.Result, types.BOOL)
		c.constrain(loc, result, then.Result)
		c.constrain(loc, result, els.Result)

		return &Typing{Result: result, FreeLocals: freeLocals, Effects: unionEffects(pred, then, els)}
	case *expr.CaseExpr:
		return c.caseTyping(e)
	case *expr.WithFxExpr:
		return c.withFxTyping(e)
	}

	panic("typecheck: unsupported expression node")
}

func (c *checker) collTyping(loc form.Loc, elements []expr.ValueExpr) (types.TypeVar, *Typing) {
	elem := c.fresh()
	typings := make([]*Typing, len(elements))

	for i, element := range elements {
		typings[i] = c.typing(element)
		c.constrain(element.Location(), elem, typings[i].Result)
	}

	return elem, &Typing{FreeLocals: c.combine(loc, typings...), Effects: unionEffects(typings...)}
}

func (c *checker) keyType(key *expr.RecordKey) types.MonoType {
	if key.Type == nil {
		return c.fresh()
	}
	return types.Instantiate(key.Type, &c.arena)
}

func (c *checker) recordTyping(e *expr.RecordExpr) *Typing {
	fields := make(map[symbol.QSymbol]types.MonoType, len(e.Fields))
	typings := make([]*Typing, len(e.Fields))

	for i, field := range e.Fields {
		typings[i] = c.typing(field.Value)
		if field.Key.Type != nil {
			c.constrain(field.Value.Location(), c.keyType(field.Key), typings[i].Result)
		}
		fields[field.Key.Sym] = typings[i].Result
	}

	return &Typing{
		Result:     types.NewRecordType(fields),
		FreeLocals: c.combine(e.Loc, typings...),
		Effects:    unionEffects(typings...),
	}
}

func (c *checker) globalVarTyping(e *expr.GlobalVarExpr) *Typing {
	if def, ok := e.Var.(*expr.DefVar); ok && def.IsPending() {
		self, ok := c.selfTypes[def]
		if !ok {
			self = c.fresh()
			c.selfTypes[def] = self
		}
		return leaf(self)
	}

	typ := expr.VarType(e.Var, &c.arena)
	return &Typing{
		Result:  types.Instantiate(typ.Mono, &c.arena),
		Effects: typ.Effects,
	}
}

func withoutLocals(freeLocals map[*expr.LocalVar]types.MonoType, locals ...*expr.LocalVar) map[*expr.LocalVar]types.MonoType {
	result := make(map[*expr.LocalVar]types.MonoType, len(freeLocals))
	for local, t := range freeLocals {
		result[local] = t
	}
	for _, local := range locals {
		delete(result, local)
	}
	return result
}

func (c *checker) letTyping(e *expr.LetExpr) *Typing {
	binding := c.typing(e.Binding)
	body := c.typing(e.Body)

	bodyWithoutVar := &Typing{Result: body.Result, FreeLocals: withoutLocals(body.FreeLocals, e.Var)}
	freeLocals := c.combine(e.Loc, binding, bodyWithoutVar)

	if usage, ok := body.FreeLocals[e.Var]; ok {
		c.constrain(e.Loc, usage, binding.Result)
	}

	return &Typing{Result: body.Result, FreeLocals: freeLocals, Effects: unionEffects(binding, body)}
}

func (c *checker) fnTyping(e *expr.FnExpr) *Typing {
	body := c.typing(e.Body)

	params := make([]types.MonoType, len(e.Params))
	for i, param := range e.Params {
		if t, ok := body.FreeLocals[param]; ok {
			params[i] = t
		} else {
			params[i] = c.fresh()
		}
	}

	return &Typing{
		Result:     types.NewFnType(body.Result, params...),
		FreeLocals: withoutLocals(body.FreeLocals, e.Params...),
		Effects:    body.Effects,
	}
}

func (c *checker) caseTyping(e *expr.CaseExpr) *Typing {
	scrutinee := c.typing(e.Scrutinee)
	typings := []*Typing{scrutinee}
	result := c.fresh()

	for _, branch := range e.Branches {
		body := c.typing(branch.Body)
		freeLocals := body.FreeLocals

		switch pattern := branch.Pattern.(type) {
		case *expr.TagPattern:
			c.constrain(pattern.Loc, scrutinee.Result, types.TAG)
			freeLocals = withoutLocals(freeLocals, pattern.Bindings...)
		case *expr.CatchAllPattern:
			if usage, ok := freeLocals[pattern.Var]; ok {
				c.constrain(pattern.Loc, usage, scrutinee.Result)
			}
			freeLocals = withoutLocals(freeLocals, pattern.Var)
		}

		c.constrain(branch.Body.Location(), result, body.Result)
		typings = append(typings, &Typing{Result: body.Result, FreeLocals: freeLocals, Effects: body.Effects})
	}

	return &Typing{Result: result, FreeLocals: c.combine(e.Loc, typings...), Effects: unionEffects(typings...)}
}

func (c *checker) withFxTyping(e *expr.WithFxExpr) *Typing {
	var handlerTypings []*Typing
	var handled []symbol.QSymbol

	for _, handler := range e.Handlers {
		typing := c.typing(handler.Fn)
		c.constrain(handler.Fn.Loc, types.Instantiate(handler.Effect.Type.Mono, &c.arena), typing.Result)

		handlerTypings = append(handlerTypings, typing)
		handled = append(handled, handler.Effect.Sym)
	}

	body := c.typing(e.Body)

	return &Typing{
		Result:     body.Result,
		FreeLocals: c.combine(e.Loc, append(handlerTypings, body)...),
		Effects:    body.Effects.Minus(handled...).Union(unionEffects(handlerTypings...)),
	}
}
