package analyser

import (
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
)

func (a *analyser) analyseTopLevel(f form.Form) expr.Expr {
	list, ok := f.(*form.ListForm)
	if !ok {
		return a.analyseValue(f)
	}

	head, _ := form.Head(list)
	switch head {
	case "do":
		return &expr.TopLevelDo{Loc: list.Loc, Forms: list.Elements[1:]}
	case "def":
		return a.analyseDef(list)
	case "deftag":
		return a.analyseDefTag(list)
	case "defmacro":
		return a.analyseDefMacro(list)
	case "defkey":
		return a.analyseDefKey(list)
	case "defx":
		return a.analyseDefx(list)
	}
	return a.analyseValue(f)
}

// analyseDef analyses (def name value) and (def (name params...) body...).
func (a *analyser) analyseDef(f *form.ListForm) expr.Expr {
	if len(f.Elements) < 2 {
		return a.errorExpr(f.Loc, DEF_REQUIRES_NAME)
	}

	var name symbol.Symbol

	switch sig := f.Elements[1].(type) {
	case *form.ListForm:
		if len(sig.Elements) == 0 {
			return a.errorExpr(sig.Loc, FN_SIGNATURE_MUST_START_NAME)
		}
		nameForm, ok := sig.Elements[0].(*form.SymbolForm)
		if !ok {
			return a.errorExpr(sig.Loc, FN_SIGNATURE_MUST_START_NAME)
		}
		name = nameForm.Sym
	case *form.SymbolForm:
		name = sig.Sym
		if len(f.Elements) < 3 {
			return a.errorExpr(f.Loc, DEF_REQUIRES_VALUE)
		}
		if len(f.Elements) > 3 {
			return a.errorExpr(f.Loc, DEF_TOO_MANY_FORMS)
		}
	default:
		return a.errorExpr(f.Loc, DEF_REQUIRES_NAME)
	}

	def := &expr.DefExpr{
		Loc: f.Loc,
		Var: &expr.DefVar{Sym: symbol.QSymbol{NS: symbol.Intern(a.state.resolver.NsName()), Local: name}, Loc: f.Loc},
	}

	//a def named after an effect of the same namespace is its default implementation.
	if effect, ok := a.state.resolver.ResolveVar(name).(*expr.EffectVar); ok && effect.Sym == def.Var.Sym {
		def.Effect = effect
	} else {
		a.state.pendingDef = def.Var
		defer func() { a.state.pendingDef = nil }()
	}

	switch sig := f.Elements[1].(type) {
	case *form.ListForm:
		fn, errExpr := a.analyseFnParts(f.Loc, sig, f.Elements[2:])
		if errExpr != nil {
			return errExpr
		}
		def.Value = fn
	default:
		def.Value = a.analyseValue(f.Elements[2])
	}

	return def
}

// analyseDefTag analyses (deftag Name) and (deftag (Name field...)).
func (a *analyser) analyseDefTag(f *form.ListForm) expr.Expr {
	if len(f.Elements) != 2 {
		return a.errorExpr(f.Loc, DEFTAG_REQUIRES_SIGNATURE)
	}

	switch sig := f.Elements[1].(type) {
	case *form.SymbolForm:
		if !isCapitalized(sig.Sym.Name()) {
			return a.errorExpr(sig.Loc, fmtTagMustBeCapitalized(sig.Sym.Name()))
		}
		return &expr.DefTagExpr{Loc: f.Loc, Name: sig.Sym}
	case *form.ListForm:
		if len(sig.Elements) == 0 {
			return a.errorExpr(sig.Loc, DEFTAG_REQUIRES_SIGNATURE)
		}
		nameForm, ok := sig.Elements[0].(*form.SymbolForm)
		if !ok {
			return a.errorExpr(sig.Loc, DEFTAG_REQUIRES_SIGNATURE)
		}
		if !isCapitalized(nameForm.Sym.Name()) {
			return a.errorExpr(nameForm.Loc, fmtTagMustBeCapitalized(nameForm.Sym.Name()))
		}

		var fields []symbol.Symbol
		for _, el := range sig.Elements[1:] {
			field, ok := el.(*form.SymbolForm)
			if !ok {
				return a.errorExpr(el.Location(), TAG_FIELD_MUST_BE_SYMBOL)
			}
			fields = append(fields, field.Sym)
		}
		return &expr.DefTagExpr{Loc: f.Loc, Name: nameForm.Sym, Fields: fields}
	}

	return a.errorExpr(f.Loc, DEFTAG_REQUIRES_SIGNATURE)
}

// analyseDefKey analyses (defkey :name) and (defkey :name Type).
func (a *analyser) analyseDefKey(f *form.ListForm) expr.Expr {
	if len(f.Elements) < 2 || len(f.Elements) > 3 {
		return a.errorExpr(f.Loc, DEFKEY_REQUIRES_KEYWORD)
	}
	keyword, ok := f.Elements[1].(*form.KeywordForm)
	if !ok || !keyword.NS.IsZero() {
		return a.errorExpr(f.Loc, DEFKEY_REQUIRES_KEYWORD)
	}

	defKey := &expr.DefKeyExpr{Loc: f.Loc, Name: keyword.Name}
	if len(f.Elements) == 3 {
		defKey.Type = a.analyseTypeAnnotation(f.Elements[2], &types.Arena{})
	}
	return defKey
}

// analyseDefMacro analyses (defmacro (name params...) body...).
func (a *analyser) analyseDefMacro(f *form.ListForm) expr.Expr {
	if len(f.Elements) < 2 {
		return a.errorExpr(f.Loc, DEFMACRO_REQUIRES_SIGNATURE)
	}
	sig, ok := f.Elements[1].(*form.ListForm)
	if !ok {
		return a.errorExpr(f.Loc, DEFMACRO_REQUIRES_SIGNATURE)
	}

	fn, errExpr := a.analyseFnParts(f.Loc, sig, f.Elements[2:])
	if errExpr != nil {
		return errExpr
	}
	return &expr.DefMacroExpr{Loc: f.Loc, Name: fn.Name, Fn: fn}
}

// analyseDefx analyses (defx (name ParamType...) ResultType).
func (a *analyser) analyseDefx(f *form.ListForm) expr.Expr {
	if len(f.Elements) != 3 {
		return a.errorExpr(f.Loc, DEFX_REQUIRES_SIGNATURE)
	}
	sig, ok := f.Elements[1].(*form.ListForm)
	if !ok || len(sig.Elements) == 0 {
		return a.errorExpr(f.Loc, DEFX_REQUIRES_SIGNATURE)
	}
	nameForm, ok := sig.Elements[0].(*form.SymbolForm)
	if !ok {
		return a.errorExpr(sig.Loc, DEFX_REQUIRES_SIGNATURE)
	}

	//variables are shared between the parameter types and the result type.
	arena := &types.Arena{}
	vars := map[symbol.Symbol]types.TypeVar{}

	params := make([]types.MonoType, 0, len(sig.Elements)-1)
	for _, paramForm := range sig.Elements[1:] {
		params = append(params, a.analyseType(paramForm, arena, vars))
	}
	result := a.analyseType(f.Elements[2], arena, vars)

	return &expr.DefxExpr{Loc: f.Loc, Name: nameForm.Sym, Type: types.NewFnType(result, params...)}
}
