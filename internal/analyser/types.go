package analyser

import (
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
)

func (a *analyser) analyseTypeAnnotation(f form.Form, arena *types.Arena) types.MonoType {
	return a.analyseType(f, arena, map[symbol.Symbol]types.TypeVar{})
}

// analyseType analyses a type annotation: primitive names, [T], #{T}, (Fn P... R) and
// lower-case type variables. On error a fresh variable is returned so that analysis continues.
func (a *analyser) analyseType(f form.Form, arena *types.Arena, vars map[symbol.Symbol]types.TypeVar) types.MonoType {
	invalid := func(msg string) types.MonoType {
		a.errorExpr(f.Location(), msg)
		return arena.Fresh()
	}

	switch f := f.(type) {
	case *form.SymbolForm:
		name := f.Sym.Name()
		for _, primitive := range types.PRIMITIVES {
			if primitive.Name == name {
				return primitive
			}
		}
		if isLowerCase(name) {
			v, ok := vars[f.Sym]
			if !ok {
				v = arena.Fresh()
				vars[f.Sym] = v
			}
			return v
		}
		return invalid(fmtUnknownType(name))
	case *form.VectorForm:
		if len(f.Elements) != 1 {
			return invalid(fmtInvalidTypeAnnotation(f))
		}
		return &types.VectorType{Elem: a.analyseType(f.Elements[0], arena, vars)}
	case *form.SetForm:
		if len(f.Elements) != 1 {
			return invalid(fmtInvalidTypeAnnotation(f))
		}
		return &types.SetType{Elem: a.analyseType(f.Elements[0], arena, vars)}
	case *form.ListForm:
		if head, _ := form.Head(f); head != "Fn" || len(f.Elements) < 2 {
			return invalid(fmtInvalidTypeAnnotation(f))
		}
		typeForms := f.Elements[1:]
		params := make([]types.MonoType, len(typeForms)-1)
		for i, paramForm := range typeForms[:len(typeForms)-1] {
			params[i] = a.analyseType(paramForm, arena, vars)
		}
		return types.NewFnType(a.analyseType(typeForms[len(typeForms)-1], arena, vars), params...)
	}

	return invalid(fmtInvalidTypeAnnotation(f))
}
