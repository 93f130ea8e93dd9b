package analyser

import (
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
)

func (a *analyser) analyseQuote(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) != 2 {
		return a.errorExpr(f.Loc, QUOTE_REQUIRES_ONE_ARG)
	}
	return a.analyseQuoted(f.Elements[1])
}

// analyseQuoted lowers a quoted form into calls to the form constructors of the core namespace
// that rebuild it at runtime, unquoted forms are analysed as values.
func (a *analyser) analyseQuoted(f form.Form) expr.ValueExpr {
	loc := f.Location()

	switch f := f.(type) {
	case *form.UnquoteForm:
		return a.analyseValue(f.Form)
	case *form.IntForm:
		return a.callFormConstructor(loc, form.INT_KIND, &expr.IntExpr{Loc: loc, Value: f.Value})
	case *form.DoubleForm:
		return a.callFormConstructor(loc, form.DOUBLE_KIND, &expr.DoubleExpr{Loc: loc, Value: f.Value})
	case *form.BigIntForm:
		return a.callFormConstructor(loc, form.BIG_INT_KIND, &expr.BigIntExpr{Loc: loc, Value: f.Value})
	case *form.BigDecForm:
		return a.callFormConstructor(loc, form.BIG_DEC_KIND, &expr.BigDecExpr{Loc: loc, Value: f.Value})
	case *form.StringForm:
		return a.callFormConstructor(loc, form.STRING_KIND, &expr.StringExpr{Loc: loc, Value: f.Value})
	case *form.SymbolForm:
		return a.callFormConstructor(loc, form.SYMBOL_KIND, symbolName(loc, f.Sym))
	case *form.QSymbolForm:
		return a.callFormConstructor(loc, form.QUALIFIED_SYM_KIND,
			&expr.StringExpr{Loc: loc, Value: f.Sym.NS.Name()},
			symbolName(loc, f.Sym.Local))
	case *form.KeywordForm:
		name := f.Name.Name()
		if !f.NS.IsZero() {
			name = f.NS.Name() + "/" + name
		}
		return a.callFormConstructor(loc, form.KEYWORD_KIND, &expr.StringExpr{Loc: loc, Value: name})
	case *form.ListForm:
		return a.collFormConstructor(loc, form.LIST_KIND, f.Elements)
	case *form.VectorForm:
		return a.collFormConstructor(loc, form.VECTOR_KIND, f.Elements)
	case *form.SetForm:
		return a.collFormConstructor(loc, form.SET_KIND, f.Elements)
	case *form.RecordForm:
		return a.collFormConstructor(loc, form.RECORD_KIND, f.Elements)
	}
	return a.errorExpr(loc, "unsupported form: "+f.Kind())
}

// symbolName returns the expression producing the name of a quoted symbol, x# is replaced
// by a name generated once per macro expansion.
func symbolName(loc form.Loc, sym symbol.Symbol) expr.ValueExpr {
	if sym.IsGensymTemplate() {
		return &expr.GensymExpr{Loc: loc, Base: sym.GensymBase()}
	}
	return &expr.StringExpr{Loc: loc, Value: sym.Name()}
}

func (a *analyser) callFormConstructor(loc form.Loc, name string, args ...expr.ValueExpr) expr.ValueExpr {
	constructor := a.state.resolver.ResolveVar(symbol.Intern(name))
	if constructor == nil {
		return a.errorExpr(loc, fmtFormConstructorNotFound(name))
	}
	return &expr.CallExpr{
		Loc:  loc,
		Fn:   &expr.GlobalVarExpr{Loc: loc, Var: constructor},
		Args: args,
	}
}

func (a *analyser) collFormConstructor(loc form.Loc, name string, elements []form.Form) expr.ValueExpr {
	quoted := make([]expr.ValueExpr, len(elements))
	for i, el := range elements {
		quoted[i] = a.analyseQuoted(el)
	}
	return a.callFormConstructor(loc, name, &expr.VectorExpr{Loc: loc, Elements: quoted})
}
