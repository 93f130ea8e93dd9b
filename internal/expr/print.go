package expr

import (
	"strconv"
	"strings"

	"github.com/bridjelang/bridje/internal/form"
)

// Print returns a compact s-expression rendering of e, locals are printed with their slot
// (x_0) and globals with their namespace.
func Print(e Expr) string {
	var b strings.Builder
	p := printer{&b}
	p.expr(e)
	return b.String()
}

type printer struct {
	b *strings.Builder
}

func (p printer) str(s ...string) {
	for _, part := range s {
		p.b.WriteString(part)
	}
}

func (p printer) list(open string, elements []ValueExpr, close string) {
	p.str(open)
	for i, e := range elements {
		if i > 0 {
			p.str(" ")
		}
		p.expr(e)
	}
	p.str(close)
}

func (p printer) expr(e Expr) {
	switch e := e.(type) {
	case *IntExpr:
		p.str(strconv.FormatInt(e.Value, 10))
	case *DoubleExpr:
		p.str(form.FormatDouble(e.Value))
	case *BigIntExpr:
		p.str(e.Value.String(), "N")
	case *BigDecExpr:
		p.str(e.Value.String(), "M")
	case *StringExpr:
		p.str(strconv.Quote(e.Value))
	case *BoolExpr:
		p.str(strconv.FormatBool(e.Value))
	case *NilExpr:
		p.str("nil")
	case *VectorExpr:
		p.list("[", e.Elements, "]")
	case *SetExpr:
		p.list("#{", e.Elements, "}")
	case *RecordExpr:
		p.str("{")
		for i, field := range e.Fields {
			if i > 0 {
				p.str(" ")
			}
			p.str(":", field.Key.Sym.String(), " ")
			p.expr(field.Value)
		}
		p.str("}")
	case *LocalVarExpr:
		p.str(e.Var.String())
	case *GlobalVarExpr:
		p.str(e.Var.QSymbol().String())
	case *KeywordExpr:
		p.str(":", e.Key.Sym.String())
	case *LetExpr:
		p.str("(let [", e.Var.String(), " ")
		p.expr(e.Binding)
		p.str("] ")
		p.expr(e.Body)
		p.str(")")
	case *FnExpr:
		p.fn("fn", e)
	case *CallExpr:
		p.str("(")
		p.expr(e.Fn)
		for _, arg := range e.Args {
			p.str(" ")
			p.expr(arg)
		}
		p.str(")")
	case *DoExpr:
		p.str("(do")
		for _, sideEffect := range e.SideEffects {
			p.str(" ")
			p.expr(sideEffect)
		}
		p.str(" ")
		p.expr(e.Result)
		p.str(")")
	case *IfExpr:
		p.list("(if ", []ValueExpr{e.Pred, e.Then, e.Else}, ")")
	case *CaseExpr:
		p.str("(case ")
		p.expr(e.Scrutinee)
		for _, branch := range e.Branches {
			p.str(" ")
			p.pattern(branch.Pattern)
			p.expr(branch.Body)
		}
		p.str(")")
	case *WithFxExpr:
		p.str("(with-fx [")
		for i, handler := range e.Handlers {
			if i > 0 {
				p.str(" ")
			}
			p.fn(handler.Effect.Sym.String(), handler.Fn)
		}
		p.str("] ")
		p.expr(e.Body)
		p.str(")")
	case *GensymExpr:
		p.str("(gensym ", strconv.Quote(e.Base), ")")
	case *ErrorExpr:
		p.str("<error: ", e.Message, ">")
	case *DefExpr:
		p.str("(def ", e.Var.Sym.String(), " ")
		p.expr(e.Value)
		p.str(")")
	case *DefTagExpr:
		p.str("(deftag ")
		if len(e.Fields) == 0 {
			p.str(e.Name.Name())
		} else {
			p.str("(", e.Name.Name())
			for _, field := range e.Fields {
				p.str(" ", field.Name())
			}
			p.str(")")
		}
		p.str(")")
	case *DefMacroExpr:
		p.str("(defmacro ")
		p.expr(e.Fn)
		p.str(")")
	case *DefKeyExpr:
		p.str("(defkey :", e.Name.Name())
		if e.Type != nil {
			p.str(" ", e.Type.String())
		}
		p.str(")")
	case *DefxExpr:
		p.str("(defx ", e.Name.Name(), " ", e.Type.String(), ")")
	case *TopLevelDo:
		p.str("(do")
		for _, f := range e.Forms {
			p.str(" ", f.String())
		}
		p.str(")")
	default:
		p.str("<?>")
	}
}

func (p printer) fn(keyword string, e *FnExpr) {
	p.str("(", keyword, " (", e.Name.Name())
	for _, param := range e.Params {
		p.str(" ", param.String())
	}
	p.str(") ")
	p.expr(e.Body)
	p.str(")")
}

func (p printer) pattern(pattern CasePattern) {
	switch pattern := pattern.(type) {
	case *NilPattern:
		p.str("nil ")
	case *TagPattern:
		if len(pattern.Bindings) == 0 {
			p.str(pattern.Tag.Sym.String(), " ")
			return
		}
		p.str("(", pattern.Tag.Sym.String())
		for _, binding := range pattern.Bindings {
			p.str(" ", binding.String())
		}
		p.str(") ")
	case *CatchAllPattern:
		p.str(pattern.Var.String(), " ")
	case *DefaultPattern:
	}
}
