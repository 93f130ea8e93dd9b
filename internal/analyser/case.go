package analyser

import (
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
)

// analyseCase analyses (case scrutinee pattern body ... default?).
//
// A form is a pattern if it is nil, a capitalized symbol, a list headed by a capitalized symbol,
// or a lower-case symbol followed by another form (catch-all binding). Any other form is the
// default expression and must come last.
func (a *analyser) analyseCase(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) < 3 {
		return a.errorExpr(f.Loc, CASE_REQUIRES_BRANCH)
	}

	scrutinee := a.analyseValue(f.Elements[1])
	branchForms := f.Elements[2:]

	var branches []expr.CaseBranch

	for i := 0; i < len(branchForms); {
		patternForm := branchForms[i]
		hasNext := i+1 < len(branchForms)

		if !isPattern(patternForm, hasNext) {
			if hasNext {
				a.errorExpr(patternForm.Location(), DEFAULT_EXPR_MUST_BE_LAST)
			}
			branches = append(branches, expr.CaseBranch{
				Loc:     patternForm.Location(),
				Pattern: &expr.DefaultPattern{Loc: patternForm.Location()},
				Body:    a.analyseValue(patternForm),
			})
			i++
			continue
		}

		if !hasNext {
			a.errorExpr(patternForm.Location(), CASE_BRANCH_MISSING_BODY)
			i++
			continue
		}

		if branch, ok := a.analyseCaseBranch(patternForm, branchForms[i+1]); ok {
			branches = append(branches, branch)
		}
		i += 2
	}

	if len(branches) == 0 {
		return a.errorExpr(f.Loc, CASE_REQUIRES_BRANCH)
	}

	return &expr.CaseExpr{Loc: f.Loc, Scrutinee: scrutinee, Branches: branches}
}

func isPattern(f form.Form, hasNext bool) bool {
	switch f := f.(type) {
	case *form.SymbolForm:
		name := f.Sym.Name()
		return isCapitalized(name) || name == "nil" || (isLowerCase(name) && hasNext)
	case *form.QSymbolForm:
		return isCapitalized(f.Sym.Local.Name())
	case *form.ListForm:
		if len(f.Elements) == 0 {
			return false
		}
		switch head := f.Elements[0].(type) {
		case *form.SymbolForm:
			return isCapitalized(head.Sym.Name())
		case *form.QSymbolForm:
			return isCapitalized(head.Sym.Local.Name())
		}
	}
	return false
}

func (a *analyser) analyseCaseBranch(patternForm form.Form, bodyForm form.Form) (expr.CaseBranch, bool) {
	loc := patternForm.Location()

	switch patternForm := patternForm.(type) {
	case *form.SymbolForm:
		name := patternForm.Sym.Name()

		switch {
		case name == "nil":
			return expr.CaseBranch{Loc: loc, Pattern: &expr.NilPattern{Loc: loc}, Body: a.analyseValue(bodyForm)}, true
		case isCapitalized(name):
			tag := a.resolveTag(patternForm)
			if tag == nil {
				return expr.CaseBranch{}, false
			}
			if !a.checkTagArity(loc, tag, 0) {
				return expr.CaseBranch{}, false
			}
			return expr.CaseBranch{Loc: loc, Pattern: &expr.TagPattern{Loc: loc, Tag: tag}, Body: a.analyseValue(bodyForm)}, true
		default:
			branchAnalyser, local := a.withLocal(patternForm.Sym)
			return expr.CaseBranch{
				Loc:     loc,
				Pattern: &expr.CatchAllPattern{Loc: loc, Var: local},
				Body:    branchAnalyser.analyseValue(bodyForm),
			}, true
		}
	case *form.QSymbolForm:
		tag := a.resolveTag(patternForm)
		if tag == nil || !a.checkTagArity(loc, tag, 0) {
			return expr.CaseBranch{}, false
		}
		return expr.CaseBranch{Loc: loc, Pattern: &expr.TagPattern{Loc: loc, Tag: tag}, Body: a.analyseValue(bodyForm)}, true
	case *form.ListForm:
		return a.analyseTagPatternBranch(patternForm, bodyForm)
	}

	a.errorExpr(loc, CASE_PATTERN_MUST_BE_TAG)
	return expr.CaseBranch{}, false
}

func (a *analyser) analyseTagPatternBranch(pattern *form.ListForm, bodyForm form.Form) (expr.CaseBranch, bool) {
	if len(pattern.Elements) == 0 {
		a.errorExpr(pattern.Loc, CASE_PATTERN_MUST_START_TAG)
		return expr.CaseBranch{}, false
	}

	tagForm := pattern.Elements[0]
	switch tagForm := tagForm.(type) {
	case *form.SymbolForm:
		if !isCapitalized(tagForm.Sym.Name()) {
			a.errorExpr(tagForm.Loc, fmtCasePatternTagMustBeCapitalized(tagForm.Sym.Name()))
			return expr.CaseBranch{}, false
		}
	case *form.QSymbolForm:
	default:
		a.errorExpr(pattern.Loc, CASE_PATTERN_MUST_START_TAG)
		return expr.CaseBranch{}, false
	}

	tag := a.resolveTag(tagForm)
	if tag == nil {
		return expr.CaseBranch{}, false
	}

	bindingForms := pattern.Elements[1:]
	for _, bindingForm := range bindingForms {
		if _, ok := bindingForm.(*form.SymbolForm); !ok {
			a.errorExpr(bindingForm.Location(), CASE_PATTERN_BINDINGS_SYMBOLS)
			return expr.CaseBranch{}, false
		}
	}

	if !a.checkTagArity(pattern.Loc, tag, len(bindingForms)) {
		return expr.CaseBranch{}, false
	}

	branchAnalyser := a
	bindings := make([]*expr.LocalVar, len(bindingForms))
	for i, bindingForm := range bindingForms {
		branchAnalyser, bindings[i] = branchAnalyser.withLocal(bindingForm.(*form.SymbolForm).Sym)
	}

	return expr.CaseBranch{
		Loc:     pattern.Loc,
		Pattern: &expr.TagPattern{Loc: pattern.Loc, Tag: tag, Bindings: bindings},
		Body:    branchAnalyser.analyseValue(bodyForm),
	}, true
}

func (a *analyser) resolveTag(tagForm form.Form) *expr.TagVar {
	var global expr.GlobalVar

	switch tagForm := tagForm.(type) {
	case *form.SymbolForm:
		global = a.state.resolver.ResolveVar(tagForm.Sym)
	case *form.QSymbolForm:
		global, _ = a.state.resolver.ResolveQualifiedVar(tagForm.Sym)
	}

	if global == nil {
		a.errorExpr(tagForm.Location(), fmtUnknownTag(tagForm.String()))
		return nil
	}

	tag, ok := global.(*expr.TagVar)
	if !ok {
		a.errorExpr(tagForm.Location(), fmtNotATag(tagForm.String()))
		return nil
	}
	return tag
}

func (a *analyser) checkTagArity(loc form.Loc, tag *expr.TagVar, bindings int) bool {
	if len(tag.Fields) != bindings {
		a.errorExpr(loc, fmtTagArity(tag.Sym.String(), len(tag.Fields), bindings))
		return false
	}
	return true
}
