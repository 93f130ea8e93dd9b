package analyser

import (
	"unicode"
	"unicode/utf8"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
)

const (
	MAX_EXPANSION_DEPTH = 100
)

// A Resolver resolves the global names visible from the namespace being analysed.
type Resolver interface {
	//NsName returns the name of the namespace being analysed.
	NsName() string

	//ResolveVar looks a name up in the current namespace then in the core namespace,
	//nil is returned if the name is not defined.
	ResolveVar(sym symbol.Symbol) expr.GlobalVar

	//ResolveQualifiedVar resolves ns/member where ns is a namespace name or a require alias,
	//nsKnown is false if ns is neither.
	ResolveQualifiedVar(q symbol.QSymbol) (v expr.GlobalVar, nsKnown bool)

	//ResolveKey resolves a record key, qualifier is the zero symbol for :name.
	ResolveKey(qualifier, name symbol.Symbol) *expr.RecordKey
}

// A MacroExpander runs the expansion function of a macro on unanalysed forms.
type MacroExpander interface {
	ExpandMacro(m *expr.MacroVar, args []form.Form) (form.Form, error)
}

// state is shared by all the analysers working on one top-level form.
type state struct {
	resolver Resolver
	expander MacroExpander
	errors   []*Error

	//def whose value is being analysed, references to its name resolve to it.
	pendingDef *expr.DefVar
}

// frame allocates the slots of one fn body (or of a top-level form).
type frame struct {
	nextSlot int
}

// scope is an immutable linked list of local bindings, the innermost binding comes first.
type scope struct {
	local  *expr.LocalVar
	parent *scope
}

func (s *scope) lookup(name symbol.Symbol) *expr.LocalVar {
	for current := s; current != nil; current = current.parent {
		if current.local.Name == name {
			return current.local
		}
	}
	return nil
}

type analyser struct {
	state          *state
	frame          *frame
	scope          *scope
	expansionDepth int
}

// Analyse analyses a top-level form. Recoverable problems do not stop the analysis: they are all
// collected and returned as an *Errors, in which case the expression is nil.
func Analyse(f form.Form, resolver Resolver, expander MacroExpander) (expr.Expr, error) {
	a := newAnalyser(resolver, expander)
	e := a.analyseTopLevel(f)
	return a.result(f, e)
}

// AnalyseValue is like Analyse but rejects top-level-only forms.
func AnalyseValue(f form.Form, resolver Resolver, expander MacroExpander) (expr.ValueExpr, error) {
	a := newAnalyser(resolver, expander)
	e := a.analyseValue(f)

	result, err := a.result(f, e)
	if err != nil {
		return nil, err
	}
	return result.(expr.ValueExpr), nil
}

func newAnalyser(resolver Resolver, expander MacroExpander) *analyser {
	return &analyser{
		state: &state{resolver: resolver, expander: expander},
		frame: &frame{},
	}
}

func (a *analyser) result(f form.Form, e expr.Expr) (expr.Expr, error) {
	if len(a.state.errors) > 0 {
		return nil, &Errors{Loc: f.Location(), Errors: a.state.errors}
	}
	return e, nil
}

func (a *analyser) errorExpr(loc form.Loc, msg string) *expr.ErrorExpr {
	a.state.errors = append(a.state.errors, &Error{Message: msg, Loc: loc})
	return &expr.ErrorExpr{Loc: loc, Message: msg}
}

// withLocal returns an analyser whose scope contains a new local occupying the next slot of the frame.
func (a *analyser) withLocal(name symbol.Symbol) (*analyser, *expr.LocalVar) {
	local := &expr.LocalVar{Name: name, Slot: a.frame.nextSlot}
	a.frame.nextSlot++

	child := *a
	child.scope = &scope{local: local, parent: a.scope}
	return &child, local
}

// fnAnalyser returns an analyser for the body of a fn: new frame, empty scope.
func (a *analyser) fnAnalyser() *analyser {
	return &analyser{
		state:          a.state,
		frame:          &frame{},
		expansionDepth: a.expansionDepth,
	}
}

func isCapitalized(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func isLowerCase(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLower(r)
}

// ---------------- value position ----------------

func (a *analyser) analyseValue(f form.Form) expr.ValueExpr {
	switch f := f.(type) {
	case *form.IntForm:
		return &expr.IntExpr{Loc: f.Loc, Value: f.Value}
	case *form.DoubleForm:
		return &expr.DoubleExpr{Loc: f.Loc, Value: f.Value}
	case *form.BigIntForm:
		return &expr.BigIntExpr{Loc: f.Loc, Value: f.Value}
	case *form.BigDecForm:
		return &expr.BigDecExpr{Loc: f.Loc, Value: f.Value}
	case *form.StringForm:
		return &expr.StringExpr{Loc: f.Loc, Value: f.Value}
	case *form.SymbolForm:
		return a.analyseSymbol(f)
	case *form.QSymbolForm:
		return a.analyseQualifiedSymbol(f)
	case *form.KeywordForm:
		key := a.state.resolver.ResolveKey(f.NS, f.Name)
		if key == nil {
			return a.errorExpr(f.Loc, fmtUnknownKey(f))
		}
		return &expr.KeywordExpr{Loc: f.Loc, Key: key}
	case *form.ListForm:
		return a.analyseList(f)
	case *form.VectorForm:
		return &expr.VectorExpr{Loc: f.Loc, Elements: a.analyseValues(f.Elements)}
	case *form.SetForm:
		return &expr.SetExpr{Loc: f.Loc, Elements: a.analyseValues(f.Elements)}
	case *form.RecordForm:
		return a.analyseRecord(f)
	case *form.UnquoteForm:
		return a.errorExpr(f.Loc, UNQUOTE_OUTSIDE_QUOTE)
	}
	return a.errorExpr(f.Location(), "unsupported form: "+f.Kind())
}

func (a *analyser) analyseValues(forms []form.Form) []expr.ValueExpr {
	exprs := make([]expr.ValueExpr, len(forms))
	for i, f := range forms {
		exprs[i] = a.analyseValue(f)
	}
	return exprs
}

func (a *analyser) resolveGlobal(sym symbol.Symbol) expr.GlobalVar {
	if pending := a.state.pendingDef; pending != nil && pending.Sym.Local == sym {
		return pending
	}
	return a.state.resolver.ResolveVar(sym)
}

func (a *analyser) analyseSymbol(f *form.SymbolForm) expr.ValueExpr {
	switch f.Sym.Name() {
	case "nil":
		return &expr.NilExpr{Loc: f.Loc}
	case "true":
		return &expr.BoolExpr{Loc: f.Loc, Value: true}
	case "false":
		return &expr.BoolExpr{Loc: f.Loc, Value: false}
	}

	if local := a.scope.lookup(f.Sym); local != nil {
		return &expr.LocalVarExpr{Loc: f.Loc, Var: local}
	}

	global := a.resolveGlobal(f.Sym)
	if global == nil {
		return a.errorExpr(f.Loc, fmtUnknownSymbol(f.Sym.Name()))
	}
	return a.globalVarExpr(f.Loc, global)
}

func (a *analyser) analyseQualifiedSymbol(f *form.QSymbolForm) expr.ValueExpr {
	global, nsKnown := a.state.resolver.ResolveQualifiedVar(f.Sym)
	if !nsKnown {
		return a.errorExpr(f.Loc, fmtUnknownNamespace(f.Sym.NS.Name()))
	}
	if global == nil {
		return a.errorExpr(f.Loc, fmtUnknownSymbolInNamespace(f.Sym.Local.Name(), f.Sym.NS.Name()))
	}
	return a.globalVarExpr(f.Loc, global)
}

func (a *analyser) globalVarExpr(loc form.Loc, global expr.GlobalVar) expr.ValueExpr {
	if macro, ok := global.(*expr.MacroVar); ok {
		return a.errorExpr(loc, fmtMacroInValuePosition(macro.Sym.String()))
	}
	return &expr.GlobalVarExpr{Loc: loc, Var: global}
}

func (a *analyser) analyseList(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) == 0 {
		return a.errorExpr(f.Loc, EMPTY_LIST_IN_VALUE_POSITION)
	}

	if head, ok := form.Head(f); ok {
		switch head {
		case "let":
			return a.analyseLet(f)
		case "fn":
			return a.analyseFn(f)
		case "do":
			if len(f.Elements) == 1 {
				return a.errorExpr(f.Loc, DO_REQUIRES_EXPRESSION)
			}
			return a.analyseBody(f.Loc, f.Elements[1:])
		case "if":
			return a.analyseIf(f)
		case "case":
			return a.analyseCase(f)
		case "quote":
			return a.analyseQuote(f)
		case "with-fx":
			return a.analyseWithFx(f)
		case "def", "deftag", "defmacro", "defkey", "defx":
			return a.errorExpr(f.Loc, fmtNotAllowedInValuePosition(head))
		}
	}

	return a.analyseCall(f)
}

// macroOf returns the macro a call head refers to, if any. Locals shadow macros.
func (a *analyser) macroOf(head form.Form) *expr.MacroVar {
	var global expr.GlobalVar

	switch head := head.(type) {
	case *form.SymbolForm:
		if a.scope.lookup(head.Sym) != nil {
			return nil
		}
		global = a.resolveGlobal(head.Sym)
	case *form.QSymbolForm:
		global, _ = a.state.resolver.ResolveQualifiedVar(head.Sym)
	}

	macro, _ := global.(*expr.MacroVar)
	return macro
}

func (a *analyser) analyseCall(f *form.ListForm) expr.ValueExpr {
	if macro := a.macroOf(f.Elements[0]); macro != nil {
		expanded, errExpr := a.expand(f, macro)
		if errExpr != nil {
			return errExpr
		}
		child := *a
		child.expansionDepth++
		return child.analyseValue(expanded)
	}

	return &expr.CallExpr{
		Loc:  f.Loc,
		Fn:   a.analyseValue(f.Elements[0]),
		Args: a.analyseValues(f.Elements[1:]),
	}
}

func (a *analyser) expand(f *form.ListForm, macro *expr.MacroVar) (form.Form, *expr.ErrorExpr) {
	if a.expansionDepth >= MAX_EXPANSION_DEPTH {
		return nil, a.errorExpr(f.Loc, fmtMaxExpansionDepth(MAX_EXPANSION_DEPTH))
	}
	if a.state.expander == nil {
		return nil, a.errorExpr(f.Loc, MACRO_EXPANSION_NOT_SUPPORTED)
	}

	expanded, err := a.state.expander.ExpandMacro(macro, f.Elements[1:])
	if err != nil {
		return nil, a.errorExpr(f.Loc, fmtMacroExpansionFailed(macro.Sym.String(), err))
	}
	return form.WithDefaultLoc(expanded, f.Loc), nil
}

func (a *analyser) analyseRecord(f *form.RecordForm) expr.ValueExpr {
	if len(f.Elements)%2 != 0 {
		return a.errorExpr(f.Loc, ODD_RECORD_LITERAL)
	}

	var fields []expr.RecordField

	for i := 0; i < len(f.Elements); i += 2 {
		keyForm, ok := f.Elements[i].(*form.KeywordForm)
		if !ok {
			return a.errorExpr(f.Elements[i].Location(), RECORD_KEYS_MUST_BE_KW)
		}
		key := a.state.resolver.ResolveKey(keyForm.NS, keyForm.Name)
		if key == nil {
			return a.errorExpr(keyForm.Loc, fmtUnknownKey(keyForm))
		}
		fields = append(fields, expr.RecordField{Key: key, Value: a.analyseValue(f.Elements[i+1])})
	}

	return &expr.RecordExpr{Loc: f.Loc, Fields: fields}
}

func (a *analyser) analyseBody(loc form.Loc, forms []form.Form) expr.ValueExpr {
	switch len(forms) {
	case 0:
		return a.errorExpr(loc, BODY_REQUIRES_EXPR)
	case 1:
		return a.analyseValue(forms[0])
	}

	sideEffects := a.analyseValues(forms[:len(forms)-1])
	return &expr.DoExpr{
		Loc:         loc,
		SideEffects: sideEffects,
		Result:      a.analyseValue(forms[len(forms)-1]),
	}
}

func (a *analyser) analyseIf(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) != 4 {
		return a.errorExpr(f.Loc, IF_REQUIRES_3_ARGS)
	}
	return &expr.IfExpr{
		Loc:  f.Loc,
		Pred: a.analyseValue(f.Elements[1]),
		Then: a.analyseValue(f.Elements[2]),
		Else: a.analyseValue(f.Elements[3]),
	}
}

func (a *analyser) analyseLet(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) < 2 {
		return a.errorExpr(f.Loc, LET_REQUIRES_VECTOR)
	}
	bindings, ok := f.Elements[1].(*form.VectorForm)
	if !ok {
		return a.errorExpr(f.Loc, LET_REQUIRES_VECTOR)
	}
	if len(bindings.Elements)%2 != 0 {
		return a.errorExpr(f.Loc, ODD_LET_BINDINGS)
	}
	if len(f.Elements) == 2 {
		return a.errorExpr(f.Loc, LET_REQUIRES_BODY)
	}
	return a.analyseBindings(f.Loc, bindings.Elements, f.Elements[2:])
}

// analyseBindings analyses the first binding in the current scope and the rest of the
// bindings and the body in a scope extended with it.
func (a *analyser) analyseBindings(loc form.Loc, bindings []form.Form, body []form.Form) expr.ValueExpr {
	if len(bindings) == 0 {
		return a.analyseBody(loc, body)
	}

	name, ok := bindings[0].(*form.SymbolForm)
	if !ok {
		return a.errorExpr(bindings[0].Location(), BINDING_NAME_MUST_BE_SYMB)
	}

	binding := a.analyseValue(bindings[1])
	inner, local := a.withLocal(name.Sym)

	return &expr.LetExpr{
		Loc:     loc,
		Var:     local,
		Binding: binding,
		Body:    inner.analyseBindings(loc, bindings[2:], body),
	}
}

// parseSignature parses (name param...).
func (a *analyser) parseSignature(sig *form.ListForm) (name symbol.Symbol, params []symbol.Symbol, errExpr *expr.ErrorExpr) {
	if len(sig.Elements) == 0 {
		return symbol.Symbol{}, nil, a.errorExpr(sig.Loc, FN_SIGNATURE_MUST_START_NAME)
	}
	nameForm, ok := sig.Elements[0].(*form.SymbolForm)
	if !ok {
		return symbol.Symbol{}, nil, a.errorExpr(sig.Loc, FN_SIGNATURE_MUST_START_NAME)
	}

	for _, el := range sig.Elements[1:] {
		param, ok := el.(*form.SymbolForm)
		if !ok {
			return symbol.Symbol{}, nil, a.errorExpr(el.Location(), FN_PARAM_MUST_BE_SYMBOL)
		}
		params = append(params, param.Sym)
	}
	return nameForm.Sym, params, nil
}

// analyseFnParts analyses a signature and a body in a fresh analyser: parameters occupy
// the first slots of a new frame and the locals of the enclosing scope are not visible.
func (a *analyser) analyseFnParts(loc form.Loc, sig *form.ListForm, body []form.Form) (*expr.FnExpr, *expr.ErrorExpr) {
	name, paramNames, errExpr := a.parseSignature(sig)
	if errExpr != nil {
		return nil, errExpr
	}
	if len(body) == 0 {
		return nil, a.errorExpr(loc, FN_REQUIRES_BODY)
	}

	fnAnalyser := a.fnAnalyser()
	params := make([]*expr.LocalVar, len(paramNames))
	for i, paramName := range paramNames {
		fnAnalyser, params[i] = fnAnalyser.withLocal(paramName)
	}

	bodyExpr := fnAnalyser.analyseBody(loc, body)

	return &expr.FnExpr{
		Loc:       loc,
		Name:      name,
		Params:    params,
		Body:      bodyExpr,
		SlotCount: fnAnalyser.frame.nextSlot,
	}, nil
}

func (a *analyser) analyseFn(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) < 2 {
		return a.errorExpr(f.Loc, FN_REQUIRES_SIGNATURE)
	}
	sig, ok := f.Elements[1].(*form.ListForm)
	if !ok {
		return a.errorExpr(f.Loc, FN_REQUIRES_SIGNATURE)
	}

	fn, errExpr := a.analyseFnParts(f.Loc, sig, f.Elements[2:])
	if errExpr != nil {
		return errExpr
	}
	return fn
}

// analyseWithFx analyses (with-fx [(def (effect! params...) body...) ...] body...).
func (a *analyser) analyseWithFx(f *form.ListForm) expr.ValueExpr {
	if len(f.Elements) < 2 {
		return a.errorExpr(f.Loc, WITH_FX_REQUIRES_VECTOR)
	}
	handlerForms, ok := f.Elements[1].(*form.VectorForm)
	if !ok {
		return a.errorExpr(f.Loc, WITH_FX_REQUIRES_VECTOR)
	}

	var handlers []expr.FxHandler

	for _, handlerForm := range handlerForms.Elements {
		handler, ok := handlerForm.(*form.ListForm)
		if head, _ := form.Head(handlerForm); !ok || head != "def" || len(handler.Elements) < 2 {
			a.errorExpr(handlerForm.Location(), WITH_FX_HANDLER_MUST_DEF)
			continue
		}
		sig, ok := handler.Elements[1].(*form.ListForm)
		if !ok || len(sig.Elements) == 0 {
			a.errorExpr(handler.Loc, WITH_FX_HANDLER_MUST_DEF)
			continue
		}

		effect := a.resolveEffect(sig.Elements[0])
		if effect == nil {
			continue
		}

		fn, errExpr := a.analyseFnParts(handler.Loc, sig, handler.Elements[2:])
		if errExpr != nil {
			continue
		}
		handlers = append(handlers, expr.FxHandler{Effect: effect, Fn: fn})
	}

	return &expr.WithFxExpr{
		Loc:      f.Loc,
		Handlers: handlers,
		Body:     a.analyseBody(f.Loc, f.Elements[2:]),
	}
}

func (a *analyser) resolveEffect(nameForm form.Form) *expr.EffectVar {
	var global expr.GlobalVar

	switch nameForm := nameForm.(type) {
	case *form.SymbolForm:
		global = a.state.resolver.ResolveVar(nameForm.Sym)
	case *form.QSymbolForm:
		global, _ = a.state.resolver.ResolveQualifiedVar(nameForm.Sym)
	default:
		a.errorExpr(nameForm.Location(), WITH_FX_HANDLER_MUST_DEF)
		return nil
	}

	effect, ok := global.(*expr.EffectVar)
	if !ok {
		a.errorExpr(nameForm.Location(), fmtNotAnEffect(nameForm.String()))
		return nil
	}
	return effect
}
