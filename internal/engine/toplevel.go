package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridjelang/bridje/internal/analyser"
	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/typecheck"
	"github.com/bridjelang/bridje/internal/types"
)

// evalTopLevel analyses, checks and evaluates a top-level form in ns. Definitions are added to
// the returned namespace, the value of a value expression is returned.
func (e *Engine) evalTopLevel(ctx context.Context, env *nsenv.GlobalEnv, ns *nsenv.NsEnv, f form.Form) (*nsenv.NsEnv, eval.Value, error) {
	resolver := nsenv.NewResolver(ns, e.core)

	analysed, err := analyser.Analyse(f, resolver, e.ev.Expander(ctx))
	if err != nil {
		return nil, nil, err
	}

	qualify := func(name symbol.Symbol) symbol.QSymbol {
		return symbol.QSymbol{NS: ns.Symbol(), Local: name}
	}

	switch analysed := analysed.(type) {
	case *expr.TopLevelDo:
		var value eval.Value
		for _, child := range analysed.Forms {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			ns, value, err = e.evalTopLevel(ctx, env, ns, child)
			if err != nil {
				return nil, nil, err
			}
		}
		return ns, value, nil
	case *expr.DefExpr:
		return e.evalDef(ctx, ns, analysed)
	case *expr.DefTagExpr:
		tag := &expr.TagVar{Sym: qualify(analysed.Name), Loc: analysed.Loc, Fields: analysed.Fields}
		if tag.IsNullary() {
			tag.Value = &eval.TagValue{Tag: tag.Sym}
		} else {
			tag.Value = &eval.TagConstructor{Tag: tag.Sym, Fields: tag.Fields}
		}
		return ns.WithVar(tag), nil, nil
	case *expr.DefKeyExpr:
		key := &expr.RecordKey{Sym: qualify(analysed.Name), Loc: analysed.Loc, Type: analysed.Type}
		return ns.WithKey(key), nil, nil
	case *expr.DefxExpr:
		return ns.WithVar(expr.NewEffectVar(qualify(analysed.Name), analysed.Loc, analysed.Type)), nil, nil
	case *expr.DefMacroExpr:
		result, err := typecheck.CheckMacro(analysed.Fn)
		if err != nil {
			return nil, nil, err
		}
		macro := &expr.MacroVar{
			Sym:  qualify(analysed.Name),
			Loc:  analysed.Loc,
			Type: result.Type(),
			Fn:   e.ev.MakeFn(analysed.Fn),
		}
		return ns.WithVar(macro), nil, nil
	case expr.ValueExpr:
		result, err := typecheck.Check(analysed, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := e.checkEffectsHandled(env, ns, analysed.Location(), result.Effects); err != nil {
			return nil, nil, err
		}

		value, err := e.ev.Eval(ctx, analysed)
		if err != nil {
			return nil, nil, err
		}
		return ns, value, nil
	}

	return nil, nil, fmt.Errorf("unsupported top-level expression %T", analysed)
}

func (e *Engine) evalDef(ctx context.Context, ns *nsenv.NsEnv, def *expr.DefExpr) (*nsenv.NsEnv, eval.Value, error) {
	result, err := typecheck.CheckDef(def)
	if err != nil {
		return nil, nil, err
	}

	value, err := e.ev.Eval(ctx, def.Value)
	if err != nil {
		return nil, nil, err
	}

	if def.Effect != nil {
		def.Effect.SetDefault(value)
		return ns, value, nil
	}

	def.Var.Type = types.Type{Mono: result.Result, Effects: result.Effects}
	def.Var.Value = value
	return ns.WithVar(def.Var), value, nil
}

// checkEffectsHandled verifies that every effect required by a top-level expression has a
// default implementation, no handler can be in scope at top level.
func (e *Engine) checkEffectsHandled(env *nsenv.GlobalEnv, ns *nsenv.NsEnv, loc form.Loc, effects types.Effects) error {
	for _, effect := range effects.Sorted() {
		var owner *nsenv.NsEnv
		switch effect.NS.Name() {
		case ns.Name():
			owner = ns
		case e.core.Name():
			owner = e.core
		default:
			owner, _ = env.Namespace(effect.NS.Name())
		}

		if owner != nil {
			if v, ok := owner.Var(effect.Local.Name()); ok {
				if effectVar, ok := v.(*expr.EffectVar); ok {
					if _, hasDefault := effectVar.Default(); hasDefault {
						continue
					}
				}
			}
		}

		return &eval.RuntimeError{
			Message: fmt.Sprintf("%s: %s has no default implementation and no handler", eval.ErrUnhandledEffect, effect),
			Loc:     loc,
			Cause:   eval.ErrUnhandledEffect,
		}
	}
	return nil
}

// EvalForm evaluates a single form in the namespace nsName and returns its value together with
// the namespace it was evaluated in. The default namespace is created if it does not exist, an
// (ns ...) form defines (or redefines) a namespace with an empty body and switches to it.
// Definitions are appended to the source of the namespace so that a replay reproduces them.
func (e *Engine) EvalForm(ctx context.Context, nsName string, f form.Form) (eval.Value, string, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	env := e.Snapshot()

	if nsenv.IsHeader(f) {
		env, ns, err := e.evalNamespaceSource(ctx, env, "", []form.Form{f})
		if err != nil {
			return nil, nsName, err
		}
		e.publish(e.redefine(env, ns))
		return nil, ns.Name(), nil
	}

	if nsName == "" {
		nsName = DEFAULT_NS
	}

	ns, ok := env.Namespace(nsName)
	if !ok {
		var err error
		env, err = e.ensureREPLNamespace(ctx, env, nsName)
		if err != nil {
			return nil, nsName, err
		}
		ns, _ = env.Namespace(nsName)
	}

	updated, value, err := e.evalTopLevel(ctx, env, ns, f)
	if err != nil {
		return nil, nsName, err
	}

	if updated != ns || isDefinition(f) {
		updated = updated.WithSourceForm(f)
		e.publish(e.redefine(env, updated))
	}

	return value, nsName, nil
}

// ensureREPLNamespace makes nsName live: it is required if a source exists (quarantined or
// through the loader), otherwise the default namespace is created empty.
func (e *Engine) ensureREPLNamespace(ctx context.Context, env *nsenv.GlobalEnv, nsName string) (*nsenv.GlobalEnv, error) {
	updated, err := e.ensureLive(ctx, env, []string{nsName})
	if err == nil || nsName != DEFAULT_NS || !errors.Is(err, loader.ErrNamespaceNotFound) {
		return updated, err
	}

	header := &form.ListForm{Elements: []form.Form{
		&form.SymbolForm{Sym: symbol.Intern("ns")},
		&form.SymbolForm{Sym: symbol.Intern(DEFAULT_NS)},
	}}
	return env.WithNamespace(nsenv.NewNsEnv(DEFAULT_NS).WithSourceForms([]form.Form{header})), nil
}

func isDefinition(f form.Form) bool {
	head, _ := form.Head(f)
	switch head {
	case "def", "deftag", "defkey", "defx", "defmacro":
		return true
	}
	return false
}
