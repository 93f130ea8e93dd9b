package eval

import (
	"context"
	"fmt"

	"github.com/bridjelang/bridje/internal/analyser"
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
)

// ExpandMacro calls the expansion function of m with unanalysed forms. Each expansion has its
// own gensym scope: x# is the same name within one expansion and a distinct one across
// expansions.
func (ev *Evaluator) ExpandMacro(ctx context.Context, m *expr.MacroVar, args []form.Form) (form.Form, error) {
	fn, ok := m.Fn.(Callable)
	if !ok {
		return nil, fmt.Errorf("%w: macro %s has no expansion function", ErrNotCallable, m.Sym)
	}

	argValues := make([]Value, len(args))
	for i, arg := range args {
		argValues[i] = arg
	}

	result, err := callValue(ev.newState(ctx), fn, argValues)
	if err != nil {
		return nil, err
	}

	expanded, ok := result.(form.Form)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %s", ErrMacroResult, m.Sym, PrStr(result))
	}
	return expanded, nil
}

// Expander returns the macro expander handed to the analyser.
func (ev *Evaluator) Expander(ctx context.Context) analyser.MacroExpander {
	return macroExpander{ctx: ctx, ev: ev}
}

type macroExpander struct {
	ctx context.Context
	ev  *Evaluator
}

func (e macroExpander) ExpandMacro(m *expr.MacroVar, args []form.Form) (form.Form, error) {
	return e.ev.ExpandMacro(e.ctx, m, args)
}
