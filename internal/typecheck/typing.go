package typecheck

import (
	"strings"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/types"
)

// Typing is the type of an expression, the types it assumes for the locals it
// references but does not bind, and the effects it requires.
type Typing struct {
	Result     types.MonoType
	FreeLocals map[*expr.LocalVar]types.MonoType
	Effects    types.Effects
}

func (t *Typing) Type() types.Type {
	return types.Type{Mono: t.Result, Effects: t.Effects}
}

func (t *Typing) String() string {
	var b strings.Builder
	b.WriteString(types.Pretty(t.Result))
	if !t.Effects.IsEmpty() {
		b.WriteString(" ! ")
		b.WriteString(t.Effects.String())
	}
	return b.String()
}

// Result is the outcome of checking a tree: the Typing of the root and the type of every
// value node (side table keyed by node identity).
type Result struct {
	Typing
	NodeTypes map[expr.ValueExpr]types.MonoType
}

func (r *Result) TypeOf(e expr.ValueExpr) (types.MonoType, bool) {
	t, ok := r.NodeTypes[e]
	return t, ok
}
