package nsenv

import (
	"fmt"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/symbol"
)

// A Resolver is the view of the globals visible from one namespace: its own vars, the vars of
// the core namespace (unqualified), and the vars of the required namespaces (qualified by
// namespace name or alias).
type Resolver struct {
	ns   *NsEnv
	core *NsEnv
}

func NewResolver(ns *NsEnv, core *NsEnv) *Resolver {
	return &Resolver{ns: ns, core: core}
}

func (r *Resolver) NsName() string {
	return r.ns.name
}

func (r *Resolver) ResolveVar(name symbol.Symbol) expr.GlobalVar {
	if v, ok := r.ns.Var(name.Name()); ok {
		return v
	}
	if r.core != nil {
		if v, ok := r.core.Var(name.Name()); ok {
			return v
		}
	}
	return nil
}

func (r *Resolver) ResolveQualifiedVar(q symbol.QSymbol) (expr.GlobalVar, bool) {
	ns, ok := r.namespace(q.NS.Name())
	if !ok {
		return nil, false
	}
	v, _ := ns.Var(q.Local.Name())
	return v, true
}

func (r *Resolver) ResolveKey(qualifier, name symbol.Symbol) *expr.RecordKey {
	if qualifier.IsZero() {
		if key, ok := r.ns.Key(name.Name()); ok {
			return key
		}
		if r.core != nil {
			if key, ok := r.core.Key(name.Name()); ok {
				return key
			}
		}
		return nil
	}

	ns, ok := r.namespace(qualifier.Name())
	if !ok {
		return nil
	}
	key, _ := ns.Key(name.Name())
	return key
}

//namespace resolves a namespace name or alias.
func (r *Resolver) namespace(nameOrAlias string) (*NsEnv, bool) {
	switch {
	case nameOrAlias == r.ns.name:
		return r.ns, true
	case r.core != nil && nameOrAlias == r.core.name:
		return r.core, true
	}
	return r.ns.Required(nameOrAlias)
}

// NsEnvFromHeader creates an empty namespace whose requires are the live namespaces of env
// named by the header.
func NsEnvFromHeader(env *GlobalEnv, header *Header) (*NsEnv, error) {
	ns := NewNsEnv(header.Name)
	for _, req := range header.Requires {
		required, ok := env.Namespace(req.Ns)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %s", ErrUnknownAlias, req.Loc, req.Ns)
		}
		ns = ns.WithRequire(req.Alias, required)
	}
	return ns, nil
}
