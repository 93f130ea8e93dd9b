package nsenv

import (
	"slices"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/tidwall/btree"
)

const (
	CORE_NS = "brj.core"
)

// A NsEnv is an immutable snapshot of a namespace: its requires, vars, record keys
// and the source forms it was built from. The With* methods return modified copies,
// the underlying btree maps are shared copy-on-write.
type NsEnv struct {
	name        string
	requires    *btree.Map[string, *NsEnv] //alias -> namespace
	deps        []string                   //sorted direct dependencies
	vars        *btree.Map[string, expr.GlobalVar]
	keys        *btree.Map[string, *expr.RecordKey]
	sourceForms []form.Form
}

func NewNsEnv(name string) *NsEnv {
	return &NsEnv{
		name:     name,
		requires: btree.NewMap[string, *NsEnv](0),
		vars:     btree.NewMap[string, expr.GlobalVar](0),
		keys:     btree.NewMap[string, *expr.RecordKey](0),
	}
}

func (ns *NsEnv) Name() string {
	return ns.name
}

func (ns *NsEnv) clone() *NsEnv {
	return &NsEnv{
		name:        ns.name,
		requires:    ns.requires.Copy(),
		deps:        ns.deps,
		vars:        ns.vars.Copy(),
		keys:        ns.keys.Copy(),
		sourceForms: ns.sourceForms,
	}
}

// WithRequire makes required reachable through alias and through its own name.
func (ns *NsEnv) WithRequire(alias string, required *NsEnv) *NsEnv {
	updated := ns.clone()
	updated.requires.Set(required.name, required)
	if alias != "" {
		updated.requires.Set(alias, required)
	}

	if _, found := slices.BinarySearch(updated.deps, required.name); !found {
		deps := append(slices.Clone(ns.deps), required.name)
		slices.Sort(deps)
		updated.deps = deps
	}
	return updated
}

func (ns *NsEnv) WithVar(v expr.GlobalVar) *NsEnv {
	updated := ns.clone()
	updated.vars.Set(v.QSymbol().Local.Name(), v)
	return updated
}

func (ns *NsEnv) WithKey(key *expr.RecordKey) *NsEnv {
	updated := ns.clone()
	updated.keys.Set(key.Sym.Local.Name(), key)
	return updated
}

// WithSourceForms returns a copy whose source forms are replaced, the forms are replayed
// when the namespace is re-established after an invalidation.
func (ns *NsEnv) WithSourceForms(forms []form.Form) *NsEnv {
	updated := ns.clone()
	updated.sourceForms = slices.Clip(forms)
	return updated
}

func (ns *NsEnv) WithSourceForm(f form.Form) *NsEnv {
	return ns.WithSourceForms(append(slices.Clip(ns.sourceForms), f))
}

func (ns *NsEnv) Var(name string) (expr.GlobalVar, bool) {
	return ns.vars.Get(name)
}

func (ns *NsEnv) Key(name string) (*expr.RecordKey, bool) {
	return ns.keys.Get(name)
}

// Required returns the namespace required under alias (or under its own name).
func (ns *NsEnv) Required(alias string) (*NsEnv, bool) {
	return ns.requires.Get(alias)
}

// Deps returns the names of the directly required namespaces, sorted.
func (ns *NsEnv) Deps() []string {
	return slices.Clone(ns.deps)
}

func (ns *NsEnv) DependsOn(name string) bool {
	_, found := slices.BinarySearch(ns.deps, name)
	return found
}

func (ns *NsEnv) SourceForms() []form.Form {
	return ns.sourceForms
}

// VarNames returns the names of the vars in lexical order.
func (ns *NsEnv) VarNames() []string {
	return ns.vars.Keys()
}

func (ns *NsEnv) Vars() []expr.GlobalVar {
	return ns.vars.Values()
}

func (ns *NsEnv) Keys() []*expr.RecordKey {
	return ns.keys.Values()
}

func (ns *NsEnv) Symbol() symbol.Symbol {
	return symbol.Intern(ns.name)
}
