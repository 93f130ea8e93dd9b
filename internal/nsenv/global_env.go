package nsenv

import (
	"slices"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/oklog/ulid/v2"
	"github.com/tidwall/btree"
)

// A GlobalEnv is an immutable snapshot of all namespaces: the live ones, the quarantined ones
// (invalidated but kept with their source forms for replay) and the reverse dependencies
// (reverseDeps[d] contains n iff the live namespace n directly requires d).
//
// WithNamespace and InvalidateNamespace return a new consistent snapshot and never modify
// the receiver.
type GlobalEnv struct {
	version     ulid.ULID
	namespaces  *btree.Map[string, *NsEnv]
	quarantined *btree.Map[string, []form.Form]
	reverseDeps *btree.Map[string, *btree.Set[string]]
}

func NewGlobalEnv() *GlobalEnv {
	return &GlobalEnv{
		version:     ulid.Make(),
		namespaces:  btree.NewMap[string, *NsEnv](0),
		quarantined: btree.NewMap[string, []form.Form](0),
		reverseDeps: btree.NewMap[string, *btree.Set[string]](0),
	}
}

func (env *GlobalEnv) next() *GlobalEnv {
	return &GlobalEnv{
		version:     ulid.Make(),
		namespaces:  env.namespaces.Copy(),
		quarantined: env.quarantined.Copy(),
		reverseDeps: env.reverseDeps.Copy(),
	}
}

// Version uniquely identifies the snapshot, versions of successive snapshots are increasing.
func (env *GlobalEnv) Version() ulid.ULID {
	return env.version
}

func (env *GlobalEnv) Namespace(name string) (*NsEnv, bool) {
	return env.namespaces.Get(name)
}

func (env *GlobalEnv) IsLive(name string) bool {
	_, ok := env.namespaces.Get(name)
	return ok
}

// NamespaceNames returns the names of the live namespaces, sorted.
func (env *GlobalEnv) NamespaceNames() []string {
	return env.namespaces.Keys()
}

func (env *GlobalEnv) Quarantined(name string) ([]form.Form, bool) {
	return env.quarantined.Get(name)
}

func (env *GlobalEnv) QuarantinedNames() []string {
	return env.quarantined.Keys()
}

// Dependents returns the live namespaces that directly require name, sorted.
func (env *GlobalEnv) Dependents(name string) []string {
	dependents, ok := env.reverseDeps.Get(name)
	if !ok {
		return nil
	}
	return dependents.Keys()
}

// WithNamespace adds or replaces the namespace ns. The reverse dependencies are updated with the
// difference between the previous and the new direct dependencies, and the quarantine entry of
// the namespace is removed.
func (env *GlobalEnv) WithNamespace(ns *NsEnv) *GlobalEnv {
	newEnv := env.next()

	var oldDeps []string
	if old, ok := env.namespaces.Get(ns.name); ok {
		oldDeps = old.deps
	}
	newDeps := ns.deps

	for _, dep := range oldDeps {
		if !slices.Contains(newDeps, dep) {
			newEnv.removeReverseDep(dep, ns.name)
		}
	}
	for _, dep := range newDeps {
		if !slices.Contains(oldDeps, dep) {
			newEnv.addReverseDep(dep, ns.name)
		}
	}

	newEnv.namespaces.Set(ns.name, ns)
	newEnv.quarantined.Delete(ns.name)
	return newEnv
}

// InvalidateNamespace removes the namespace name from the live set, it is quarantined if it has
// source forms. Every namespace depending on it is invalidated too, transitively. The names of
// the invalidated namespaces are returned in invalidation order. Invalidating an unknown
// namespace is a no-op.
func (env *GlobalEnv) InvalidateNamespace(name string) (*GlobalEnv, []string) {
	if !env.IsLive(name) {
		return env, nil
	}

	newEnv := env.next()
	var invalidated []string
	newEnv.invalidate(name, &invalidated)
	return newEnv, invalidated
}

//invalidate mutates env, env must not be published yet.
func (env *GlobalEnv) invalidate(name string, invalidated *[]string) {
	ns, ok := env.namespaces.Get(name)
	if !ok {
		return
	}

	env.namespaces.Delete(name)
	*invalidated = append(*invalidated, name)

	if len(ns.sourceForms) > 0 {
		env.quarantined.Set(name, ns.sourceForms)
	}

	for _, dep := range ns.deps {
		env.removeReverseDep(dep, name)
	}

	//the dependents remove themselves from reverseDeps[name] as they are invalidated.
	for _, dependent := range env.Dependents(name) {
		env.invalidate(dependent, invalidated)
	}
}

func (env *GlobalEnv) addReverseDep(dep, dependent string) {
	var set *btree.Set[string]
	if existing, ok := env.reverseDeps.Get(dep); ok {
		set = existing.Copy()
	} else {
		set = &btree.Set[string]{}
	}
	set.Insert(dependent)
	env.reverseDeps.Set(dep, set)
}

func (env *GlobalEnv) removeReverseDep(dep, dependent string) {
	existing, ok := env.reverseDeps.Get(dep)
	if !ok || !existing.Contains(dependent) {
		return
	}
	if existing.Len() == 1 {
		env.reverseDeps.Delete(dep)
		return
	}
	set := existing.Copy()
	set.Delete(dependent)
	env.reverseDeps.Set(dep, set)
}
