package types

import (
	"cmp"
	"slices"
	"strings"

	"github.com/bridjelang/bridje/internal/symbol"
	"golang.org/x/exp/maps"
)

// Effects is an immutable set of effect capabilities, identified by the qualified
// name of the effect declaration.
type Effects struct {
	set map[symbol.QSymbol]struct{}
}

func NewEffects(effects ...symbol.QSymbol) Effects {
	if len(effects) == 0 {
		return Effects{}
	}
	set := make(map[symbol.QSymbol]struct{}, len(effects))
	for _, e := range effects {
		set[e] = struct{}{}
	}
	return Effects{set: set}
}

func (e Effects) Len() int {
	return len(e.set)
}

func (e Effects) IsEmpty() bool {
	return len(e.set) == 0
}

func (e Effects) Has(effect symbol.QSymbol) bool {
	_, ok := e.set[effect]
	return ok
}

func (e Effects) Union(others ...Effects) Effects {
	total := e.Len()
	for _, o := range others {
		total += o.Len()
	}
	if total == e.Len() {
		return e
	}

	set := make(map[symbol.QSymbol]struct{}, total)
	maps.Copy(set, e.set)
	for _, o := range others {
		maps.Copy(set, o.set)
	}
	return Effects{set: set}
}

func (e Effects) Minus(removed ...symbol.QSymbol) Effects {
	if e.IsEmpty() || len(removed) == 0 {
		return e
	}
	set := maps.Clone(e.set)
	for _, r := range removed {
		delete(set, r)
	}
	return Effects{set: set}
}

func (e Effects) Sorted() []symbol.QSymbol {
	list := maps.Keys(e.set)
	slices.SortFunc(list, func(a, b symbol.QSymbol) int {
		return cmp.Compare(a.String(), b.String())
	})
	return list
}

func (e Effects) String() string {
	names := make([]string, 0, e.Len())
	for _, effect := range e.Sorted() {
		names = append(names, effect.String())
	}
	return "#{" + strings.Join(names, " ") + "}"
}

// Type is the type of a global: a monotype plus the effects required when it is used.
type Type struct {
	Mono    MonoType
	Effects Effects
}

func (t Type) IsZero() bool {
	return t.Mono == nil
}

func (t Type) String() string {
	if t.Mono == nil {
		return "<unknown>"
	}
	if t.Effects.IsEmpty() {
		return Pretty(t.Mono)
	}
	return Pretty(t.Mono) + " ! " + t.Effects.String()
}
