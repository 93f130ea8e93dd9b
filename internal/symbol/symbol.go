package symbol

import (
	"strconv"
	"strings"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	GENSYM_MARKER    = '#'
	GENSYM_SEPARATOR = "__"
	DEFAULT_GENSYM   = "G"
)

var (
	table = cmap.New[Symbol]()
)

// A Symbol is an interned identifier, two symbols with the same name are always equal (==).
// The zero value is the absence of a symbol.
type Symbol struct {
	name *string
}

// Intern returns the unique symbol for name.
func Intern(name string) Symbol {
	return table.Upsert(name, Symbol{}, func(exist bool, valueInMap Symbol, _ Symbol) Symbol {
		if exist {
			return valueInMap
		}
		s := name
		return Symbol{name: &s}
	})
}

func (s Symbol) Name() string {
	if s.name == nil {
		return ""
	}
	return *s.name
}

func (s Symbol) String() string {
	return s.Name()
}

func (s Symbol) IsZero() bool {
	return s.name == nil
}

// IsGensymTemplate reports whether the symbol ends with the gensym marker (e.g. x#).
func (s Symbol) IsGensymTemplate() bool {
	name := s.Name()
	return len(name) > 1 && name[len(name)-1] == GENSYM_MARKER
}

// GensymBase returns the name without the trailing gensym marker.
func (s Symbol) GensymBase() string {
	return strings.TrimSuffix(s.Name(), string(GENSYM_MARKER))
}

// QSymbol is a namespace-qualified identifier.
type QSymbol struct {
	NS    Symbol
	Local Symbol
}

func Q(ns, local string) QSymbol {
	return QSymbol{NS: Intern(ns), Local: Intern(local)}
}

func (q QSymbol) String() string {
	if q.NS.IsZero() {
		return q.Local.Name()
	}
	return q.NS.Name() + "/" + q.Local.Name()
}

func (q QSymbol) IsZero() bool {
	return q.NS.IsZero() && q.Local.IsZero()
}

// A GensymCounter allocates the numeric suffixes of generated symbols.
type GensymCounter struct {
	next atomic.Uint64
}

func (c *GensymCounter) Next() uint64 {
	return c.next.Add(1)
}

// Gensym returns a fresh symbol named <base>__<n>.
func (c *GensymCounter) Gensym(base string) Symbol {
	if base == "" {
		base = DEFAULT_GENSYM
	}
	return Intern(base + GENSYM_SEPARATOR + strconv.FormatUint(c.Next(), 10))
}
