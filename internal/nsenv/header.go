package nsenv

import (
	"errors"
	"fmt"

	"github.com/bridjelang/bridje/internal/form"
)

var (
	ErrInvalidNsHeader = errors.New("invalid namespace header")
	ErrUnknownAlias    = errors.New("unknown namespace or alias")
)

// A Header is the parsed (ns name (require ...)) form that starts a namespace source.
type Header struct {
	Name     string
	Requires []Require
	Loc      form.Loc
}

// A Require is one entry of the require clause, Alias is empty when the namespace is required
// without :as.
type Require struct {
	Ns    string
	Alias string
	Loc   form.Loc
}

func (h *Header) DepNames() []string {
	names := make([]string, len(h.Requires))
	for i, req := range h.Requires {
		names[i] = req.Ns
	}
	return names
}

// IsHeader reports whether f is a list starting with the ns symbol.
func IsHeader(f form.Form) bool {
	head, ok := form.Head(f)
	return ok && head == "ns"
}

// ParseHeader parses (ns app.top (require app.base [app.middle :as m])).
func ParseHeader(f form.Form) (*Header, error) {
	invalid := func(loc form.Loc, msg string) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidNsHeader, loc, msg)
	}

	list, ok := f.(*form.ListForm)
	if !ok || !IsHeader(f) {
		return nil, invalid(f.Location(), "a namespace source should start with (ns name ...)")
	}

	if len(list.Elements) < 2 {
		return nil, invalid(list.Loc, "missing namespace name")
	}

	name, ok := form.SymbolName(list.Elements[1])
	if !ok {
		return nil, invalid(list.Elements[1].Location(), "the namespace name should be a symbol")
	}

	header := &Header{Name: name, Loc: list.Loc}
	seen := map[string]bool{}

	for _, clause := range list.Elements[2:] {
		clauseList, ok := clause.(*form.ListForm)
		if head, _ := form.Head(clause); !ok || head != "require" {
			return nil, invalid(clause.Location(), "only (require ...) clauses are supported")
		}

		for _, reqForm := range clauseList.Elements[1:] {
			req, err := parseRequire(reqForm)
			if err != nil {
				return nil, invalid(reqForm.Location(), err.Error())
			}
			if req.Ns == name {
				return nil, invalid(reqForm.Location(), "a namespace cannot require itself")
			}
			if seen[req.Ns] {
				return nil, invalid(reqForm.Location(), "namespace "+req.Ns+" is required twice")
			}
			seen[req.Ns] = true
			header.Requires = append(header.Requires, req)
		}
	}

	return header, nil
}

func parseRequire(f form.Form) (Require, error) {
	if name, ok := form.SymbolName(f); ok {
		return Require{Ns: name, Loc: f.Location()}, nil
	}

	vector, ok := f.(*form.VectorForm)
	if !ok {
		return Require{}, errors.New("a require should be a namespace name or [name :as alias]")
	}

	if len(vector.Elements) != 3 {
		return Require{}, errors.New("expected [name :as alias]")
	}

	name, ok := form.SymbolName(vector.Elements[0])
	if !ok {
		return Require{}, errors.New("the required namespace should be a symbol")
	}

	if kw, ok := vector.Elements[1].(*form.KeywordForm); !ok || !kw.NS.IsZero() || kw.Name.Name() != "as" {
		return Require{}, errors.New("expected :as after the namespace name")
	}

	alias, ok := form.SymbolName(vector.Elements[2])
	if !ok {
		return Require{}, errors.New("the alias should be a symbol")
	}

	return Require{Ns: name, Alias: alias, Loc: f.Location()}, nil
}
