package types

import (
	"errors"
	"fmt"

	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/symbol"
)

var (
	ErrTypeMismatch = errors.New("type mismatch")
)

// A Constraint requires Left and Right to be the same type, Loc is the location of the
// expression that introduced it.
type Constraint struct {
	Left, Right MonoType
	Loc         form.Loc
}

func (c Constraint) String() string {
	return c.Left.String() + " ≡ " + c.Right.String()
}

// Subst maps type variable ids to types.
type Subst map[uint64]MonoType

// Apply replaces each bound variable of t by its binding. Bindings are not
// substituted again: the unifier keeps the map idempotent by substituting forward.
func (s Subst) Apply(t MonoType) MonoType {
	if len(s) == 0 {
		return t
	}
	return Map(t, func(v TypeVar) MonoType {
		if bound, ok := s[v.ID]; ok {
			return bound
		}
		return v
	})
}

type UnificationError struct {
	Left, Right MonoType
	Loc         form.Loc
}

func (e *UnificationError) Error() string {
	return located(e.Loc, e.MessageWithoutLocation())
}

func (e *UnificationError) MessageWithoutLocation() string {
	return fmt.Sprintf("cannot unify %s and %s", e.Left, e.Right)
}

func (e *UnificationError) Location() form.Loc {
	return e.Loc
}

func (e *UnificationError) Unwrap() error {
	return ErrTypeMismatch
}

type ArityError struct {
	Expected, Actual int
	Loc              form.Loc
}

func (e *ArityError) Error() string {
	return located(e.Loc, e.MessageWithoutLocation())
}

func (e *ArityError) MessageWithoutLocation() string {
	return fmt.Sprintf("arity mismatch: expected %d parameter(s), got %d", e.Expected, e.Actual)
}

func (e *ArityError) Location() form.Loc {
	return e.Loc
}

func (e *ArityError) Unwrap() error {
	return ErrTypeMismatch
}

type MissingFieldError struct {
	Field  symbol.QSymbol
	Record MonoType
	Loc    form.Loc
}

func (e *MissingFieldError) Error() string {
	return located(e.Loc, e.MessageWithoutLocation())
}

func (e *MissingFieldError) MessageWithoutLocation() string {
	return fmt.Sprintf("missing record field :%s in %s", e.Field, e.Record)
}

func (e *MissingFieldError) Location() form.Loc {
	return e.Loc
}

func (e *MissingFieldError) Unwrap() error {
	return ErrTypeMismatch
}

// Unify solves the constraints with a work queue. A type variable on either side is bound
// and the binding is substituted into the remaining queue and into the substitution built
// so far, no occurs check is performed. Composite types decompose into constraints over their
// components, for records only the fields of the left side are looked up in the right side.
func Unify(constraints []Constraint) (Subst, error) {
	queue := make([]Constraint, len(constraints))
	copy(queue, constraints)

	subst := Subst{}

	bind := func(v TypeVar, t MonoType) {
		if other, ok := t.(TypeVar); ok && other.ID == v.ID {
			return
		}
		single := Subst{v.ID: t}
		for i, c := range queue {
			queue[i] = Constraint{Left: single.Apply(c.Left), Right: single.Apply(c.Right), Loc: c.Loc}
		}
		for id, bound := range subst {
			subst[id] = single.Apply(bound)
		}
		subst[v.ID] = t
	}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if v, ok := c.Left.(TypeVar); ok {
			bind(v, c.Right)
			continue
		}
		if v, ok := c.Right.(TypeVar); ok {
			bind(v, c.Left)
			continue
		}

		var components []Constraint

		switch left := c.Left.(type) {
		case *PrimitiveType:
			if right, ok := c.Right.(*PrimitiveType); ok && right.Name == left.Name {
				continue
			}
		case *VectorType:
			if right, ok := c.Right.(*VectorType); ok {
				components = []Constraint{{Left: left.Elem, Right: right.Elem, Loc: c.Loc}}
			}
		case *SetType:
			if right, ok := c.Right.(*SetType); ok {
				components = []Constraint{{Left: left.Elem, Right: right.Elem, Loc: c.Loc}}
			}
		case *FnType:
			if right, ok := c.Right.(*FnType); ok {
				if len(left.Params) != len(right.Params) {
					return nil, &ArityError{Expected: len(left.Params), Actual: len(right.Params), Loc: c.Loc}
				}
				for i := range left.Params {
					components = append(components, Constraint{Left: left.Params[i], Right: right.Params[i], Loc: c.Loc})
				}
				components = append(components, Constraint{Left: left.Result, Right: right.Result, Loc: c.Loc})
			}
		case *RecordType:
			if right, ok := c.Right.(*RecordType); ok {
				components = []Constraint{}
				for _, key := range left.SortedKeys() {
					rightField, ok := right.Fields[key]
					if !ok {
						return nil, &MissingFieldError{Field: key, Record: right, Loc: c.Loc}
					}
					components = append(components, Constraint{Left: left.Fields[key], Right: rightField, Loc: c.Loc})
				}
			}
		}

		if components == nil {
			return nil, &UnificationError{Left: c.Left, Right: c.Right, Loc: c.Loc}
		}

		queue = append(components, queue...)
	}

	return subst, nil
}

func located(loc form.Loc, msg string) string {
	if loc.IsZero() {
		return msg
	}
	return loc.String() + " " + msg
}
