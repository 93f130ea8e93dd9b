package eval

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/shopspring/decimal"
	"src.elv.sh/pkg/persistent/vector"
)

const (
	CORE_NS = nsenv.CORE_NS
)

// NewCoreNs creates the brj.core namespace: arithmetic, comparison, vectors, strings, the form
// constructors used by quote and the println! effect whose default implementation writes to out.
func NewCoreNs(out io.Writer) *nsenv.NsEnv {
	ns := nsenv.NewNsEnv(CORE_NS)

	def := func(name string, t types.MonoType, arity int, impl func(args []Value) (Value, error)) {
		ns = ns.WithVar(&expr.DefVar{
			Sym:   symbol.Q(CORE_NS, name),
			Type:  types.Type{Mono: t},
			Value: NewBuiltin(name, arity, impl),
		})
	}

	//arithmetic

	intOp := func(name string, op func(a, b int64) (int64, error)) {
		def(name, types.NewFnType(types.INT, types.INT, types.INT), 2, func(args []Value) (Value, error) {
			a, b, err := intArgs(name, args)
			if err != nil {
				return nil, err
			}
			result, err := op(a, b)
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	}

	intOp("add", func(a, b int64) (int64, error) { return a + b, nil })
	intOp("sub", func(a, b int64) (int64, error) { return a - b, nil })
	intOp("mul", func(a, b int64) (int64, error) { return a * b, nil })
	intOp("div", func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, ErrIntDivisionByZero
		}
		return a / b, nil
	})

	//comparison

	intComparison := func(name string, op func(a, b int64) bool) {
		def(name, types.NewFnType(types.BOOL, types.INT, types.INT), 2, func(args []Value) (Value, error) {
			a, b, err := intArgs(name, args)
			if err != nil {
				return nil, err
			}
			return op(a, b), nil
		})
	}

	intComparison("lt", func(a, b int64) bool { return a < b })
	intComparison("gt", func(a, b int64) bool { return a > b })
	intComparison("lte", func(a, b int64) bool { return a <= b })
	intComparison("gte", func(a, b int64) bool { return a >= b })

	{
		arena := &types.Arena{}
		a := arena.Fresh()
		def("eq", types.NewFnType(types.BOOL, a, a), 2, func(args []Value) (Value, error) {
			return Equal(args[0], args[1]), nil
		})
		def("neq", types.NewFnType(types.BOOL, a, a), 2, func(args []Value) (Value, error) {
			return !Equal(args[0], args[1]), nil
		})
	}

	def("not", types.NewFnType(types.BOOL, types.BOOL), 1, func(args []Value) (Value, error) {
		b, ok := args[0].(bool)
		if !ok {
			return nil, unexpected("not", args[0])
		}
		return !b, nil
	})

	//strings

	{
		arena := &types.Arena{}
		a := arena.Fresh()
		def("str", types.NewFnType(types.STRING, a), 1, func(args []Value) (Value, error) {
			return Str(args[0]), nil
		})
		def("pr-str", types.NewFnType(types.STRING, a), 1, func(args []Value) (Value, error) {
			return PrStr(args[0]), nil
		})
	}

	def("concat", types.NewFnType(types.STRING, types.STRING, types.STRING), 2, func(args []Value) (Value, error) {
		a, ok1 := args[0].(string)
		b, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, unexpected("concat", args...)
		}
		return a + b, nil
	})

	//vectors

	{
		arena := &types.Arena{}
		a := arena.Fresh()
		vec := &types.VectorType{Elem: a}

		def("count", types.NewFnType(types.INT, vec), 1, func(args []Value) (Value, error) {
			v, ok := args[0].(vector.Vector)
			if !ok {
				return nil, unexpected("count", args[0])
			}
			return int64(v.Len()), nil
		})
		def("nth", types.NewFnType(a, vec, types.INT), 2, func(args []Value) (Value, error) {
			v, ok1 := args[0].(vector.Vector)
			i, ok2 := args[1].(int64)
			if !ok1 || !ok2 {
				return nil, unexpected("nth", args...)
			}
			el, ok := v.Index(int(i))
			if !ok {
				return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
			}
			return el, nil
		})
		def("conj", types.NewFnType(vec, vec, a), 2, func(args []Value) (Value, error) {
			v, ok := args[0].(vector.Vector)
			if !ok {
				return nil, unexpected("conj", args[0])
			}
			return v.Conj(args[1]), nil
		})
	}

	ns = withFormConstructors(ns)

	//effects

	{
		arena := &types.Arena{}
		a := arena.Fresh()
		printlnVar := expr.NewEffectVar(symbol.Q(CORE_NS, "println!"), form.Loc{}, types.NewFnType(a, a))
		printlnVar.SetDefault(NewBuiltin("println!", 1, func(args []Value) (Value, error) {
			_, err := fmt.Fprintln(out, Str(args[0]))
			return args[0], err
		}))
		ns = ns.WithVar(printlnVar)
	}

	return ns
}

// withFormConstructors adds the functions that build forms at runtime, they are named after
// the form kinds (Int, Symbol, List...).
func withFormConstructors(ns *nsenv.NsEnv) *nsenv.NsEnv {
	constructor := func(kind string, params []types.MonoType, impl func(args []Value) (form.Form, error)) {
		ns = ns.WithVar(&expr.DefVar{
			Sym:  symbol.Q(CORE_NS, kind),
			Type: types.Type{Mono: types.NewFnType(types.FORM, params...)},
			Value: NewBuiltin(kind, len(params), func(args []Value) (Value, error) {
				f, err := impl(args)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", kind, err)
				}
				return f, nil
			}),
		})
	}

	constructor(form.INT_KIND, []types.MonoType{types.INT}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(int64)
		if !ok {
			return nil, unexpected(form.INT_KIND, args[0])
		}
		return &form.IntForm{Value: v}, nil
	})
	constructor(form.DOUBLE_KIND, []types.MonoType{types.FLOAT}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(float64)
		if !ok {
			return nil, unexpected(form.DOUBLE_KIND, args[0])
		}
		return &form.DoubleForm{Value: v}, nil
	})
	constructor(form.BIG_INT_KIND, []types.MonoType{types.BIG_INT}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(*big.Int)
		if !ok {
			return nil, unexpected(form.BIG_INT_KIND, args[0])
		}
		return &form.BigIntForm{Value: v}, nil
	})
	constructor(form.BIG_DEC_KIND, []types.MonoType{types.BIG_DEC}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(decimal.Decimal)
		if !ok {
			return nil, unexpected(form.BIG_DEC_KIND, args[0])
		}
		return &form.BigDecForm{Value: v}, nil
	})
	constructor(form.STRING_KIND, []types.MonoType{types.STRING}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(string)
		if !ok {
			return nil, unexpected(form.STRING_KIND, args[0])
		}
		return &form.StringForm{Value: v}, nil
	})
	constructor(form.SYMBOL_KIND, []types.MonoType{types.STRING}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(string)
		if !ok {
			return nil, unexpected(form.SYMBOL_KIND, args[0])
		}
		return &form.SymbolForm{Sym: symbol.Intern(v)}, nil
	})
	constructor(form.QUALIFIED_SYM_KIND, []types.MonoType{types.STRING, types.STRING}, func(args []Value) (form.Form, error) {
		nsName, ok1 := args[0].(string)
		local, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, unexpected(form.QUALIFIED_SYM_KIND, args...)
		}
		return &form.QSymbolForm{Sym: symbol.Q(nsName, local)}, nil
	})
	constructor(form.KEYWORD_KIND, []types.MonoType{types.STRING}, func(args []Value) (form.Form, error) {
		v, ok := args[0].(string)
		if !ok {
			return nil, unexpected(form.KEYWORD_KIND, args[0])
		}
		if i := strings.LastIndexByte(v, '/'); i > 0 && i < len(v)-1 {
			return &form.KeywordForm{NS: symbol.Intern(v[:i]), Name: symbol.Intern(v[i+1:])}, nil
		}
		return &form.KeywordForm{Name: symbol.Intern(v)}, nil
	})

	forms := []types.MonoType{&types.VectorType{Elem: types.FORM}}

	constructor(form.LIST_KIND, forms, func(args []Value) (form.Form, error) {
		elements, err := formElements(args[0])
		return &form.ListForm{Elements: elements}, err
	})
	constructor(form.VECTOR_KIND, forms, func(args []Value) (form.Form, error) {
		elements, err := formElements(args[0])
		return &form.VectorForm{Elements: elements}, err
	})
	constructor(form.SET_KIND, forms, func(args []Value) (form.Form, error) {
		elements, err := formElements(args[0])
		return &form.SetForm{Elements: elements}, err
	})
	constructor(form.RECORD_KIND, forms, func(args []Value) (form.Form, error) {
		elements, err := formElements(args[0])
		return &form.RecordForm{Elements: elements}, err
	})

	return ns
}

func formElements(v Value) ([]form.Form, error) {
	vec, ok := v.(vector.Vector)
	if !ok {
		return nil, fmt.Errorf("%w: expected a vector of forms, got %s", ErrUnexpectedValue, PrStr(v))
	}

	elements := make([]form.Form, 0, vec.Len())
	for it := vec.Iterator(); it.HasElem(); it.Next() {
		f, ok := it.Elem().(form.Form)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotAForm, PrStr(it.Elem()))
		}
		elements = append(elements, f)
	}
	return elements, nil
}

func intArgs(name string, args []Value) (int64, int64, error) {
	a, ok1 := args[0].(int64)
	b, ok2 := args[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, unexpected(name, args...)
	}
	return a, b, nil
}

func unexpected(name string, args ...Value) error {
	printed := make([]string, len(args))
	for i, arg := range args {
		printed[i] = PrStr(arg)
	}
	return fmt.Errorf("%w: (%s %s)", ErrUnexpectedValue, name, strings.Join(printed, " "))
}
