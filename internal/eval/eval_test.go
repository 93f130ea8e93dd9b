package eval

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/bridjelang/bridje/internal/analyser"
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/bridjelang/bridje/internal/symbol"
	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/bridjelang/bridje/internal/typecheck"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"src.elv.sh/pkg/persistent/vector"
)

type testEnv struct {
	ev   *Evaluator
	core *nsenv.NsEnv
	ns   *nsenv.NsEnv
	out  *bytes.Buffer
}

func newTestEnv() *testEnv {
	out := &bytes.Buffer{}
	core := NewCoreNs(out)

	ns := nsenv.NewNsEnv("user").
		WithVar(&expr.TagVar{Sym: symbol.Q("user", "Pair"), Fields: []symbol.Symbol{symbol.Intern("first"), symbol.Intern("second")}}).
		WithVar(&expr.TagVar{Sym: symbol.Q("user", "Nothing")}).
		WithKey(&expr.RecordKey{Sym: symbol.Q("user", "name"), Type: types.STRING})

	return &testEnv{ev: NewEvaluator(), core: core, ns: ns, out: out}
}

func (env *testEnv) analyse(t *testing.T, src string) expr.Expr {
	f, err := reader.ReadOne("test.brj", src)
	require.NoError(t, err)

	e, err := analyser.Analyse(f, nsenv.NewResolver(env.ns, env.core), env.ev.Expander(context.Background()))
	require.NoError(t, err)
	return e
}

func (env *testEnv) eval(t *testing.T, src string) (Value, error) {
	e, ok := env.analyse(t, src).(expr.ValueExpr)
	require.True(t, ok)

	_, err := typecheck.Check(e, nil)
	require.NoError(t, err)

	return env.ev.Eval(context.Background(), e)
}

// defMacro analyses a defmacro and installs the macro in the namespace of env.
func (env *testEnv) defMacro(t *testing.T, src string) *expr.MacroVar {
	def, ok := env.analyse(t, src).(*expr.DefMacroExpr)
	require.True(t, ok)

	macro := &expr.MacroVar{Sym: symbol.QSymbol{NS: symbol.Intern("user"), Local: def.Name}, Fn: env.ev.MakeFn(def.Fn)}
	env.ns = env.ns.WithVar(macro)
	return macro
}

func TestEval(t *testing.T) {
	testconfig.AllowParallelization(t)

	testCases := []struct {
		src    string
		result string
	}{
		{"1", "1"},
		{"1.5", "1.5"},
		{"42N", "42N"},
		{"1.5M", "1.5M"},
		{`"a"`, `"a"`},
		{"true", "true"},
		{"nil", "nil"},
		{"[1 2 3]", "[1 2 3]"},
		{"#{3 1 2 1}", "#{1 2 3}"},
		{"(add 1 (mul 2 3))", "7"},
		{"(sub 1 3)", "-2"},
		{"(div 7 2)", "3"},
		{"(lt 1 2)", "true"},
		{"(eq [1 2] [1 2])", "true"},
		{"(neq #{1 2} #{2 1})", "false"},
		{"(if (gte 1 2) 1 2)", "2"},
		{"(let [x 1 y (add x 1)] [x y])", "[1 2]"},
		{"[(do 1 2)]", "[2]"},
		{"(str 1)", `"1"`},
		{"(pr-str \"a\")", `"\"a\""`},
		{"(concat \"a\" \"b\")", `"ab"`},
		{"(count [1 2])", "2"},
		{"(nth [1 2] 1)", "2"},
		{"(conj [1] 2)", "[1 2]"},
		{"((fn (id x) x) 5)", "5"},
		{"{:name \"x\"}", `{:user/name "x"}`},
		{"(:name {:name \"x\"})", `"x"`},
		{"Nothing", "Nothing"},
		{"(Pair 1 2)", "(Pair 1 2)"},
		{"(eq (Pair 1 2) (Pair 1 2))", "true"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.src, func(t *testing.T) {
			env := newTestEnv()
			v, err := env.eval(t, testCase.src)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.result, PrStr(v))
		})
	}

	t.Run("integer division by zero", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.eval(t, "(div 1 0)")
		if !assert.ErrorIs(t, err, ErrIntDivisionByZero) {
			return
		}

		var runtimeErr *RuntimeError
		if assert.ErrorAs(t, err, &runtimeErr) {
			assert.Equal(t, int32(1), runtimeErr.Loc.StartColumn)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.eval(t, "(nth [1 2] 2)")
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("cancelled context", func(t *testing.T) {
		env := newTestEnv()
		e, ok := env.analyse(t, "(add 1 2)").(expr.ValueExpr)
		require.True(t, ok)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := env.ev.Eval(ctx, e)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEvalCase(t *testing.T) {
	testconfig.AllowParallelization(t)

	testCases := []struct {
		src    string
		result string
	}{
		{"(case nil nil 42)", "42"},
		{"(case 10 nil 0 x x)", "10"},
		{"(case nil x 1)", "1"},
		{"(case 10 nil 0 1)", "1"},
		{"(case (Pair 3 4) (Pair a b) [a b])", "[3 4]"},
		{"(case Nothing (Pair a b) [a b] Nothing [0])", "[0]"},
		{"(case Nothing (Pair a b) [a b] [0])", "[0]"},
		{"(case (Pair 1 2) Nothing 0 (Pair a b) (add a b))", "3"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.src, func(t *testing.T) {
			env := newTestEnv()
			v, err := env.eval(t, testCase.src)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.result, PrStr(v))
		})
	}

	t.Run("no matching clause", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.eval(t, "(case Nothing (Pair a b) [a b])")
		assert.ErrorIs(t, err, ErrNoMatchingClause)
	})
}

func TestEvalQuote(t *testing.T) {
	testconfig.AllowParallelization(t)

	testCases := []struct {
		src    string
		result string
	}{
		{"'x", "'x"},
		{"'(foo 1 [x] #{2} {:a 3})", "'(foo 1 [x] #{2} {:a 3})"},
		{"'(foo ~(Int 1))", "'(foo 1)"},
		{"'a/b", "'a/b"},
		{"':a/b", "':a/b"},
		{`'"s"`, `'"s"`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.src, func(t *testing.T) {
			env := newTestEnv()
			v, err := env.eval(t, testCase.src)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, testCase.result, PrStr(v))
		})
	}

	t.Run("gensym names are memoized within an evaluation", func(t *testing.T) {
		env := newTestEnv()
		v, err := env.eval(t, "['x# 'x# 'y#]")
		if !assert.NoError(t, err) {
			return
		}
		elements := VectorElements(v.(vector.Vector))
		assert.Equal(t, PrStr(elements[0]), PrStr(elements[1]))
		assert.NotEqual(t, PrStr(elements[0]), PrStr(elements[2]))
	})
}

func TestMacroExpansion(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("hygiene", func(t *testing.T) {
		env := newTestEnv()
		macro := env.defMacro(t, "(defmacro (twice x) '(let [v# ~x] [v# v#]))")

		first, err := env.ev.ExpandMacro(context.Background(), macro, []form.Form{&form.IntForm{Value: 1}})
		if !assert.NoError(t, err) {
			return
		}
		second, err := env.ev.ExpandMacro(context.Background(), macro, []form.Form{&form.IntForm{Value: 2}})
		if !assert.NoError(t, err) {
			return
		}

		firstName := first.(*form.ListForm).Elements[1].(*form.VectorForm).Elements[0].String()
		secondName := second.(*form.ListForm).Elements[1].(*form.VectorForm).Elements[0].String()

		assert.Regexp(t, `^v__\d+$`, firstName)
		assert.NotEqual(t, firstName, secondName)
		assert.Equal(t, "(let ["+firstName+" 1] ["+firstName+" "+firstName+"])", first.String())
	})

	t.Run("generated bindings do not capture user bindings", func(t *testing.T) {
		env := newTestEnv()
		env.defMacro(t, "(defmacro (add-v x) '(let [v# 10] (add v# ~x)))")

		v, err := env.eval(t, "(let [v 1] (add-v v))")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, int64(11), v)
	})

	t.Run("expanded code is evaluated", func(t *testing.T) {
		env := newTestEnv()
		env.defMacro(t, "(defmacro (unless c then else) '(if ~c ~else ~then))")

		v, err := env.eval(t, "(unless true 1 2)")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, int64(2), v)
	})

	t.Run("a macro must return a form", func(t *testing.T) {
		env := newTestEnv()
		macro := &expr.MacroVar{Sym: symbol.Q("user", "bad"), Fn: NewBuiltin("bad", 1, func(args []Value) (Value, error) {
			return int64(1), nil
		})}

		_, err := env.ev.ExpandMacro(context.Background(), macro, []form.Form{&form.IntForm{Value: 1}})
		assert.ErrorIs(t, err, ErrMacroResult)
	})
}

func TestEffects(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("default implementation", func(t *testing.T) {
		env := newTestEnv()
		v, err := env.eval(t, `(println! "hello")`)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "hello", v)
		assert.Equal(t, "hello\n", env.out.String())
	})

	t.Run("handler", func(t *testing.T) {
		env := newTestEnv()
		v, err := env.eval(t, `(with-fx [(def (println! x) x)] (println! "hello"))`)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "hello", v)
		assert.Empty(t, env.out.String())
	})

	t.Run("handlers are dynamically scoped", func(t *testing.T) {
		env := newTestEnv()
		v, err := env.eval(t, `(with-fx [(def (println! x) "handled")] ((fn (f) (println! "hello"))))`)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "handled", v)
	})

	t.Run("a handler calling its own effect uses the outer handler", func(t *testing.T) {
		env := newTestEnv()
		v, err := env.eval(t, `(with-fx [(def (println! x) (println! (concat "> " x)))] (println! "hello"))`)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "> hello", v)
		assert.Equal(t, "> hello\n", env.out.String())
	})

	t.Run("unhandled effect", func(t *testing.T) {
		env := newTestEnv()
		env.ns = env.ns.WithVar(expr.NewEffectVar(symbol.Q("user", "read!"), form.Loc{}, types.NewFnType(types.STRING)))

		_, err := env.eval(t, "(read!)")
		assert.ErrorIs(t, err, ErrUnhandledEffect)
	})
}

func TestCallDepth(t *testing.T) {
	testconfig.AllowParallelization(t)

	env := newTestEnv()
	env.ev.maxCallDepth = 100

	def, ok := env.analyse(t, "(def (loop n) (loop n))").(*expr.DefExpr)
	require.True(t, ok)
	def.Var.Value = env.ev.MakeFn(def.Value.(*expr.FnExpr))

	_, err := env.ev.Call(context.Background(), def.Var.Value, int64(1))
	assert.True(t, errors.Is(err, ErrStackOverflow))
}

func TestPrintln(t *testing.T) {
	testconfig.AllowParallelization(t)

	core := NewCoreNs(io.Discard)
	v, ok := core.Var("println!")
	if !assert.True(t, ok) {
		return
	}
	effect, ok := v.(*expr.EffectVar)
	if !assert.True(t, ok) {
		return
	}
	assert.True(t, effect.Type.Effects.Has(symbol.Q(CORE_NS, "println!")))
}
