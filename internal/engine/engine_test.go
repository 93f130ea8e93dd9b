package engine

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/bridjelang/bridje/internal/analyser"
	"github.com/bridjelang/bridje/internal/depgraph"
	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/expr"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var chainSources = map[string]string{
	"app.base":   "(ns app.base) (def x 10)",
	"app.middle": "(ns app.middle (require app.base)) (def y (add app.base/x 10))",
	"app.top":    "(ns app.top (require [app.middle :as m])) (def z (add m/y 10))",
}

// countingLoader counts the namespaces loaded through it.
type countingLoader struct {
	*loader.FSLoader
	loads atomic.Int32
}

func (l *countingLoader) LoadForms(ctx context.Context, ns string) ([]form.Form, error) {
	l.loads.Add(1)
	return l.FSLoader.LoadForms(ctx, ns)
}

func newTestEngine(t *testing.T, sources map[string]string) (*Engine, *countingLoader, *bytes.Buffer) {
	fsLoader, err := loader.NewMemLoader(sources)
	require.NoError(t, err)

	l := &countingLoader{FSLoader: fsLoader}
	out := &bytes.Buffer{}
	return New(Config{Loader: l, Out: out}), l, out
}

func readForms(t *testing.T, src string) []form.Form {
	forms, err := reader.ReadAll("test.brj", src)
	require.NoError(t, err)
	return forms
}

func readForm(t *testing.T, src string) form.Form {
	f, err := reader.ReadOne("test.brj", src)
	require.NoError(t, err)
	return f
}

func defValue(t *testing.T, e *Engine, nsName, name string) string {
	ns, ok := e.Snapshot().Namespace(nsName)
	require.True(t, ok, "%s should be live", nsName)

	v, ok := ns.Var(name)
	require.True(t, ok, "%s/%s should be defined", nsName, name)

	def, ok := v.(*expr.DefVar)
	require.True(t, ok)
	return eval.PrStr(def.Value)
}

func TestNew(t *testing.T) {
	testconfig.AllowParallelization(t)

	e := New(Config{})
	assert.Equal(t, []string{nsenv.CORE_NS}, e.Snapshot().NamespaceNames())
}

func TestEvalNamespace(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	t.Run("definitions", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		ns, err := e.EvalNamespace(ctx, readForms(t, `
			(ns app)
			(def x 1)
			(def (inc n) (add n x))
			(deftag (Pair a b))
			(defkey :name String)
			(def pair (Pair (inc 1) {:name "x"}))
		`))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"Pair", "inc", "pair", "x"}, ns.VarNames())
		assert.Equal(t, `(Pair 2 {:app/name "x"})`, defValue(t, e, "app", "pair"))

		key, ok := ns.Key("name")
		if assert.True(t, ok) {
			assert.Equal(t, types.STRING, key.Type)
		}

		//the source forms are kept for replays.
		assert.Len(t, ns.SourceForms(), 6)
	})

	t.Run("recursive function", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, err := e.EvalNamespace(ctx, readForms(t, `
			(ns app)
			(def (fact n) (if (lte n 1) 1 (mul n (fact (sub n 1)))))
			(def x (fact 5))
		`))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "120", defValue(t, e, "app", "x"))
	})

	t.Run("a new snapshot is published", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		before := e.Snapshot()

		_, err := e.EvalNamespace(ctx, readForms(t, "(ns app) (def x 1)"))
		if !assert.NoError(t, err) {
			return
		}

		after := e.Snapshot()
		assert.NotEqual(t, before.Version(), after.Version())
		assert.False(t, before.IsLive("app"))
		assert.True(t, after.IsLive("app"))
	})

	t.Run("errors of all forms are reported and nothing is installed", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		before := e.Snapshot()

		_, err := e.EvalNamespace(ctx, readForms(t, "(ns app) (def x y) (def z 1) (def w (add 1 \"a\"))"))

		var nsErr *NamespaceError
		if !assert.ErrorAs(t, err, &nsErr) {
			return
		}
		assert.Equal(t, "app", nsErr.Name)
		if !assert.Len(t, nsErr.Errors, 2) {
			return
		}

		var analysisErrs *analyser.Errors
		assert.ErrorAs(t, nsErr.Errors[0], &analysisErrs)
		assert.ErrorIs(t, nsErr.Errors[1], types.ErrTypeMismatch)

		assert.Same(t, before, e.Snapshot())
	})

	t.Run("missing header", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		_, err := e.EvalNamespace(ctx, readForms(t, "(def x 1)"))
		assert.ErrorIs(t, err, nsenv.ErrInvalidNsHeader)

		_, err = e.EvalNamespace(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyNamespace)
	})

	t.Run("the core namespace cannot be redefined", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		_, err := e.EvalNamespace(ctx, readForms(t, "(ns brj.core) (def x 1)"))
		assert.ErrorIs(t, err, ErrCannotRedefineCore)
	})

	t.Run("required namespaces are loaded first", func(t *testing.T) {
		e, l, _ := newTestEngine(t, chainSources)

		_, err := e.EvalNamespace(ctx, readForms(t, "(ns app.main (require app.top)) (def main (add app.top/z 1))"))
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, int32(3), l.loads.Load())
		assert.Equal(t, "41", defValue(t, e, "app.main", "main"))
		assert.Equal(t, []string{"app.base", "app.main", "app.middle", "app.top", nsenv.CORE_NS}, e.Snapshot().NamespaceNames())
	})

	t.Run("redefinition introducing a cycle", func(t *testing.T) {
		e, _, _ := newTestEngine(t, chainSources)

		_, err := e.Require(ctx, "app.top")
		if !assert.NoError(t, err) {
			return
		}
		before := e.Snapshot()

		_, err = e.EvalNamespace(ctx, readForms(t, "(ns app.base (require app.top)) (def x 1)"))
		assert.ErrorIs(t, err, depgraph.ErrDependencyCycle)
		assert.Same(t, before, e.Snapshot())
	})

	t.Run("cancelled context", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := e.EvalNamespace(cancelledCtx, readForms(t, "(ns app) (def x 1)"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRequire(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	t.Run("dependencies are loaded in order", func(t *testing.T) {
		e, l, _ := newTestEngine(t, chainSources)

		top, err := e.Require(ctx, "app.top")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "app.top", top.Name())
		assert.Equal(t, int32(3), l.loads.Load())
		assert.Equal(t, "30", defValue(t, e, "app.top", "z"))

		//live namespaces are not loaded again.
		_, err = e.Require(ctx, "app.middle")
		assert.NoError(t, err)
		assert.Equal(t, int32(3), l.loads.Load())
	})

	t.Run("namespace not found", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		_, err := e.Require(ctx, "app.missing")
		assert.ErrorIs(t, err, loader.ErrNamespaceNotFound)
	})

	t.Run("header not matching the file", func(t *testing.T) {
		e, _, _ := newTestEngine(t, map[string]string{"app": "(ns other) (def x 1)"})
		_, err := e.Require(ctx, "app")
		assert.ErrorIs(t, err, ErrNamespaceMismatch)
	})

	t.Run("cycle: nothing is installed", func(t *testing.T) {
		e, _, _ := newTestEngine(t, map[string]string{
			"a": "(ns a (require b)) (def x 1)",
			"b": "(ns b (require a)) (def y 1)",
			"c": "(ns c (require a)) (def z 1)",
		})
		before := e.Snapshot()

		_, err := e.Require(ctx, "c")
		if !assert.ErrorIs(t, err, depgraph.ErrDependencyCycle) {
			return
		}
		assert.Contains(t, err.Error(), "a -> b -> a")
		assert.Same(t, before, e.Snapshot())
		assert.Equal(t, []string{nsenv.CORE_NS}, e.Snapshot().NamespaceNames())
	})

	t.Run("a failing dependency prevents the installation of the whole chain", func(t *testing.T) {
		sources := map[string]string{
			"app.base":   "(ns app.base) (def x 10)",
			"app.middle": "(ns app.middle (require app.base)) (def y (add app.base/x \"a\"))",
			"app.top":    chainSources["app.top"],
		}
		e, _, _ := newTestEngine(t, sources)

		_, err := e.Require(ctx, "app.top")
		assert.ErrorIs(t, err, types.ErrTypeMismatch)
		assert.Equal(t, []string{nsenv.CORE_NS}, e.Snapshot().NamespaceNames())
	})
}

func TestRedefinition(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	setup := func(t *testing.T) (*Engine, *countingLoader) {
		e, l, _ := newTestEngine(t, chainSources)
		_, err := e.Require(ctx, "app.top")
		require.NoError(t, err)
		return e, l
	}

	t.Run("redefining a namespace invalidates its dependents", func(t *testing.T) {
		e, _ := setup(t)

		_, err := e.EvalNamespace(ctx, readForms(t, "(ns app.base) (def x 20)"))
		if !assert.NoError(t, err) {
			return
		}

		snapshot := e.Snapshot()
		assert.True(t, snapshot.IsLive("app.base"))
		assert.False(t, snapshot.IsLive("app.middle"))
		assert.False(t, snapshot.IsLive("app.top"))
		assert.Equal(t, []string{"app.middle", "app.top"}, snapshot.QuarantinedNames())
	})

	t.Run("re-requiring a dependent replays the quarantined chain", func(t *testing.T) {
		e, l := setup(t)

		_, err := e.EvalNamespace(ctx, readForms(t, "(ns app.base) (def x 20)"))
		if !assert.NoError(t, err) {
			return
		}

		_, err = e.Require(ctx, "app.top")
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, "30", defValue(t, e, "app.middle", "y"))
		assert.Equal(t, "40", defValue(t, e, "app.top", "z"))
		assert.Empty(t, e.Snapshot().QuarantinedNames())

		//the replayed sources come from the quarantine, not from the loader.
		assert.Equal(t, int32(3), l.loads.Load())
	})

	t.Run("a failed replay halts and installs nothing", func(t *testing.T) {
		e, _ := setup(t)

		_, err := e.EvalNamespace(ctx, readForms(t, `(ns app.base) (def x "a")`))
		if !assert.NoError(t, err) {
			return
		}
		before := e.Snapshot()

		_, err = e.Require(ctx, "app.top")
		assert.ErrorIs(t, err, types.ErrTypeMismatch)

		assert.Same(t, before, e.Snapshot())
		assert.Equal(t, []string{"app.middle", "app.top"}, e.Snapshot().QuarantinedNames())
	})

	t.Run("invalidate", func(t *testing.T) {
		e, _ := setup(t)

		invalidated := e.Invalidate("app.middle")
		assert.ElementsMatch(t, []string{"app.middle", "app.top"}, invalidated)
		assert.True(t, e.Snapshot().IsLive("app.base"))

		assert.Empty(t, e.Invalidate("app.unknown"))
		assert.Empty(t, e.Invalidate(nsenv.CORE_NS))
	})

	t.Run("reload", func(t *testing.T) {
		e, l := setup(t)

		err := l.WriteSource("app.base", "(ns app.base) (def x 100)")
		if !assert.NoError(t, err) {
			return
		}

		_, err = e.Reload(ctx, "app.base")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "100", defValue(t, e, "app.base", "x"))
		assert.False(t, e.Snapshot().IsLive("app.top"))
	})
}

func TestEvalForm(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	t.Run("the default namespace is created", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		v, nsName, err := e.EvalForm(ctx, "", readForm(t, "(add 1 2)"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, DEFAULT_NS, nsName)
		assert.Equal(t, "3", eval.PrStr(v))
		assert.True(t, e.Snapshot().IsLive(DEFAULT_NS))
	})

	t.Run("definitions are kept", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(def x 1)"))
		if !assert.NoError(t, err) {
			return
		}

		v, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(add x 1)"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "2", eval.PrStr(v))

		ns, _ := e.Snapshot().Namespace(DEFAULT_NS)
		assert.Len(t, ns.SourceForms(), 2)
	})

	t.Run("definitions are replayed", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(def x 1)"))
		if !assert.NoError(t, err) {
			return
		}

		e.Invalidate(DEFAULT_NS)
		assert.False(t, e.Snapshot().IsLive(DEFAULT_NS))

		v, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "x"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "1", eval.PrStr(v))
	})

	t.Run("ns form switches namespace", func(t *testing.T) {
		e, _, _ := newTestEngine(t, chainSources)

		_, nsName, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(ns scratch (require [app.base :as b]))"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "scratch", nsName)

		v, _, err := e.EvalForm(ctx, nsName, readForm(t, "(add b/x 1)"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "11", eval.PrStr(v))
	})

	t.Run("existing namespaces are required", func(t *testing.T) {
		e, _, _ := newTestEngine(t, chainSources)

		v, _, err := e.EvalForm(ctx, "app.top", readForm(t, "z"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "30", eval.PrStr(v))
	})

	t.Run("a failed form does not modify the namespace", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)
		_, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(def x 1)"))
		require.NoError(t, err)
		before := e.Snapshot()

		_, _, err = e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(def x unknown)"))
		assert.Error(t, err)
		assert.Same(t, before, e.Snapshot())
	})

	t.Run("println", func(t *testing.T) {
		e, _, out := newTestEngine(t, nil)

		_, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, `(println! "hello")`))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "hello\n", out.String())
	})
}

func TestEffects(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	t.Run("effect without default implementation", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(defx (read!) String)"))
		if !assert.NoError(t, err) {
			return
		}

		_, _, err = e.EvalForm(ctx, DEFAULT_NS, readForm(t, "(read!)"))
		assert.ErrorIs(t, err, eval.ErrUnhandledEffect)

		v, _, err := e.EvalForm(ctx, DEFAULT_NS, readForm(t, `(with-fx [(def (read!) "handled")] (read!))`))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, `"handled"`, eval.PrStr(v))
	})

	t.Run("default implementation", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, err := e.EvalNamespace(ctx, readForms(t, `
			(ns app)
			(defx (read!) String)
			(def (read!) "default")
		`))
		if !assert.NoError(t, err) {
			return
		}

		v, _, err := e.EvalForm(ctx, "app", readForm(t, "(read!)"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, `"default"`, eval.PrStr(v))
	})

	t.Run("default implementation with a wrong type", func(t *testing.T) {
		e, _, _ := newTestEngine(t, nil)

		_, err := e.EvalNamespace(ctx, readForms(t, `
			(ns app)
			(defx (read!) String)
			(def (read!) 1)
		`))
		assert.True(t, errors.Is(err, types.ErrTypeMismatch))
	})
}

func TestMacros(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()
	e, _, _ := newTestEngine(t, nil)

	_, err := e.EvalNamespace(ctx, readForms(t, `
		(ns app)
		(defmacro (unless c then else) '(if ~c ~else ~then))
		(def x (unless false 1 2))
	`))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "1", defValue(t, e, "app", "x"))
}

func TestLogging(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	fsLoader, err := loader.NewMemLoader(chainSources)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	e := New(Config{Loader: fsLoader, Logger: &logger})

	_, err = e.Require(ctx, "app.top")
	if !assert.NoError(t, err) {
		return
	}
	_, err = e.EvalNamespace(ctx, readForms(t, "(ns app.base) (def x 1)"))
	if !assert.NoError(t, err) {
		return
	}

	output := logs.String()
	assert.Contains(t, output, `"src":"engine"`)
	assert.Contains(t, output, `"msg":"loaded namespace"`)
	assert.Contains(t, output, `"msg":"published snapshot"`)
	assert.Contains(t, output, `{"lvl":"debug","src":"engine","ns":"app.top","msg":"invalidated"}`)
}
