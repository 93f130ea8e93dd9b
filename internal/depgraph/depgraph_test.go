package depgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/stretchr/testify/assert"
)

func TestOrder(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("dependencies first", func(t *testing.T) {
		g := New()
		g.AddRequire("app.top", "app.middle")
		g.AddRequire("app.middle", "app.base")
		g.AddRequire("app.top", "app.base")

		order, err := g.Order()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"app.base", "app.middle", "app.top"}, order)
		assert.Equal(t, []string{"app.base", "app.middle"}, g.Requires("app.top"))
		assert.Equal(t, []string{"app.middle", "app.top"}, g.RequiredBy("app.base"))
	})

	t.Run("independent namespaces are sorted by name", func(t *testing.T) {
		g := New()
		g.AddNamespace("c")
		g.AddNamespace("a")
		g.AddNamespace("b")

		order, err := g.Order()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"a", "b", "c"}, order)
	})

	t.Run("cycle", func(t *testing.T) {
		g := New()
		g.AddRequire("b", "a")
		g.AddRequire("a", "b")
		g.AddRequire("c", "a")

		_, err := g.Order()
		if !assert.Error(t, err) {
			return
		}
		assert.True(t, errors.Is(err, ErrDependencyCycle))
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("longer cycle", func(t *testing.T) {
		g := New()
		g.AddRequire("a", "b")
		g.AddRequire("b", "c")
		g.AddRequire("c", "a")

		_, err := g.Order()
		if !assert.Error(t, err) {
			return
		}
		assert.Contains(t, err.Error(), "a -> b -> c -> a")
	})
}

func TestPlan(t *testing.T) {
	testconfig.AllowParallelization(t)

	requiresOf := func(requires map[string][]string, live ...string) RequiresFunc {
		return func(ctx context.Context, name string) ([]string, bool, error) {
			for _, liveName := range live {
				if liveName == name {
					return nil, true, nil
				}
			}
			return requires[name], false, nil
		}
	}

	t.Run("only pending namespaces are planned", func(t *testing.T) {
		requires := map[string][]string{
			"app.top":    {"app.middle"},
			"app.middle": {"app.base"},
			"app.base":   {},
		}

		plan, err := Plan(context.Background(), []string{"app.top"}, requiresOf(requires, "app.base"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"app.middle", "app.top"}, plan)

		plan, err = Plan(context.Background(), []string{"app.top"}, requiresOf(requires))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"app.base", "app.middle", "app.top"}, plan)
	})

	t.Run("live root", func(t *testing.T) {
		plan, err := Plan(context.Background(), []string{"a"}, requiresOf(nil, "a"))
		if !assert.NoError(t, err) {
			return
		}
		assert.Empty(t, plan)
	})

	t.Run("cycle", func(t *testing.T) {
		requires := map[string][]string{
			"a": {"b"},
			"b": {"a"},
		}

		plan, err := Plan(context.Background(), []string{"a"}, requiresOf(requires))
		assert.True(t, errors.Is(err, ErrDependencyCycle))
		assert.Empty(t, plan)
	})

	t.Run("self require", func(t *testing.T) {
		_, err := Plan(context.Background(), []string{"a"}, requiresOf(map[string][]string{"a": {"a"}}))
		if !assert.Error(t, err) {
			return
		}
		assert.Contains(t, err.Error(), "a -> a")
	})

	t.Run("errors of the requires function are returned", func(t *testing.T) {
		notFound := errors.New("not found")
		_, err := Plan(context.Background(), []string{"a"}, func(ctx context.Context, name string) ([]string, bool, error) {
			return nil, false, notFound
		})
		assert.ErrorIs(t, err, notFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Plan(ctx, []string{"a"}, requiresOf(nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
