package depgraph

import (
	"context"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// A RequiresFunc returns the namespaces directly required by a namespace. done is true when
// the namespace needs no loading (it is already live), its requires are not explored.
type RequiresFunc func(ctx context.Context, name string) (requires []string, done bool, err error)

// Plan discovers the namespaces reachable from roots and returns the ones that need loading,
// dependencies first. No namespace is returned if a cycle exists among them.
func Plan(ctx context.Context, roots []string, requiresOf RequiresFunc) ([]string, error) {
	g := New()
	pending := bitset.New(0)
	explored := bitset.New(0)

	queue := slices.Clone(roots)
	for _, root := range roots {
		g.AddNamespace(root)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := queue[0]
		queue = queue[1:]

		id := uint(g.AddNamespace(name))
		if explored.Test(id) {
			continue
		}
		explored.Set(id)

		requires, done, err := requiresOf(ctx, name)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		pending.Set(id)

		for _, required := range requires {
			if required == name {
				return nil, cycleError([]string{name, name})
			}
			g.AddRequire(name, required)
			queue = append(queue, required)
		}
	}

	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(order, func(name string) bool {
		return !pending.Test(uint(g.ids[name]))
	}), nil
}
