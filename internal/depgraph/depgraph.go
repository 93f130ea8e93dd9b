package depgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrDependencyCycle = errors.New("dependency cycle")
)

// A Graph is a namespace require graph. Internally edges go from a required namespace to the
// namespace requiring it so that a topological sort lists dependencies first.
type Graph struct {
	directed *simple.DirectedGraph
	ids      map[string]int64
	names    []string
}

func New() *Graph {
	return &Graph{
		directed: simple.NewDirectedGraph(),
		ids:      map[string]int64{},
	}
}

func (g *Graph) AddNamespace(name string) int64 {
	if id, ok := g.ids[name]; ok {
		return id
	}
	id := int64(len(g.names))
	g.ids[name] = id
	g.names = append(g.names, name)
	g.directed.AddNode(simple.Node(id))
	return id
}

// AddRequire records that namespace from requires namespace to.
func (g *Graph) AddRequire(from, to string) {
	fromId := g.AddNamespace(from)
	toId := g.AddNamespace(to)
	if fromId == toId {
		//simple graphs do not support self loops.
		panic(fmt.Errorf("namespace %s cannot require itself", from))
	}
	g.directed.SetEdge(g.directed.NewEdge(simple.Node(toId), simple.Node(fromId)))
}

func (g *Graph) Len() int {
	return len(g.names)
}

func (g *Graph) Has(name string) bool {
	_, ok := g.ids[name]
	return ok
}

// Requires returns the namespaces directly required by name, sorted.
func (g *Graph) Requires(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.directed.To(id))
}

// RequiredBy returns the namespaces directly requiring name, sorted.
func (g *Graph) RequiredBy(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	return g.namesOf(g.directed.From(id))
}

func (g *Graph) namesOf(nodes graph.Nodes) []string {
	var names []string
	for nodes.Next() {
		names = append(names, g.names[nodes.Node().ID()])
	}
	slices.Sort(names)
	return names
}

// Order returns all namespaces, each one after the namespaces it requires. Namespaces without
// ordering constraints between them are sorted by name. An error wrapping ErrDependencyCycle
// is returned if the graph has a cycle.
func (g *Graph) Order() ([]string, error) {
	sorted, err := topo.SortStabilized(g.directed, func(nodes []graph.Node) {
		slices.SortFunc(nodes, func(a, b graph.Node) int {
			return strings.Compare(g.names[a.ID()], g.names[b.ID()])
		})
	})

	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) && len(unorderable) > 0 {
			return nil, cycleError(g.cycleIn(unorderable[0]))
		}
		return nil, fmt.Errorf("%w: %w", ErrDependencyCycle, err)
	}

	order := make([]string, 0, len(sorted))
	for _, node := range sorted {
		if node != nil {
			order = append(order, g.names[node.ID()])
		}
	}
	return order, nil
}

// cycleIn returns a shortest require cycle starting and ending at the smallest name of the
// strongly connected component.
func (g *Graph) cycleIn(component []graph.Node) []string {
	inComponent := bitset.New(uint(len(g.names)))
	start := component[0].ID()
	for _, node := range component {
		inComponent.Set(uint(node.ID()))
		if g.names[node.ID()] < g.names[start] {
			start = node.ID()
		}
	}

	//breadth-first search following the require direction (To) until start is reached again.
	visited := bitset.New(uint(len(g.names)))
	parents := map[int64]int64{}
	queue := []int64{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, required := range g.sortedIds(g.directed.To(current)) {
			if !inComponent.Test(uint(required)) {
				continue
			}
			if required == start {
				path := []string{g.names[start]}
				for id := current; id != start; id = parents[id] {
					path = append(path, g.names[id])
				}
				path = append(path, g.names[start])
				slices.Reverse(path[1 : len(path)-1])
				return path
			}
			if visited.Test(uint(required)) {
				continue
			}
			visited.Set(uint(required))
			parents[required] = current
			queue = append(queue, required)
		}
	}

	return []string{g.names[start]}
}

func (g *Graph) sortedIds(nodes graph.Nodes) []int64 {
	var ids []int64
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.SortFunc(ids, func(a, b int64) int {
		return strings.Compare(g.names[a], g.names[b])
	})
	return ids
}

func cycleError(path []string) error {
	return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(path, " -> "))
}
