package maxpar

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// node is one task in the execution graph, annotated with its declaration
// index and precomputed access sets.
type node struct {
	task   Task
	index  int
	reads  map[string]struct{}
	writes map[string]struct{}
}

// Graph is the maximal-parallelism execution DAG. Nodes are tasks in
// declaration order; an edge (a, b) means a must complete before b starts.
// Built once at System construction, immutable afterward. Any two tasks
// without a path between them are safe to run concurrently.
type Graph struct {
	nodes  []*node
	byName map[string]int
	succ   [][]int // successors per node, ascending by index
	pred   [][]int // predecessors per node, ascending by index
}

// buildGraph assembles the DAG from declared tasks and precedence hints.
//
// Hint edges are laid down first and checked for cycles. Then every pair of
// tasks still unordered by the graph built so far is tested with Bernstein's
// conditions; a conflicting pair gets exactly one edge, directed from the
// earlier-declared task to the later-declared one. Pairs are visited in
// declaration order and the reachability closure is updated as edges land,
// so no edge is ever added between tasks the graph already orders. Pairs
// with disjoint access sets get no edge at all.
func buildGraph(tasks []Task, precedences map[string][]string) (*Graph, error) {
	n := len(tasks)
	g := &Graph{
		nodes:  make([]*node, n),
		byName: make(map[string]int, n),
	}

	for i, t := range tasks {
		if _, exists := g.byName[t.Name]; exists {
			return nil, &DuplicateTaskError{Name: t.Name}
		}
		g.byName[t.Name] = i
		g.nodes[i] = &node{
			task:   t,
			index:  i,
			reads:  toSet(t.Reads),
			writes: toSet(t.Writes),
		}
	}

	// Hint edges: prerequisite -> task. Tasks absent from the hint map simply
	// have no hints.
	edges := make(map[[2]int]struct{})
	for taskName, prereqs := range precedences {
		to, ok := g.byName[taskName]
		if !ok {
			return nil, &UnknownTaskError{Ref: taskName}
		}
		for _, prereq := range prereqs {
			from, ok := g.byName[prereq]
			if !ok {
				return nil, &UnknownTaskError{Task: taskName, Ref: prereq}
			}
			edges[[2]int{from, to}] = struct{}{}
		}
	}

	adj := make([][]int, n)
	for e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
	}
	if path := findCycle(adj); path != nil {
		names := make([]string, len(path))
		for i, idx := range path {
			names[i] = g.nodes[idx].task.Name
		}
		return nil, &CycleError{Path: names}
	}

	// Reachability closure of the hint edges, extended incrementally as
	// conflict edges are inserted.
	reach := make([][]bool, n)
	for i := range reach {
		reach[i] = make([]bool, n)
	}
	var mark func(from, to int)
	mark = func(from, to int) {
		if reach[from][to] {
			return
		}
		reach[from][to] = true
		for _, next := range adj[to] {
			mark(from, next)
		}
	}
	for i := 0; i < n; i++ {
		for _, next := range adj[i] {
			mark(i, next)
		}
	}

	addEdge := func(from, to int) {
		edges[[2]int{from, to}] = struct{}{}
		adj[from] = append(adj[from], to)
		// Everything reaching from now also reaches to and beyond.
		for x := 0; x < n; x++ {
			if x != from && !reach[x][from] {
				continue
			}
			if !reach[x][to] {
				reach[x][to] = true
			}
			for y := 0; y < n; y++ {
				if reach[to][y] {
					reach[x][y] = true
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if reach[i][j] || reach[j][i] {
				continue
			}
			if conflicts(g.nodes[i], g.nodes[j]) {
				addEdge(i, j)
			}
		}
	}

	g.succ = make([][]int, n)
	g.pred = make([][]int, n)
	for e := range edges {
		g.succ[e[0]] = append(g.succ[e[0]], e[1])
		g.pred[e[1]] = append(g.pred[e[1]], e[0])
	}
	for i := 0; i < n; i++ {
		sort.Ints(g.succ[i])
		sort.Ints(g.pred[i])
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// findCycle runs a three-color DFS over the adjacency list and returns the
// participating node indices (first repeated last), or nil when acyclic.
func findCycle(adj [][]int) []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(adj))
	parent := make([]int, len(adj))
	for i := range parent {
		parent[i] = -1
	}

	var path []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range adj[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge: walk parents from u back to v to recover the cycle.
				path = append(path, v)
				for cur := u; cur != v && cur != -1; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, v)
				// Reverse into forward order.
				for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
					path[l], path[r] = path[r], path[l]
				}
				return true
			}
		}
		color[u] = black
		return false
	}

	for u := range adj {
		if color[u] == white && dfs(u) {
			return path
		}
	}
	return nil
}

// validate cross-checks the finished graph with an independent topological
// sort. Construction keeps the graph acyclic by design; this is the same
// re-verification the builder's invariants are measured against, and it also
// catches any node lost to a bookkeeping bug.
func (g *Graph) validate() error {
	var edges []toposort.Edge
	for i, n := range g.nodes {
		if len(g.pred[i]) == 0 {
			// Root with no incoming edge; anchor it so the sort includes it.
			edges = append(edges, toposort.Edge{nil, n.task.Name})
			continue
		}
		for _, p := range g.pred[i] {
			edges = append(edges, toposort.Edge{g.nodes[p].task.Name, n.task.Name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return fmt.Errorf("execution graph contains a cycle: %w", err)
	}

	count := 0
	for _, id := range sorted {
		if id != nil {
			count++
		}
	}
	if count != len(g.nodes) {
		return fmt.Errorf("topological sort lost %d tasks", len(g.nodes)-count)
	}
	return nil
}

// topoOrder returns node indices in deterministic topological order: Kahn's
// algorithm with ties broken by declaration index. This is the reference
// sequential order.
func (g *Graph) topoOrder() []int {
	n := len(g.nodes)
	indeg := make([]int, n)
	for i := range g.pred {
		indeg[i] = len(g.pred[i])
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			// Unreachable for a validated graph.
			break
		}
		done[next] = true
		order = append(order, next)
		for _, s := range g.succ[next] {
			indeg[s]--
		}
	}
	return order
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Names returns the task names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.task.Name
	}
	return names
}

// Edges returns every edge as a (before, after) name pair, ordered by
// declaration index. This is the read-only view visualization layers consume.
func (g *Graph) Edges() [][2]string {
	var out [][2]string
	for i, succs := range g.succ {
		for _, j := range succs {
			out = append(out, [2]string{g.nodes[i].task.Name, g.nodes[j].task.Name})
		}
	}
	return out
}

// HasPath reports whether the graph orders a before b, directly or
// transitively. Unknown names yield false.
func (g *Graph) HasPath(a, b string) bool {
	from, ok := g.byName[a]
	if !ok {
		return false
	}
	to, ok := g.byName[b]
	if !ok {
		return false
	}

	seen := make([]bool, len(g.nodes))
	stack := []int{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.succ[cur] {
			if s == to {
				return true
			}
			if !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return false
}

// InDegrees returns a copy of each node's incoming-edge count, indexed by
// declaration order.
func (g *Graph) InDegrees() []int {
	indeg := make([]int, len(g.nodes))
	for i := range g.pred {
		indeg[i] = len(g.pred[i])
	}
	return indeg
}
