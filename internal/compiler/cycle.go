package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/recalc/internal/ir"
)

// CycleWarning represents a cycle in the attribute dependency graph.
//
// Cycles are warnings, not errors: the cascade builder's cycle guard cuts
// every cycle at runtime, so a cyclic schema still produces finite task
// trees. The warning tells the schema author that some recomputations will
// not propagate all the way around the loop.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["collection:C.x", "collection:C.y", "collection:C.x"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles performs static cycle analysis on dependency edges.
//
// The algorithm:
//  1. Build the source → target graph (a change to the source dirties the target)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Nodes are visited in sorted order and warnings are sorted by their first
// path element, so the result is deterministic.
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(edges []ir.DependencyEdge) []CycleWarning {
	if len(edges) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(edges)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// dependencyGraph maps an attribute ref string → the refs it dirties.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the attribute dependency graph.
// Parallel edges (same source and target via different link types)
// collapse into one graph edge.
func buildDependencyGraph(edges []ir.DependencyEdge) dependencyGraph {
	graph := make(dependencyGraph)
	seen := make(map[[2]string]bool)

	for _, e := range edges {
		from, to := e.Source.String(), e.Target.String()

		// Ensure both nodes exist in graph
		if graph[from] == nil {
			graph[from] = []string{}
		}
		if graph[to] == nil {
			graph[to] = []string{}
		}

		if seen[[2]string{from, to}] {
			continue
		}
		seen[[2]string{from, to}] = true
		graph[from] = append(graph[from], to)
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of attribute refs.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// For self-loops, the path is [ref, ref].
// For multi-node cycles, the path is a traversal starting at the smallest ref.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		ref := scc[0]
		return CycleWarning{
			Path:    []string{ref, ref},
			Message: fmt.Sprintf("attribute depends on itself: %s -> %s", ref, ref),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the smallest node in the SCC, follow edges to
// unvisited SCC members, and close the loop as soon as start is reachable.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	start := scc[0]
	for _, node := range scc {
		sccSet[node] = true
		if node < start {
			start = node
		}
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if neighbor == start && len(path) > 1 {
				next = start
				break
			}
			if sccSet[neighbor] && !visited[neighbor] && next == "" {
				next = neighbor
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
