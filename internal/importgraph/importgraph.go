// Package importgraph implements the import-graph analyzer of spec §4.7:
// a transitive walk over a module's imports (including glob imports,
// expanded against the resolver's list_elements per §6.4's shell-glob
// grammar) producing a reachability graph plus its Tarjan-SCC cycle set,
// without invoking the evaluator.
//
// Grounded on the teacher's core/filewalker.go doublestar.PathMatch-based
// pattern matching, generalized from "find files under a root" to "find
// modules reachable from imports"; gitignore-aware local directory
// listing (as the teacher's internal/scanner does it) lives one layer
// down, in the scheme.Resolver this package's glob expansion delegates
// to for list_elements.
package importgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pklrun/pkl/internal/ast"
	"github.com/pklrun/pkl/internal/perrors"
)

// Resolver is the subset of internal/resolve's module pipeline the
// analyzer needs: parse a URI to its import list, and — for glob
// imports — list the elements of the pattern's directory.
type Resolver interface {
	// ParseImports returns uri's normalized form and its literal import
	// list (URI, isGlob), without evaluating the module.
	ParseImports(ctx context.Context, uri string) (normalized string, imports []ImportRef, err error)
	// ListElements lists the (possibly empty) ordered elements of the
	// directory-like URI dir, or an error if dir's scheme does not
	// support listing ("not globbable", §4.1).
	ListElements(ctx context.Context, dir string) ([]string, error)
}

// ImportRef is one import clause as seen by the analyzer: the literal
// URI text (which may contain a glob pattern) and whether it is a glob
// import (`import*`).
type ImportRef struct {
	URI    string
	IsGlob bool
}

// FromModule extracts the ImportRefs of a parsed CST module, used by a
// Resolver.ParseImports implementation that already has the CST.
func FromModule(m *ast.Module) []ImportRef {
	out := make([]ImportRef, 0, len(m.Imports))
	for _, imp := range m.Imports {
		out = append(out, ImportRef{URI: imp.URI, IsGlob: imp.Glob})
	}
	return out
}

// Node is one reachable module in the graph: its normalized URI and the
// set of modules it imports (edges), in discovery order.
type Node struct {
	URI     string
	Imports []string // normalized URIs, in source order (self-inclusive for glob self-matches)
}

// Graph is the transitive import-reachability graph rooted at one module.
type Graph struct {
	Root  string
	Nodes map[string]*Node
}

// Walk performs the transitive import walk of spec §4.7 starting at
// rootURI: for each reachable module it records its literal/glob-expanded
// imports and their resolved URIs. Cycles are allowed (the walk tracks
// visited nodes rather than recursing unboundedly) and are reported
// faithfully via Cycles(), not suppressed here.
func Walk(ctx context.Context, r Resolver, rootURI string) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node)}
	queue := []string{rootURI}
	visited := map[string]bool{}

	for len(queue) > 0 {
		uri := queue[0]
		queue = queue[1:]
		if visited[uri] {
			continue
		}

		normalized, imports, err := r.ParseImports(ctx, uri)
		if err != nil {
			return nil, err
		}
		visited[uri] = true
		if existing, ok := g.Nodes[normalized]; ok {
			// Same module reached through two literal spellings (e.g. a
			// relative import and an absolute one): keep the first
			// recorded edge set, nothing new to discover.
			_ = existing
			continue
		}
		if g.Root == "" {
			g.Root = normalized
		}
		node := &Node{URI: normalized}
		g.Nodes[normalized] = node

		for _, imp := range imports {
			if imp.IsGlob {
				resolved, err := expandGlob(ctx, r, normalized, imp.URI)
				if err != nil {
					return nil, err
				}
				for _, target := range resolved {
					node.Imports = append(node.Imports, target)
					if !visited[target] {
						queue = append(queue, target)
					}
				}
				continue
			}
			target, _, err := r.ParseImports(ctx, imp.URI)
			if err != nil {
				return nil, err
			}
			node.Imports = append(node.Imports, target)
			if !visited[imp.URI] {
				queue = append(queue, imp.URI)
			}
		}
	}
	return g, nil
}

// expandGlob resolves a glob import pattern against its containing
// directory using the shell-glob grammar of §6.4 (doublestar.Match
// implements the same `*`/`**`/`?`/`[...]`/`{a,b}` semantics; extended
// forms `!(…)` etc. are rejected by RejectExtendedGlob before this is
// reached). The pattern is self-inclusive: a pattern that matches the
// importing module's own sibling file includes that file (scenario 5).
func expandGlob(ctx context.Context, r Resolver, importer, pattern string) ([]string, error) {
	if err := RejectExtendedGlob(pattern); err != nil {
		return nil, err
	}
	dir := dirOf(importer)
	elements, err := r.ListElements(ctx, dir)
	if err != nil {
		return nil, perrors.Newf(perrors.Resolve, "glob import `%s` against non-globbable module `%s`: %v", pattern, importer, err)
	}
	var out []string
	for _, el := range elements {
		matched, err := doublestar.Match(pattern, el)
		if err != nil {
			return nil, perrors.Newf(perrors.Resolve, "invalid glob pattern `%s`: %v", pattern, err)
		}
		if matched {
			out = append(out, joinPath(dir, el))
		}
	}
	sort.Strings(out)
	return out, nil
}

func dirOf(uri string) string {
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[:i]
	}
	return uri
}

func joinPath(dir, rel string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + rel
	}
	return dir + "/" + rel
}

// RejectExtendedGlob rejects the extended-glob forms named invalid by
// §6.4: `!(…)`, `+(…)`, `?(…)`, `@(…)`, `*(…)`.
func RejectExtendedGlob(pattern string) error {
	for _, prefix := range []string{"!(", "+(", "?(", "@(", "*("} {
		if strings.Contains(pattern, prefix) {
			return perrors.Newf(perrors.Resolve, "invalid glob pattern `%s`: extended-glob forms are not supported", pattern)
		}
	}
	return nil
}

// Cycles returns the set of non-trivial strongly connected components of
// g via Tarjan's algorithm (spec §4.7's "canonical cycle set"). A
// single-node SCC is reported as a cycle only if that node imports
// itself (a genuine 1-cycle); larger SCCs are always cycles.
func (g *Graph) Cycles() [][]string {
	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	var order []string
	for uri := range g.Nodes {
		order = append(order, uri)
	}
	sort.Strings(order)
	for _, uri := range order {
		if _, visited := t.index[uri]; !visited {
			t.strongconnect(uri)
		}
	}

	var cycles [][]string
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			sort.Strings(scc)
			cycles = append(cycles, scc)
			continue
		}
		// Single-node SCC: a cycle only if it imports itself.
		uri := scc[0]
		if node, ok := g.Nodes[uri]; ok {
			for _, imp := range node.Imports {
				if imp == uri {
					cycles = append(cycles, []string{uri})
					break
				}
			}
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})
	return cycles
}

// tarjan implements Tarjan's strongly-connected-components algorithm
// over Graph's adjacency (node.Imports), iteratively to avoid recursion
// depth limits on deep import chains.
type tarjan struct {
	graph   *Graph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongconnect(v string) {
	type frame struct {
		node     string
		children []string
		i        int
	}
	var work []*frame
	push := func(node string) {
		t.index[node] = t.counter
		t.lowlink[node] = t.counter
		t.counter++
		t.stack = append(t.stack, node)
		t.onStack[node] = true
		work = append(work, &frame{node: node, children: t.graph.Nodes[node].Imports})
	}
	push(v)

	for len(work) > 0 {
		f := work[len(work)-1]
		if f.i < len(f.children) {
			w := f.children[f.i]
			f.i++
			if _, ok := t.index[w]; !ok {
				push(w)
				continue
			} else if t.onStack[w] {
				if t.index[w] < t.lowlink[f.node] {
					t.lowlink[f.node] = t.index[w]
				}
			}
			continue
		}
		// All children processed: pop and propagate lowlink to caller.
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1]
			if t.lowlink[f.node] < t.lowlink[parent.node] {
				t.lowlink[parent.node] = t.lowlink[f.node]
			}
		}
		if t.lowlink[f.node] == t.index[f.node] {
			var scc []string
			for {
				n := len(t.stack) - 1
				w := t.stack[n]
				t.stack = t.stack[:n]
				t.onStack[w] = false
				scc = append(scc, w)
				if w == f.node {
					break
				}
			}
			t.sccs = append(t.sccs, scc)
		}
	}
}

// String renders a debug summary of the graph's edges, sorted for
// deterministic test comparisons.
func (g *Graph) String() string {
	var uris []string
	for uri := range g.Nodes {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	var b strings.Builder
	for _, uri := range uris {
		n := g.Nodes[uri]
		imports := append([]string{}, n.Imports...)
		sort.Strings(imports)
		fmt.Fprintf(&b, "%s -> %s\n", uri, strings.Join(imports, ", "))
	}
	return b.String()
}
