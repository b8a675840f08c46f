// Package graph holds the note link graph: a map from filename to its sorted
// set of outgoing link filenames. Every link target is also a key, so the
// graph never carries dangling references.
//
// Graph is not safe for concurrent use; the owning session serializes access.
package graph

import (
	"slices"
)

// Graph is the in-memory link graph.
type Graph struct {
	nodes map[string][]string
	// virtual holds the synthesized successors of temporal nodes, kept apart
	// so that rewriting a key's own links never drops them.
	virtual map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string][]string),
		virtual: make(map[string][]string),
	}
}

// Build creates a graph from the outgoing links of every file in a corpus
// and unions in the temporal hierarchy of its daily notes.
func Build(outgoing map[string][]string) *Graph {
	g := New()
	var dailies []string
	for file, targets := range outgoing {
		g.SetLinks(file, targets)
		if IsDailyNote(file) {
			dailies = append(dailies, file)
		}
	}
	g.BuildTemporal(dailies)
	return g
}

// FromMap adopts a wire or cached graph. Temporal successors are recovered
// from the month and year keys so later overwrites keep them.
func FromMap(m map[string][]string) *Graph {
	g := New()
	for k, v := range m {
		g.nodes[k] = normalize(v)
	}
	for k, v := range g.nodes {
		for _, child := range v {
			if isVirtualChild(k, child) {
				g.virtual[k] = append(g.virtual[k], child)
			}
		}
		g.Ensure(v...)
	}
	return g
}

// SetLinks replaces the outgoing set of file and makes sure every target
// exists as a key.
func (g *Graph) SetLinks(file string, targets []string) {
	set := normalize(append(slices.Clone(targets), g.virtual[file]...))
	g.nodes[file] = set
	g.Ensure(set...)
}

// Ensure adds each name as a key with an empty outgoing set when missing.
func (g *Graph) Ensure(names ...string) {
	for _, name := range names {
		if _, ok := g.nodes[name]; !ok {
			g.nodes[name] = []string{}
		}
	}
}

// Remove clears the outgoing links of a deleted file. The key itself is
// dropped only when nothing references it and it is not a temporal node.
func (g *Graph) Remove(file string) {
	if _, ok := g.nodes[file]; !ok {
		return
	}
	if v := g.virtual[file]; len(v) > 0 {
		g.nodes[file] = slices.Clone(v)
		return
	}
	g.nodes[file] = []string{}
	if len(g.Backlinks(file)) == 0 {
		delete(g.nodes, file)
	}
}

// Has reports whether name is a key.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Links returns a copy of the outgoing set of file.
func (g *Graph) Links(file string) []string {
	return slices.Clone(g.nodes[file])
}

// Backlinks returns the sorted keys that link to target.
func (g *Graph) Backlinks(target string) []string {
	var out []string
	for src, targets := range g.nodes {
		if _, found := slices.BinarySearch(targets, target); found {
			out = append(out, src)
		}
	}
	slices.Sort(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Map returns a deep copy suitable for the wire or for persistence.
func (g *Graph) Map() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for k, v := range g.nodes {
		out[k] = slices.Clone(v)
		if out[k] == nil {
			out[k] = []string{}
		}
	}
	return out
}

// normalize returns a sorted, deduplicated, non-nil copy of s.
func normalize(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// insertSorted adds v to the sorted slice s unless already present.
func insertSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}
