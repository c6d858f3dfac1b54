// Package lineage implements the lineage/Pango tree (Component F): an
// arena of dense LineageID nodes parsed from a YAML alias/parent
// mapping, with cycle detection, one-level alias resolution, and a
// precomputed lowest-common-ancestor for every recombinant (a node
// with more than one parent).
package lineage

import (
	"fmt"
	"sort"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"gopkg.in/yaml.v3"
)

// LineageID is a dense, zero-based index into a Tree's node arena.
type LineageID uint32

type lineageDef struct {
	Parents []string `yaml:"parents"`
	Aliases []string `yaml:"aliases"`
}

// Tree is an arena of lineage nodes: canonical names, their parent and
// child edges, and a precomputed LCA for every recombinant node.
type Tree struct {
	names         []string
	nameToID      map[string]LineageID
	aliasToName   map[string]string
	parents       [][]LineageID
	children      [][]LineageID
	depth         []int
	ancestorSets  []map[LineageID]bool
	recombinantLCA map[LineageID]LineageID
}

// ParseTree builds a Tree from a YAML document mapping lineage name to
// {parents, aliases}.
func ParseTree(data []byte) (*Tree, error) {
	var raw map[string]lineageDef
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, siloerrors.NewPreprocessingError("lineages.yaml", "invalid YAML: "+err.Error())
	}

	t := &Tree{
		nameToID:       make(map[string]LineageID),
		aliasToName:    make(map[string]string),
		recombinantLCA: make(map[LineageID]LineageID),
	}

	// Deterministic order so repeated parses assign the same ids.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, dup := t.nameToID[name]; dup {
			return nil, siloerrors.NewPreprocessingError("lineages.yaml", fmt.Sprintf("duplicate lineage name %q", name))
		}
		id := LineageID(len(t.names))
		t.names = append(t.names, name)
		t.nameToID[name] = id
	}

	for _, name := range names {
		for _, alias := range raw[name].Aliases {
			if _, isName := t.nameToID[alias]; isName {
				return nil, siloerrors.NewPreprocessingError("lineages.yaml", fmt.Sprintf("alias %q collides with a lineage name", alias))
			}
			if existing, dup := t.aliasToName[alias]; dup {
				return nil, siloerrors.NewPreprocessingError("lineages.yaml", fmt.Sprintf("duplicate alias %q (also aliases %q)", alias, existing))
			}
			t.aliasToName[alias] = name
		}
	}

	t.parents = make([][]LineageID, len(t.names))
	t.children = make([][]LineageID, len(t.names))
	for _, name := range names {
		id := t.nameToID[name]
		for _, parentRef := range raw[name].Parents {
			parentID, ok := t.resolve(parentRef)
			if !ok {
				return nil, siloerrors.NewPreprocessingError("lineages.yaml",
					fmt.Sprintf("lineage %q references unknown parent %q", name, parentRef))
			}
			t.parents[id] = append(t.parents[id], parentID)
			t.children[parentID] = append(t.children[parentID], id)
		}
	}

	if cycle := t.findCycle(); cycle != nil {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = t.names[id]
		}
		return nil, siloerrors.NewPreprocessingError("lineages.yaml", "cycle in lineage graph").WithCycle(path)
	}

	t.computeDepthsAndAncestors()
	t.computeRecombinantLCAs()
	return t, nil
}

// resolve looks up a name directly, or through a single level of alias
// indirection. Chained aliases (alias of an alias) are not supported.
func (t *Tree) resolve(ref string) (LineageID, bool) {
	if id, ok := t.nameToID[ref]; ok {
		return id, true
	}
	if canonical, ok := t.aliasToName[ref]; ok {
		id, ok := t.nameToID[canonical]
		return id, ok
	}
	return 0, false
}

// Resolve is the exported form of resolve, used by the lineage column's
// DescendantsLookup adapter and by filter compilation.
func (t *Tree) Resolve(ref string) (LineageID, bool) { return t.resolve(ref) }

// Name returns the canonical name of id.
func (t *Tree) Name(id LineageID) string { return t.names[id] }

// NumNodes returns the number of lineages in the tree.
func (t *Tree) NumNodes() int { return len(t.names) }

func (t *Tree) findCycle() []LineageID {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(t.names))
	var path []LineageID
	var cycle []LineageID

	var visit func(v LineageID) bool
	visit = func(v LineageID) bool {
		color[v] = gray
		path = append(path, v)
		for _, p := range t.parents[v] {
			switch color[p] {
			case gray:
				// found the back-edge; extract the cycle from path
				for i, node := range path {
					if node == p {
						cycle = append(append([]LineageID{}, path[i:]...), p)
						return true
					}
				}
			case white:
				if visit(p) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[v] = black
		return false
	}

	for v := range t.names {
		if color[v] == white {
			if visit(LineageID(v)) {
				return cycle
			}
		}
	}
	return nil
}

func (t *Tree) computeDepthsAndAncestors() {
	n := len(t.names)
	t.depth = make([]int, n)
	t.ancestorSets = make([]map[LineageID]bool, n)

	var compute func(v LineageID) int
	memoDone := make([]bool, n)
	compute = func(v LineageID) int {
		if memoDone[v] {
			return t.depth[v]
		}
		set := map[LineageID]bool{v: true}
		maxParentDepth := -1
		for _, p := range t.parents[v] {
			d := compute(p)
			if d > maxParentDepth {
				maxParentDepth = d
			}
			for anc := range t.ancestorSets[p] {
				set[anc] = true
			}
		}
		t.ancestorSets[v] = set
		t.depth[v] = maxParentDepth + 1
		memoDone[v] = true
		return t.depth[v]
	}
	for v := range t.names {
		compute(LineageID(v))
	}
}

func (t *Tree) computeRecombinantLCAs() {
	for v, parents := range t.parents {
		if len(parents) < 2 {
			continue
		}
		lca := t.lowestCommonAncestor(parents)
		t.recombinantLCA[LineageID(v)] = lca
	}
}

// lowestCommonAncestor returns the deepest node that is an ancestor-or-self
// of every id in ids.
func (t *Tree) lowestCommonAncestor(ids []LineageID) LineageID {
	common := map[LineageID]bool{}
	for anc := range t.ancestorSets[ids[0]] {
		common[anc] = true
	}
	for _, id := range ids[1:] {
		for anc := range common {
			if !t.ancestorSets[id][anc] {
				delete(common, anc)
			}
		}
	}
	best := ids[0]
	bestDepth := -1
	for anc := range common {
		if t.depth[anc] > bestDepth {
			bestDepth = t.depth[anc]
			best = anc
		}
	}
	return best
}

// IsAncestorOrSelf reports whether node is ancestor, equal to, or the
// same as v — i.e. node appears in v's ancestor set.
func (t *Tree) IsAncestorOrSelf(v, node LineageID) bool {
	return t.ancestorSets[v][node]
}

// RecombinantLCA returns the precomputed clade LCA of a recombinant's
// parents, and false if id is not a recombinant.
func (t *Tree) RecombinantLCA(id LineageID) (LineageID, bool) {
	lca, ok := t.recombinantLCA[id]
	return lca, ok
}

// IsRecombinant reports whether id has two or more parents.
func (t *Tree) IsRecombinant(id LineageID) bool {
	return len(t.parents[id]) >= 2
}
