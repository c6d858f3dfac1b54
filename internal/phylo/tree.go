// Package phylo implements the phylogenetic tree (Component G): a
// Newick or Auspice-JSON tree of stable string node ids, used to answer
// "rows whose lineage attribute is node v or a descendant of v."
package phylo

import (
	"github.com/standardbeagle/silo/internal/bitmap"
)

// NodeID is a dense, zero-based index into a Tree's node arena.
type NodeID uint32

// Tree is an arena of phylogenetic nodes. Both parsers only ever append
// a child to the node currently being built. Node ids are interned, so
// an input that repeats an id maps every occurrence to one node; no
// cycle check is made.
type Tree struct {
	ids      []string
	idToNode map[string]NodeID
	parent   []NodeID
	hasParent []bool
	children [][]NodeID
	root     NodeID
}

func newTree() *Tree {
	return &Tree{idToNode: make(map[string]NodeID)}
}

// addNode interns id, returning its NodeID (creating one if new).
func (t *Tree) addNode(id string) NodeID {
	if existing, ok := t.idToNode[id]; ok {
		return existing
	}
	n := NodeID(len(t.ids))
	t.ids = append(t.ids, id)
	t.idToNode[id] = n
	t.children = append(t.children, nil)
	t.parent = append(t.parent, 0)
	t.hasParent = append(t.hasParent, false)
	return n
}

func (t *Tree) setParent(child, parent NodeID) {
	t.parent[child] = parent
	t.hasParent[child] = true
	t.children[parent] = append(t.children[parent], child)
}

// NodeByID looks up a node by its stable string id.
func (t *Tree) NodeByID(id string) (NodeID, bool) {
	n, ok := t.idToNode[id]
	return n, ok
}

// ID returns the stable string id of node n.
func (t *Tree) ID(n NodeID) string { return t.ids[n] }

// NumNodes returns the number of nodes in the tree.
func (t *Tree) NumNodes() int { return len(t.ids) }

// Root returns the tree's root node.
func (t *Tree) Root() NodeID { return t.root }

// Descendants returns n and every node reachable from n via child
// edges.
func (t *Tree) Descendants(n NodeID) []NodeID {
	visited := map[NodeID]bool{n: true}
	queue := []NodeID{n}
	result := []NodeID{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if visited[child] {
				continue
			}
			visited[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// Index precomputes, for every node, the bitmap of rows whose lineage
// attribute is that node or one of its descendants.
type Index struct {
	tree        *Tree
	descendants []*bitmap.Bitmap // [NodeID]
}

// BuildIndex precomputes descendant bitmaps. rowsForNode must return the
// (possibly empty, never nil) bitmap of rows directly assigned to node n.
func BuildIndex(tree *Tree, rowsForNode func(NodeID) *bitmap.Bitmap) *Index {
	idx := &Index{tree: tree, descendants: make([]*bitmap.Bitmap, tree.NumNodes())}
	for n := 0; n < tree.NumNodes(); n++ {
		members := tree.Descendants(NodeID(n))
		parts := make([]*bitmap.Bitmap, len(members))
		for i, m := range members {
			parts[i] = rowsForNode(m)
		}
		idx.descendants[n] = bitmap.FastUnion(parts)
	}
	return idx
}

// Lookup resolves a stable node id to its precomputed descendants bitmap.
func (idx *Index) Lookup(id string) (*bitmap.Bitmap, bool) {
	n, ok := idx.tree.NodeByID(id)
	if !ok {
		return nil, false
	}
	return idx.descendants[n], true
}
