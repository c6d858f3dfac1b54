package lineage

import "github.com/standardbeagle/silo/internal/column"

// Descendants returns v and every node reachable from v by following
// child edges, honoring mode at each recombinant child encountered:
//   - DoNotFollow never crosses into a recombinant's subtree.
//   - AlwaysFollow always crosses, regardless of the recombinant's
//     other parents.
//   - FollowIfFullyContainedInClade crosses only when the recombinant's
//     precomputed clade LCA lies within v's own clade (v or a
//     descendant of v), i.e. the recombination event never reaches
//     outside the queried lineage.
func (t *Tree) Descendants(v LineageID, mode column.RecombinantMode) []LineageID {
	visited := map[LineageID]bool{v: true}
	queue := []LineageID{v}
	result := []LineageID{v}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if visited[child] {
				continue
			}
			if t.IsRecombinant(child) && !t.shouldFollow(v, child, mode) {
				continue
			}
			visited[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

func (t *Tree) shouldFollow(v, recombinant LineageID, mode column.RecombinantMode) bool {
	switch mode {
	case column.RecombinantDoNotFollow:
		return false
	case column.RecombinantAlwaysFollow:
		return true
	case column.RecombinantFollowIfFullyContainedInClade:
		lca, ok := t.RecombinantLCA(recombinant)
		if !ok {
			return true
		}
		return t.IsAncestorOrSelf(lca, v)
	default:
		return false
	}
}

// Ancestors returns v and every node reachable from v by following
// parent edges, applying the same recombinant-mode check to v itself
// and to any recombinant ancestor encountered while walking up.
func (t *Tree) Ancestors(v LineageID, mode column.RecombinantMode) []LineageID {
	visited := map[LineageID]bool{v: true}
	queue := []LineageID{v}
	result := []LineageID{v}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range t.parents[cur] {
			if visited[parent] {
				continue
			}
			if t.IsRecombinant(cur) && !t.shouldFollow(parent, cur, mode) {
				continue
			}
			visited[parent] = true
			result = append(result, parent)
			queue = append(queue, parent)
		}
	}
	return result
}
