package lineage

import (
	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/column"
	"github.com/standardbeagle/silo/internal/dictionary"
	"github.com/standardbeagle/silo/internal/types"
)

var allModes = [...]column.RecombinantMode{
	column.RecombinantDoNotFollow,
	column.RecombinantAlwaysFollow,
	column.RecombinantFollowIfFullyContainedInClade,
}

// Index precomputes, for every lineage node and every recombinant mode,
// the bitmap of rows assigned to that lineage or (mode-dependent) one of
// its descendants. Built once at partition finalize.
type Index struct {
	tree        *Tree
	dict        *dictionary.Dictionary
	descendants map[column.RecombinantMode][]*bitmap.Bitmap // [mode][LineageID]
}

// BuildIndex precomputes descendant bitmaps. rowsForLineage must return
// the (possibly empty, never nil) bitmap of rows whose column value is
// exactly the given lineage's canonical name.
func BuildIndex(tree *Tree, dict *dictionary.Dictionary, rowsForLineage func(LineageID) *bitmap.Bitmap) *Index {
	idx := &Index{
		tree:        tree,
		dict:        dict,
		descendants: make(map[column.RecombinantMode][]*bitmap.Bitmap, len(allModes)),
	}
	for _, mode := range allModes {
		perLineage := make([]*bitmap.Bitmap, tree.NumNodes())
		for v := 0; v < tree.NumNodes(); v++ {
			members := tree.Descendants(LineageID(v), mode)
			parts := make([]*bitmap.Bitmap, len(members))
			for i, m := range members {
				parts[i] = rowsForLineage(m)
			}
			perLineage[v] = bitmap.FastUnion(parts)
		}
		idx.descendants[mode] = perLineage
	}
	return idx
}

// Lookup resolves a column ValueID to its lineage's precomputed
// descendants bitmap under mode. It matches column.DescendantsLookup's
// signature so it can be passed directly to
// PangoLineageIndexedString.FilterIncludingSublineages.
func (idx *Index) Lookup(id types.ValueID, mode column.RecombinantMode) (*bitmap.Bitmap, bool) {
	name, ok := idx.dict.Value(id)
	if !ok {
		return nil, false
	}
	lineageID, ok := idx.tree.Resolve(name)
	if !ok {
		return nil, false
	}
	perLineage, ok := idx.descendants[mode]
	if !ok {
		return nil, false
	}
	return perLineage[lineageID], true
}

// LookupName is Lookup keyed by a lineage name (or alias) instead of a
// column ValueID. A lineage present in the tree but never stored as any
// row's value has no dictionary entry, so a name that misses the
// dictionary can still resolve here and return its descendants' rows.
func (idx *Index) LookupName(name string, mode column.RecombinantMode) (*bitmap.Bitmap, bool) {
	lineageID, ok := idx.tree.Resolve(name)
	if !ok {
		return nil, false
	}
	perLineage, ok := idx.descendants[mode]
	if !ok {
		return nil, false
	}
	return perLineage[lineageID], true
}

// AsDescendantsLookup adapts idx.Lookup to the column.DescendantsLookup
// function type.
func (idx *Index) AsDescendantsLookup() column.DescendantsLookup {
	return idx.Lookup
}
