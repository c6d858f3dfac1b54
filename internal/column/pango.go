package column

import (
	"github.com/standardbeagle/silo/internal/bitmap"
	"github.com/standardbeagle/silo/internal/dictionary"
	"github.com/standardbeagle/silo/internal/types"
)

// RecombinantMode controls whether a sublineage filter follows a
// recombinant lineage's edges to its parent clades.
type RecombinantMode uint8

const (
	RecombinantDoNotFollow RecombinantMode = iota
	RecombinantAlwaysFollow
	RecombinantFollowIfFullyContainedInClade
)

// DescendantsLookup resolves a lineage ValueID to the precomputed
// bitmap of rows assigned to that lineage or any descendant, under the
// given recombinant mode. It is supplied by whatever owns the
// lineage tree (internal/lineage.Index), keeping this package free of
// a dependency on lineage resolution logic.
type DescendantsLookup func(id types.ValueID, mode RecombinantMode) (*bitmap.Bitmap, bool)

// PangoLineageIndexedString is an IndexedString column whose values are
// lineage names; sublineage filters are evaluated by delegating to a
// DescendantsLookup supplied by the caller at query time, since the
// lineage tree is built and owned outside this package.
type PangoLineageIndexedString struct {
	*IndexedString
}

// NewPangoLineageIndexedString creates an empty lineage column backed by
// the table's shared lineage-name dictionary.
func NewPangoLineageIndexedString(dict *dictionary.Dictionary) *PangoLineageIndexedString {
	return &PangoLineageIndexedString{IndexedString: NewIndexedString(dict)}
}

// FilterIncludingSublineages returns the rows assigned to value or any
// of its descendants, per mode, using lookup to resolve the
// precomputed descendants bitmap.
func (c *PangoLineageIndexedString) FilterIncludingSublineages(
	value string, mode RecombinantMode, lookup DescendantsLookup,
) (*bitmap.Bitmap, bool) {
	id, ok := c.Dictionary().Lookup(value)
	if !ok {
		return nil, false
	}
	return lookup(id, mode)
}

// FilterExcludingSublineages returns only the rows whose lineage value
// is exactly value (no descendants), i.e. the plain IndexedString
// filter.
func (c *PangoLineageIndexedString) FilterExcludingSublineages(value string) (*bitmap.Bitmap, bool) {
	return c.Filter(value)
}
