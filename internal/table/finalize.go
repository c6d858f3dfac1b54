package table

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/silo/internal/bitmap"
	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/lineage"
	"github.com/standardbeagle/silo/internal/phylo"
)

// FinalizeOptions supplies the external trees a partition's auxiliary
// indexes are built against. LineageTrees is keyed by pango-lineage
// column name; PhyloColumn names the column (declared indexed_string or
// pango_lineage_indexed_string) whose values are phylogenetic node ids.
type FinalizeOptions struct {
	LineageTrees map[string]*lineage.Tree
	PhyloTree    *phylo.Tree
	PhyloColumn  string
}

// Finalize builds every auxiliary index a partition needs (lineage
// descendant bitmaps, the phylogenetic descendant index) in parallel
// and marks the partition read-only. The insertion n-gram index and
// every column's own inverted index are already complete by the time
// Finalize runs, since they are built incrementally during Append.
func (t *Table) Finalize(partition *TablePartition, opts FinalizeOptions) error {
	partition.mu.Lock()
	defer partition.mu.Unlock()

	if partition.finalized {
		return nil
	}

	type lineageJob struct {
		name string
		idx  *lineage.Index
	}
	lineageJobs := make([]lineageJob, len(opts.LineageTrees))
	var phyloResult *phylo.Index

	g, _ := errgroup.WithContext(context.Background())

	i := 0
	for name, tree := range opts.LineageTrees {
		slot := i
		i++
		lineageJobs[slot].name = name
		name, tree := name, tree
		pango, ok := partition.pangoColumns[name]
		if !ok {
			return siloerrors.NewInvalidSchemaError(name, "lineage tree attached to an undeclared pango-lineage column")
		}
		g.Go(func() error {
			rowsForLineage := func(id lineage.LineageID) *bitmap.Bitmap {
				bm, ok := pango.Filter(tree.Name(id))
				if !ok {
					return bitmap.New()
				}
				return bm
			}
			lineageJobs[slot].idx = lineage.BuildIndex(tree, pango.Dictionary(), rowsForLineage)
			return nil
		})
	}

	if opts.PhyloTree != nil {
		pango, pangoOK := partition.pangoColumns[opts.PhyloColumn]
		indexed, indexedOK := partition.indexedStrings[opts.PhyloColumn]
		if !pangoOK && !indexedOK {
			return siloerrors.NewInvalidSchemaError(opts.PhyloColumn, "phylogenetic tree attached to an undeclared string column")
		}
		tree := opts.PhyloTree
		g.Go(func() error {
			rowsForNode := func(n phylo.NodeID) *bitmap.Bitmap {
				var bm *bitmap.Bitmap
				var ok bool
				if pangoOK {
					bm, ok = pango.Filter(tree.ID(n))
				} else {
					bm, ok = indexed.Filter(tree.ID(n))
				}
				if !ok {
					return bitmap.New()
				}
				return bm
			}
			phyloResult = phylo.BuildIndex(tree, rowsForNode)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("finalize partition %d: %w", partition.id, err)
	}

	for _, job := range lineageJobs {
		partition.lineageIndexes[job.name] = job.idx
	}
	partition.phyloIndex = phyloResult

	partition.finalized = true
	return nil
}

// validateLengths checks that every column in the partition holds
// exactly rowCount values, per the §4.I validate() contract.
func (p *TablePartition) validateLengths() error {
	n := p.rowCount
	check := func(column string, got int) error {
		if got != n {
			return siloerrors.NewInvalidSchemaError(column, fmt.Sprintf("column has %d rows, partition has %d", got, n))
		}
		return nil
	}
	for name, c := range p.indexedStrings {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.pangoColumns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.stringColumns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.dateColumns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.int32Columns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.float64Columns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, c := range p.boolColumns {
		if err := check(name, c.Len()); err != nil {
			return err
		}
	}
	for name, s := range p.nucleotideStores {
		if err := check(name, s.RowCount()); err != nil {
			return err
		}
	}
	for name, s := range p.aminoAcidStores {
		if err := check(name, s.RowCount()); err != nil {
			return err
		}
	}
	return nil
}
