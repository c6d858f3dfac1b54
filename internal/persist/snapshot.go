package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/silo/internal/table"
)

// Save writes tbl as a new data-version directory under root, named
// after now's Unix timestamp, and returns the version written.
func Save(root string, tbl *table.Table, now time.Time) (DataVersion, error) {
	v := NewDataVersion(now)
	dir := filepath.Join(root, v.DirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DataVersion{}, err
	}
	if err := WriteSchema(dir, tbl.Schema()); err != nil {
		return DataVersion{}, fmt.Errorf("writing schema: %w", err)
	}
	for _, p := range tbl.Partitions() {
		if err := WritePartition(dir, tbl.Schema(), p); err != nil {
			return DataVersion{}, fmt.Errorf("writing partition %d: %w", p.ID(), err)
		}
	}
	// data_version.silo is written last: its presence is the signal a
	// directory is complete, so a crash mid-write leaves it invisible
	// to ValidateDirectory rather than half-loaded.
	if err := WriteDataVersion(dir, v); err != nil {
		return DataVersion{}, err
	}
	return v, nil
}

// Load reads the newest compatible data-version directory under root
// and replays it into a fresh Table. finalize is invoked once per
// partition after its rows are appended, so callers can supply the
// lineage/phylogenetic trees Finalize needs — those trees are parsed
// from their own files outside the columnar layout and are not
// round-tripped by this package.
func Load(root string, finalize func(*table.Table, *table.TablePartition) error) (*table.Table, DataVersion, error) {
	v, dir, ok := NewestCompatible(root)
	if !ok {
		return nil, DataVersion{}, fmt.Errorf("no compatible data version found under %s", root)
	}
	schema, err := ReadSchema(dir)
	if err != nil {
		return nil, DataVersion{}, fmt.Errorf("reading schema: %w", err)
	}
	tbl := table.NewTable(schema)

	partitionDirs, err := os.ReadDir(filepath.Join(dir, "table"))
	if err != nil {
		return nil, DataVersion{}, fmt.Errorf("listing partitions: %w", err)
	}
	for range partitionDirs {
		p := tbl.AddPartition()
		rowCount, err := ReadRowCount(dir, p.ID())
		if err != nil {
			return nil, DataVersion{}, err
		}
		rows, err := ReadPartitionRows(dir, schema, p.ID(), rowCount)
		if err != nil {
			return nil, DataVersion{}, fmt.Errorf("reading partition %d: %w", p.ID(), err)
		}
		for _, row := range rows {
			if _, err := tbl.Append(p, row); err != nil {
				return nil, DataVersion{}, fmt.Errorf("replaying partition %d: %w", p.ID(), err)
			}
		}
		if finalize != nil {
			if err := finalize(tbl, p); err != nil {
				return nil, DataVersion{}, fmt.Errorf("finalizing partition %d: %w", p.ID(), err)
			}
		} else if err := tbl.Finalize(p, table.FinalizeOptions{}); err != nil {
			return nil, DataVersion{}, fmt.Errorf("finalizing partition %d: %w", p.ID(), err)
		}
	}
	return tbl, v, nil
}
