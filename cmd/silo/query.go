package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/silo/internal/engine"
	"github.com/standardbeagle/silo/internal/query/exec"
	"github.com/standardbeagle/silo/internal/query/expr"
	"github.com/standardbeagle/silo/internal/query/rewrite"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

var queryCommand = &cli.Command{
	Name:  "query",
	Usage: "evaluate a filter-expression query against the newest compatible data version",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Usage:    "data directory to load the newest compatible version from",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "query",
			Usage: "path to a filter-expression JSON file; defaults to stdin",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "top-level ambiguity mode: none, upper, lower",
			Value: "upper",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "number of partitions evaluated concurrently",
			Value: 4,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "query deadline",
			Value: 30 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "details",
			Usage: "print every matched row's column values instead of just counts",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "cap the number of detail rows printed per partition (0 = unlimited)",
			Value: 100,
		},
		lineageFlag,
		phyloFlag,
		phyloColumnFlag,
	},
	Action: runQuery,
}

func parseAmbiguityMode(s string) (expr.AmbiguityMode, error) {
	switch s {
	case "none":
		return expr.AmbiguityNone, nil
	case "upper":
		return expr.AmbiguityUpper, nil
	case "lower":
		return expr.AmbiguityLower, nil
	default:
		return expr.AmbiguityNone, fmt.Errorf("unknown ambiguity mode %q (want none, upper, or lower)", s)
	}
}

func runQuery(c *cli.Context) error {
	mode, err := parseAmbiguityMode(c.String("mode"))
	if err != nil {
		return err
	}

	queryData, err := readQuery(c.String("query"))
	if err != nil {
		return err
	}

	finalizeOpts, err := buildFinalizeOptions(c)
	if err != nil {
		return err
	}

	e, err := engine.Open(c.String("data"), func(tbl *table.Table, p *table.TablePartition) error {
		return tbl.Finalize(p, finalizeOpts)
	})
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}

	db := e.Snapshot()
	schema := db.Table.Schema()

	knownColumns := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		knownColumns = append(knownColumns, col.Name)
	}

	filter, err := expr.Decode(queryData, knownColumns)
	if err != nil {
		return fmt.Errorf("decoding query: %w", err)
	}
	rewritten, err := rewrite.Rewrite(filter, schema, mode)
	if err != nil {
		return fmt.Errorf("rewriting query: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	executor := exec.NewExecutor(c.Int("parallel"))
	results, err := executor.Execute(ctx, rewritten, schema, db.Table.Partitions())
	if err != nil {
		return fmt.Errorf("evaluating query: %w", err)
	}

	var total uint64
	for _, r := range results {
		total += r.Rows.View().Cardinality()
	}
	fmt.Printf("data version %s: %d rows matched across %d partitions\n", db.Version.DirName(), total, len(results))

	if !c.Bool("details") {
		for _, r := range results {
			fmt.Printf("  partition %d: %d rows\n", r.Partition, r.Rows.View().Cardinality())
		}
		return nil
	}

	limit := c.Int("limit")
	partitions := db.Table.Partitions()
	for _, r := range results {
		p := partitions[r.Partition]
		rows := r.Rows.View().ToArray()
		sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
		for _, row := range rows {
			printDetailRow(schema, p, row)
		}
	}
	return nil
}

func readQuery(path string) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading query from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", path, err)
	}
	return data, nil
}

// printDetailRow renders one matched row's declared metadata columns
// as a single JSON object; sequence/insertion columns are omitted, the
// same way a details action would project only the metadata schema.
func printDetailRow(schema *table.TableSchema, p *table.TablePartition, row types.RowID) {
	out := make(map[string]any, len(schema.Columns))
	for _, col := range schema.Columns {
		switch col.Type {
		case types.ColumnIndexedString:
			if c, ok := p.IndexedString(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		case types.ColumnPangoLineageIndexedString:
			if c, ok := p.PangoLineage(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		case types.ColumnString:
			if c, ok := p.String(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		case types.ColumnDate:
			if c, ok := p.Date(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v.String()
				}
			}
		case types.ColumnInt32:
			if c, ok := p.Int32(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		case types.ColumnFloat64:
			if c, ok := p.Float64(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		case types.ColumnBool:
			if c, ok := p.Bool(col.Name); ok {
				if v, ok := c.Value(row); ok {
					out[col.Name] = v
				}
			}
		}
	}
	enc, _ := json.Marshal(out)
	fmt.Printf("  %d:%d %s\n", p.ID(), row, enc)
}
