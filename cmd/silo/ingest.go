package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/silo/internal/ingest"
	"github.com/standardbeagle/silo/internal/persist"
	"github.com/standardbeagle/silo/internal/table"
)

var ingestCommand = &cli.Command{
	Name:  "ingest",
	Usage: "append an ndjson batch as a new partition and persist a new data version",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "schema",
			Usage:    "directory containing schema.yaml",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "data",
			Usage:    "data directory new versions are written under",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "in",
			Usage: "ndjson input file; defaults to stdin",
		},
		&cli.BoolFlag{
			Name:  "from-existing",
			Usage: "load the newest compatible data version under --data and add this batch as a new partition before re-saving, instead of starting an empty table",
		},
		lineageFlag,
		phyloFlag,
		phyloColumnFlag,
	},
	Action: runIngest,
}

func runIngest(c *cli.Context) error {
	schemaDir := c.String("schema")
	dataDir := c.String("data")

	opts, err := buildFinalizeOptions(c)
	if err != nil {
		return err
	}
	finalize := func(tbl *table.Table, p *table.TablePartition) error {
		return tbl.Finalize(p, opts)
	}

	var tbl *table.Table
	if c.Bool("from-existing") {
		loaded, _, err := persist.Load(dataDir, finalize)
		if err != nil {
			return fmt.Errorf("loading existing data version: %w", err)
		}
		tbl = loaded
	} else {
		schema, err := persist.ReadSchema(schemaDir)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		tbl = table.NewTable(schema)
	}

	in := os.Stdin
	if path := c.String("in"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	partition := tbl.AddPartition()
	result, err := ingest.Batch(tbl, partition, in)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	for _, lineErr := range result.LineErrors {
		log.Printf("silo: ingest: %v", lineErr)
	}

	if err := tbl.Finalize(partition, opts); err != nil {
		return fmt.Errorf("finalizing partition: %w", err)
	}
	if err := tbl.Validate(); err != nil {
		return fmt.Errorf("validating table: %w", err)
	}

	version, err := persist.Save(dataDir, tbl, time.Now())
	if err != nil {
		return fmt.Errorf("saving data version: %w", err)
	}

	fmt.Printf("ingested %d rows (%d line errors) into data version %s\n",
		result.RowsAppended, len(result.LineErrors), version.DirName())
	return nil
}
