// Command silo is the CLI surface around the columnar filter core: it
// ingests ndjson batches into a data-version directory and evaluates
// filter-expression JSON queries against the newest compatible one.
// The HTTP surface, directory watcher wiring, and higher-level actions
// (aggregation, fasta export) are external collaborators per the
// engine's scope and are not reimplemented here.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "silo",
		Usage: "columnar search engine for sequence collections with structured metadata",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "project root directory (no subcommand reads this flag)",
				Value:   ".",
			},
		},
		Commands: []*cli.Command{
			ingestCommand,
			queryCommand,
			infoCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "silo:", err)
		os.Exit(1)
	}
}
