package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/silo/internal/lineage"
	"github.com/standardbeagle/silo/internal/phylo"
	"github.com/standardbeagle/silo/internal/table"
)

// lineageFlag is "column=path.yaml"; several may be given, one per
// pango-lineage column that needs a tree attached at finalize time.
var lineageFlag = &cli.StringSliceFlag{
	Name:  "lineage",
	Usage: "attach a lineage tree to a pango-lineage column: column=path/to/lineage.yaml",
}

var phyloFlag = &cli.StringFlag{
	Name:  "phylo",
	Usage: "path to a Newick (.nwk/.tree) or Auspice JSON (.json) phylogenetic tree",
}

var phyloColumnFlag = &cli.StringFlag{
	Name:  "phylo-column",
	Usage: "column whose values are phylogenetic node ids (required with --phylo)",
}

// buildFinalizeOptions reads the --lineage/--phylo/--phylo-column flags
// shared by the ingest and query commands into a table.FinalizeOptions,
// parsing each referenced file once.
func buildFinalizeOptions(c *cli.Context) (table.FinalizeOptions, error) {
	opts := table.FinalizeOptions{}

	for _, spec := range c.StringSlice("lineage") {
		column, path, ok := strings.Cut(spec, "=")
		if !ok {
			return opts, fmt.Errorf("--lineage must be column=path, got %q", spec)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("reading lineage tree %s: %w", path, err)
		}
		tree, err := lineage.ParseTree(data)
		if err != nil {
			return opts, fmt.Errorf("parsing lineage tree %s: %w", path, err)
		}
		if opts.LineageTrees == nil {
			opts.LineageTrees = make(map[string]*lineage.Tree)
		}
		opts.LineageTrees[column] = tree
	}

	if path := c.String("phylo"); path != "" {
		col := c.String("phylo-column")
		if col == "" {
			return opts, fmt.Errorf("--phylo-column is required alongside --phylo")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("reading phylogenetic tree %s: %w", path, err)
		}
		var tree *phylo.Tree
		if strings.HasSuffix(path, ".json") {
			tree, err = phylo.ParseAuspiceJSON(path, data)
		} else {
			tree, err = phylo.ParseNewick(path, data)
		}
		if err != nil {
			return opts, fmt.Errorf("parsing phylogenetic tree %s: %w", path, err)
		}
		opts.PhyloTree = tree
		opts.PhyloColumn = col
	}

	return opts, nil
}
