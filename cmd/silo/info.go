package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/silo/internal/persist"
)

var infoCommand = &cli.Command{
	Name:  "info",
	Usage: "show the newest compatible data version under a data directory and its schema",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Usage:    "data directory to inspect",
			Required: true,
		},
	},
	Action: runInfo,
}

func runInfo(c *cli.Context) error {
	root := c.String("data")
	version, dir, ok := persist.NewestCompatible(root)
	if !ok {
		return fmt.Errorf("no compatible data version found under %s", root)
	}
	schema, err := persist.ReadSchema(dir)
	if err != nil {
		return fmt.Errorf("reading schema from %s: %w", dir, err)
	}

	fmt.Printf("data version: %s (serialization v%d)\n", version.DirName(), version.SerializationVersion)
	fmt.Printf("directory:    %s\n", dir)
	fmt.Printf("primary key:  %s\n", schema.PrimaryKey)
	fmt.Println("columns:")
	for _, col := range schema.Columns {
		fmt.Printf("  %-32s %s\n", col.Name, col.Type)
	}
	if len(schema.ReferenceSequences) > 0 {
		fmt.Println("reference sequences:")
		for name, ref := range schema.ReferenceSequences {
			fmt.Printf("  %-32s %d bp\n", name, len(ref))
		}
	}
	return nil
}
