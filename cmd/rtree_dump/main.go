// Package main provides a command-line utility to dump rtree node pages.
// It decodes and prints the cells of a node stored in an index's backing
// tables, for debugging.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/scigolib/rtree/internal/core"
)

func main() {
	// Define command-line flags
	table := flag.String("table", "", "Index (virtual table) name")
	node := flag.Int64("node", 1, "Node number to dump")
	dims := flag.Int("dims", 2, "Number of dimensions of the index")
	integer := flag.Bool("int", false, "Decode coordinates as 32-bit integers")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || *table == "" {
		fmt.Println("Usage: rtree_dump -table <name> [flags] <database file>")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		return
	}
	if *dims < 1 || *dims > core.MaxDims {
		log.Fatalf("Invalid dimension count: %d", *dims)
	}

	db, err := sql.Open("sqlite", args[0])
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	var data []byte
	query := fmt.Sprintf(`SELECT data FROM "%s_node" WHERE nodeno = ?`, *table)
	if err := db.QueryRow(query, *node).Scan(&data); err != nil {
		log.Fatalf("Failed to read node %d: %v", *node, err)
	}

	shape := core.Shape{Dims: *dims, Type: core.CoordReal32}
	if *integer {
		shape.Type = core.CoordInt32
	}
	if len(data) < core.PageHeaderSize {
		log.Fatalf("Node page truncated: %d bytes", len(data))
	}

	count := core.PageCellCount(data)
	fmt.Printf("node %d: %d bytes, depth %d, %d cells\n",
		*node, len(data), core.PageDepth(data), count)

	maxCells := shape.MaxCells(len(data))
	if count > maxCells {
		log.Fatalf("Cell count %d exceeds page capacity %d", count, maxCells)
	}

	for i := 0; i < count; i++ {
		cell := shape.ReadCell(data, i)
		fmt.Printf("  cell %2d: rowid %d", i, cell.ID)
		for d := 0; d < shape.Dims; d++ {
			lo := shape.Wide(cell.Coords[d*2])
			hi := shape.Wide(cell.Coords[d*2+1])
			fmt.Printf("  [%g, %g]", lo, hi)
		}
		fmt.Println()
	}
}
