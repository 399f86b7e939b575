package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slamkit/slam"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes [size...]",
		Short: "Show how request sizes map to size classes",
		Long: `The classes command shows the size class, object size and usable range
for each given request size. Without arguments it lists every class a request
can land in.

Example:
  slamctl classes
  slamctl classes 100 4088 4089 1M
  slamctl classes 100 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(args)
		},
	}
	return cmd
}

// ClassRow describes one size class, optionally for a specific request.
type ClassRow struct {
	Request     *uint64 `json:"request,omitempty"`
	Class       int     `json:"class"`
	ObjectSize  uint64  `json:"object_size"`
	MinUsable   uint64  `json:"min_usable"`
	MaxUsable   uint64  `json:"max_usable"`
	SlabSize    uint64  `json:"slab_size"`
	PerSlab     uint64  `json:"objects_per_slab"`
	WastedBytes *uint64 `json:"wasted_bytes,omitempty"`
}

func classRow(class int) ClassRow {
	size := slam.ClassSize(class)
	slab := max(size, slam.SlabMinimumSize)
	lo, hi := slam.ClassBounds(class)
	return ClassRow{
		Class:      class,
		ObjectSize: size,
		MinUsable:  lo,
		MaxUsable:  hi,
		SlabSize:   slab,
		PerSlab:    slab / size,
	}
}

func runClasses(args []string) error {
	var rows []ClassRow
	if len(args) == 0 {
		first, _ := slam.ClassFor(0)
		for class := first; class < slam.NumClasses; class++ {
			rows = append(rows, classRow(class))
		}
	}
	for _, arg := range args {
		n, err := parseSize(arg)
		if err != nil {
			return err
		}
		class, err := slam.ClassFor(n)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		row := classRow(class)
		wasted := row.MaxUsable - n
		row.Request = &n
		row.WastedBytes = &wasted
		rows = append(rows, row)
	}

	if jsonOut {
		return printJSON(rows)
	}

	for _, r := range rows {
		if r.Request != nil {
			printInfo("request %s -> ", formatNumber(*r.Request))
		}
		printInfo("class %2d: object %s, usable (%s, %s], %s per %s slab",
			r.Class, formatBytes(r.ObjectSize), formatNumber(r.MinUsable), formatNumber(r.MaxUsable),
			formatNumber(r.PerSlab), formatBytes(r.SlabSize))
		if r.WastedBytes != nil {
			printInfo(", %s bytes slack", formatNumber(*r.WastedBytes))
		}
		printInfo("\n")
	}
	return nil
}
