package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slamkit/internal/arena"
)

func init() {
	rootCmd.AddCommand(newInspectCmd())
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Summarize a heap snapshot",
		Long: `The inspect command reads a heap image written by "slamctl stress --snapshot"
and reports its address range and how much of it was ever touched.

Example:
  slamctl inspect heap.s2
  slamctl inspect heap.s2 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args)
		},
	}
	return cmd
}

// SnapshotInfo summarizes a heap image.
type SnapshotInfo struct {
	Path         string `json:"path"`
	Origin       string `json:"origin"`
	End          string `json:"end"`
	Size         uint64 `json:"size"`
	Pages        int    `json:"pages"`
	TouchedPages int    `json:"touched_pages"`
}

func runInspect(args []string) error {
	path := args[0]
	printVerbose("Reading snapshot: %s\n", path)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	mem, err := arena.ReadSnapshot(f)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	defer mem.Close()

	info := SnapshotInfo{
		Path:         path,
		Origin:       mem.Origin().String(),
		End:          mem.End().String(),
		Size:         mem.Size(),
		Pages:        int(mem.Size() / arena.PageSize),
		TouchedPages: mem.TouchedPages(),
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nSnapshot: %s\n", path)
	printInfo("  Range: [%s, %s)\n", info.Origin, info.End)
	printInfo("  Size: %s\n", formatBytes(info.Size))
	printInfo("  Pages touched: %s of %s\n", formatNumber(uint64(info.TouchedPages)), formatNumber(uint64(info.Pages)))
	return nil
}
