package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slamkit/internal/cpu"
	"github.com/joshuapare/slamkit/internal/workload"
	"github.com/joshuapare/slamkit/slam"
)

var (
	stressWorkers  int
	stressOps      int
	stressMaxSize  string
	stressMaxLive  int
	stressHeap     string
	stressCPUs     int
	stressSeed     int64
	stressSnapshot string
	stressHistory  int
)

func init() {
	cmd := newStressCmd()
	d := workload.DefaultConfig
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", d.Workers, "Concurrent workers")
	cmd.Flags().IntVarP(&stressOps, "ops", "n", d.Ops, "Operations per worker")
	cmd.Flags().StringVar(&stressMaxSize, "max-size", "2K", "Largest request size (exclusive)")
	cmd.Flags().IntVar(&stressMaxLive, "max-live", d.MaxLive, "Objects a worker holds before freeing")
	cmd.Flags().StringVar(&stressHeap, "heap", "64M", "Heap region size")
	cmd.Flags().IntVar(&stressCPUs, "cpus", 0, "Simulate this many CPUs round-robin (0 = ask the OS)")
	cmd.Flags().Int64Var(&stressSeed, "seed", d.Seed, "Random seed")
	cmd.Flags().StringVar(&stressSnapshot, "snapshot", "", "Write an s2-compressed heap image to this file")
	cmd.Flags().IntVar(&stressHistory, "history", 0, "Remember this many freed addresses for double-free reports")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent alloc/free workload with corruption checks",
		Long: `The stress command runs workers that allocate and free random sizes
against one allocator, writing canary bytes into every live object and checking
them before each free. Afterwards it verifies every free list and prints
per-class statistics.

Example:
  slamctl stress
  slamctl stress --workers 16 --ops 100000 --cpus 4
  slamctl stress --heap 256M --snapshot heap.s2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
	return cmd
}

// StressReport is the result of a stress run.
type StressReport struct {
	Workload  workload.Result `json:"workload"`
	Stats     slam.Stats      `json:"stats"`
	FreeNodes int             `json:"free_nodes"`
	HeapSize  uint64          `json:"heap_size"`
	Snapshot  string          `json:"snapshot,omitempty"`
}

func runStress(ctx context.Context) error {
	heap, err := parseSize(stressHeap)
	if err != nil {
		return err
	}
	maxSize, err := parseSize(stressMaxSize)
	if err != nil {
		return err
	}

	src := cpu.Current()
	if stressCPUs > 0 {
		src = cpu.NewRoundRobin(stressCPUs)
	}
	opts := []slam.Option{slam.WithCPUSource(src)}
	if stressHistory > 0 {
		opts = append(opts, slam.WithFreeHistory(stressHistory))
	}

	a, err := slam.NewStatic(heap, opts...)
	if err != nil {
		return fmt.Errorf("failed to create allocator: %w", err)
	}
	defer a.Close()

	cfg := workload.Config{
		Workers: stressWorkers,
		Ops:     stressOps,
		MaxSize: int(maxSize),
		MaxLive: stressMaxLive,
		Seed:    stressSeed,
	}
	printVerbose("Running %d workers x %d ops, sizes < %s, heap %s\n",
		cfg.Workers, cfg.Ops, formatBytes(maxSize), formatBytes(a.Region().Size()))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := workload.Run(ctx, a, cfg)
	if err != nil {
		return fmt.Errorf("stress failed after %s allocations: %w", formatNumber(res.Allocs), err)
	}

	lists, err := a.Verify()
	if err != nil {
		return fmt.Errorf("free list verification failed: %w", err)
	}

	report := StressReport{
		Workload: res,
		Stats:    a.Stats(),
		HeapSize: a.Region().Size(),
	}
	for class := range slam.NumClasses {
		report.FreeNodes += lists.Total(class)
	}

	if stressSnapshot != "" {
		if err := writeSnapshot(a, stressSnapshot); err != nil {
			return err
		}
		report.Snapshot = stressSnapshot
	}

	if jsonOut {
		return printJSON(report)
	}
	printStressReport(report)
	return nil
}

func writeSnapshot(a *slam.Allocator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := a.Region().WriteSnapshot(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return f.Close()
}

func printStressReport(r StressReport) {
	w := r.Workload
	printInfo("\nStress Results:\n")
	printInfo("  Allocations: %s (%s bytes requested)\n", formatNumber(w.Allocs), formatNumber(w.Bytes))
	printInfo("  Frees: %s\n", formatNumber(w.Frees))
	printInfo("  Duration: %s\n", w.Duration)
	if secs := w.Duration.Seconds(); secs > 0 {
		printInfo("  Throughput: %s ops/s\n", formatNumber(uint64(float64(w.Allocs+w.Frees)/secs)))
	}

	s := r.Stats
	printInfo("\nHeap:\n")
	printInfo("  Region: %s\n", formatBytes(r.HeapSize))
	printInfo("  Slabs: %s (%s)\n", formatNumber(s.Slabs), formatBytes(s.SlabBytes))
	printInfo("  Free objects on lists: %s\n", formatNumber(uint64(r.FreeNodes)))
	if r.Snapshot != "" {
		printInfo("  Snapshot: %s\n", r.Snapshot)
	}

	if len(s.Classes) > 0 {
		printInfo("\nBy Class:\n")
		for _, c := range s.Classes {
			printInfo("  class %2d (%s): %s slabs, %s allocs, %s frees, %s CAS retries\n",
				c.Class, formatBytes(c.ObjectSize), formatNumber(c.Slabs),
				formatNumber(c.Allocs), formatNumber(c.Frees), formatNumber(c.CASRetries))
		}
	}
}
