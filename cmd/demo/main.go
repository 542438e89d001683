// ============================================================================
// Breakwater Demo - Main Entry Point
// ============================================================================
//
// File: cmd/demo/main.go
// Purpose: Demonstration binary exercising the runner end to end
//
// Usage:
//   ./breakwater-demo --help            # Show help
//   ./breakwater-demo --version         # Show version
//   ./breakwater-demo run               # Run the scripted workload
//   ./breakwater-demo run -c demo.yaml  # Run with a config file
//   ./breakwater-demo bench -n 2000     # Hammer one command, print stats
//
// The run subcommand registers a few sample commands, pushes a workload
// through them, prints the outcome and throughput stats, and shuts the
// runtime down. The bench subcommand drives a single no-op command from
// several goroutines and reports the pool's rolling throughput counter.
// With metrics enabled in the config, a Prometheus endpoint is served on
// /metrics while the workload runs.
//
// ============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	breakwater "github.com/ChuLiYu/breakwater"
	"github.com/ChuLiYu/breakwater/command"
	"github.com/ChuLiYu/breakwater/config"
	"github.com/ChuLiYu/breakwater/eventbus"
	"github.com/ChuLiYu/breakwater/internal/metrics"
	"github.com/ChuLiYu/breakwater/pkg/types"
)

// Build-time version injection via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := buildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildCLI builds the cobra command tree.
func buildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "breakwater-demo",
		Short: "Breakwater task runner demo",
		Long:  "Exercises commands, pools, fallbacks and telemetry end to end.",
	}

	var configPath string
	var taskCount int
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scripted demo workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(configPath, taskCount)
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	runCmd.Flags().IntVarP(&taskCount, "tasks", "n", 50, "number of tasks to run")

	var benchConfig string
	var benchCount, benchWorkers int
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the runner with a no-op command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(benchConfig, benchCount, benchWorkers)
		},
	}
	benchCmd.Flags().StringVarP(&benchConfig, "config", "c", "", "path to YAML config")
	benchCmd.Flags().IntVarP(&benchCount, "tasks", "n", 2000, "number of tasks to run")
	benchCmd.Flags().IntVarP(&benchWorkers, "callers", "w", 8, "number of calling goroutines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	return rootCmd
}

// runBench hammers a single command from several callers and reports the
// pool's rolling throughput counter.
func runBench(configPath string, taskCount, callers int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// The default limits are sized for fault isolation, not benchmarks.
	if configPath == "" {
		cfg.Pools[0].MaxQueueSize = 1024
		cfg.Pools[0].MaxPoolSize = 32
	}
	cfg.Apply()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	rt := breakwater.New()
	defer rt.Shutdown(true)

	noop := command.MustRegister(command.Command[int, int]{
		Name: "Noop",
		Run: func(ctx context.Context, v int) (int, error) {
			return v, nil
		},
	})

	if callers < 1 {
		callers = 1
	}
	var wg sync.WaitGroup
	var failures atomic.Int64
	start := time.Now()
	for w := 0; w < callers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < taskCount; i += callers {
				if _, err := noop.New(i).Result(context.Background()); err != nil {
					failures.Inc()
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("Ran %d tasks from %d callers in %v (%d failed)\n",
		taskCount, callers, elapsed.Round(time.Millisecond), failures.Load())
	fmt.Printf("Overall: %.0f tasks/s\n", float64(taskCount)/elapsed.Seconds())

	grp := command.NewGroup("default")
	if p, err := grp.GetExecutor("default"); err == nil {
		snap := p.Throughput()
		fmt.Printf("Pool window: sum=%d rate=%.1f/s min=%.1f/s max=%.1f/s median=%.1f stdev=%.1f\n",
			snap.Sum(), snap.Rate(), snap.RateMin(), snap.RateMax(),
			snap.Median(0.5), snap.Stdev())
	}
	return nil
}

// runDemo registers the sample commands, pushes the workload and reports.
func runDemo(configPath string, taskCount int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Apply()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	rt := breakwater.New()
	defer rt.Shutdown(true)

	// Count delivered lifecycle events while the workload runs.
	eventCounts := make(chan string, 4096)
	rt.Sink(func(event types.Event) error {
		select {
		case eventCounts <- event.Name():
		default:
		}
		return nil
	})

	divide := command.MustRegister(command.Command[float64, float64]{
		Name: "Divide",
		Run: func(ctx context.Context, v float64) (float64, error) {
			if v == 0 {
				return 0, errors.New("division by zero")
			}
			return 10 / v, nil
		},
		Fallback: func(ctx context.Context, v float64) (float64, error) {
			return 0, nil
		},
	})

	flaky := command.MustRegister(command.Command[int, int]{
		Name: "Flaky",
		Run: func(ctx context.Context, n int) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(rand.Intn(20)) * time.Millisecond):
			}
			if n%7 == 0 {
				return 0, fmt.Errorf("task %d hit the simulated failure", n)
			}
			return n * 2, nil
		},
		Fallback: func(ctx context.Context, n int) (int, error) {
			return -n, nil
		},
	})

	start := time.Now()
	succeeded, fellBack := 0, 0
	for i := 0; i < taskCount; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		task := flaky.New(i)
		if _, err := task.Result(ctx); err != nil {
			slog.Error("task failed without fallback", "task", task.ID(), "error", err)
		} else if task.IsFallback() {
			fellBack++
		} else {
			succeeded++
		}
		cancel()
	}

	if v, err := divide.New(2).Result(context.Background()); err == nil {
		fmt.Printf("Divide(2) = %v\n", v)
	}
	if v, err := divide.New(0).Result(context.Background()); err == nil {
		fmt.Printf("Divide(0) = %v (fallback)\n", v)
	}

	fmt.Printf("Ran %d tasks in %v: %d succeeded, %d fell back\n",
		taskCount, time.Since(start).Round(time.Millisecond), succeeded, fellBack)

	grp := command.NewGroup("default")
	if p, err := grp.GetExecutor("default"); err == nil {
		snap := p.Throughput()
		fmt.Printf("Pool throughput: sum=%d rate=%.1f/s max=%.1f/s median=%.1f\n",
			snap.Sum(), snap.Rate(), snap.RateMax(), snap.Median(0.5))
	}

	// Give the bus a beat, then summarize delivered events.
	eventbus.Emit("demo.done", nil)
	time.Sleep(50 * time.Millisecond)
	counts := map[string]int{}
	for {
		select {
		case name := <-eventCounts:
			counts[name]++
			continue
		default:
		}
		break
	}
	fmt.Printf("Events delivered: %v\n", counts)
	return nil
}
