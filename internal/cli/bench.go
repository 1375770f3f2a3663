package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wolvever/httpx-transport-go/internal/bench"
	"github.com/wolvever/httpx-transport-go/internal/config"
	"github.com/wolvever/httpx-transport-go/internal/stats"
	"github.com/wolvever/httpx-transport-go/internal/tui"
	"github.com/wolvever/httpx-transport-go/pkg/transport"
)

var (
	benchConfigPath  string
	benchRequests    int
	benchConcurrency int
	benchMethod      string
	benchRate        float64
	benchStream      bool
	benchLive        bool
	benchInsecure    bool
)

var benchCmd = &cobra.Command{
	Use:   "bench <url>",
	Short: "Run a fixed-count concurrent benchmark",
	Long: `Run a fixed number of requests through the transport with bounded
concurrency and report latency percentiles.

Example:
  httpxgo bench -n 1000 -w 50 http://localhost:8080/
  httpxgo bench -n 1000 --stream --live http://localhost:8080/chunks`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVarP(&benchConfigPath, "config", "c", "", "Path to configuration file")
	benchCmd.Flags().IntVarP(&benchRequests, "requests", "n", 100, "Total number of requests")
	benchCmd.Flags().IntVarP(&benchConcurrency, "workers", "w", 10, "Concurrent workers")
	benchCmd.Flags().StringVarP(&benchMethod, "method", "X", "GET", "HTTP method")
	benchCmd.Flags().Float64Var(&benchRate, "rate", 0, "Request rate cap per second (0 = unlimited)")
	benchCmd.Flags().BoolVar(&benchStream, "stream", false, "Consume bodies through the streaming bridge")
	benchCmd.Flags().BoolVar(&benchLive, "live", false, "Show a live dashboard")
	benchCmd.Flags().BoolVarP(&benchInsecure, "insecure", "k", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(benchConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if benchInsecure {
		cfg.Pool.TLSInsecure = true
	}

	t, err := transport.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	defer t.Close()

	runner := bench.New(t, bench.Options{
		URL:         args[0],
		Method:      benchMethod,
		Requests:    benchRequests,
		Concurrency: benchConcurrency,
		Rate:        benchRate,
		Stream:      benchStream,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if benchLive {
		return runBenchLive(ctx, runner, args[0])
	}

	fmt.Printf("⌖ httpxgo bench: %d requests, %d workers → %s\n\n",
		benchRequests, benchConcurrency, args[0])

	snap := runner.Run(ctx)
	printReport(snap)
	return nil
}

func runBenchLive(ctx context.Context, runner *bench.Runner, target string) error {
	p := tea.NewProgram(tui.NewBenchModel(target, benchRequests))

	runner.OnSnapshot = func(s stats.Snapshot) {
		p.Send(tui.SnapshotMsg(s))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		snap := runner.Run(ctx)
		p.Send(tui.DoneMsg(snap))
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()
	return nil
}

func printReport(s stats.Snapshot) {
	fmt.Printf("  Requests:   %d (%d errors, %.1f%%)\n", s.Total, s.Errors, s.ErrorRate())
	fmt.Printf("  Elapsed:    %s (%.1f req/s)\n", s.Elapsed.Round(1e6), s.RPS)
	fmt.Printf("  Bytes read: %d\n", s.BytesRead)
	fmt.Println()
	fmt.Printf("  Latency  p50: %s  p95: %s  p99: %s  max: %s\n",
		s.P50, s.P95, s.P99, s.Max)
}
