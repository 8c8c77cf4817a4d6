package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"schooldir/pkg/client"
)

type benchStats struct {
	Success     uint64
	Failed      uint64
	Latencies   []time.Duration
	StatusCodes map[int]int
	mu          sync.Mutex
}

func benchCmd() *cobra.Command {
	var (
		total       int
		concurrency int
		query       string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the read endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if total <= 0 || concurrency <= 0 {
				return fmt.Errorf("--requests and --concurrency must be positive")
			}

			pterm.DefaultBigText.WithLetters(
				pterm.NewLettersFromStringWithStyle("SCHOOL", pterm.NewStyle(pterm.FgCyan)),
				pterm.NewLettersFromStringWithStyle("BENCH", pterm.NewStyle(pterm.FgMagenta)),
			).Render()
			pterm.Info.Printf("Target: %s | Workers: %d | Requests: %d\n", apiURL, concurrency, total)

			// memoization, retries and coalescing would hide the server
			c := newClient(client.WithFreshness(0), client.WithRetries(0, 0), client.WithCoalescing(false))
			defer c.Close()

			if _, err := c.Health(cmd.Context()); err != nil {
				return err
			}

			runBenchmark(cmd.Context(), "GET /api/schools", total, concurrency, func(ctx context.Context) error {
				_, err := c.ListSchools(ctx)
				return err
			})
			runBenchmark(cmd.Context(), "GET /api/schools/search", total, concurrency, func(ctx context.Context) error {
				_, err := c.SearchSchools(ctx, query)
				return err
			})
			return nil
		},
	}

	cmd.Flags().IntVarP(&total, "requests", "n", 1000, "Requests per endpoint")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 20, "Concurrent workers")
	cmd.Flags().StringVarP(&query, "query", "q", "a", "Search query")
	return cmd
}

func runBenchmark(ctx context.Context, name string, total, concurrency int, operation func(context.Context) error) {
	bar, _ := pterm.DefaultProgressbar.WithTotal(total).WithTitle(name).WithRemoveWhenDone(true).Start()

	stats := &benchStats{
		StatusCodes: make(map[int]int),
		Latencies:   make([]time.Duration, 0, total),
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			t0 := time.Now()
			code := statusOf(operation(ctx))
			dur := time.Since(t0)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, dur)
			stats.StatusCodes[code]++
			stats.mu.Unlock()

			if code >= 200 && code < 300 {
				atomic.AddUint64(&stats.Success, 1)
			} else {
				atomic.AddUint64(&stats.Failed, 1)
			}

			bar.Increment()
		}()
	}

	wg.Wait()
	pterm.DefaultSection.Println(name)
	printReport(stats, time.Since(start), total)
}

// statusOf maps a client result to an HTTP status; 0 means no response.
func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func printReport(s *benchStats, totalTime time.Duration, totalReq int) {
	if len(s.Latencies) == 0 {
		return
	}

	sort.Slice(s.Latencies, func(i, j int) bool { return s.Latencies[i] < s.Latencies[j] })
	count := len(s.Latencies)

	data := [][]string{
		{"Metric", "Value"},
		{"Throughput", fmt.Sprintf("%.2f Req/sec", float64(totalReq)/totalTime.Seconds())},
		{"Success Rate", fmt.Sprintf("%.2f%%", float64(atomic.LoadUint64(&s.Success))/float64(totalReq)*100)},
		{"P50 Latency", s.Latencies[count/2].String()},
		{"P95 Latency", s.Latencies[int(float64(count)*0.95)].String()},
		{"P99 Latency", s.Latencies[int(float64(count)*0.99)].String()},
	}

	pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if atomic.LoadUint64(&s.Failed) > 0 {
		pterm.Warning.Println("Status Code Breakdown (Errors):")
		for code, cnt := range s.StatusCodes {
			if code >= 400 || code == 0 {
				fmt.Printf("HTTP %d: %d\n", code, cnt)
			}
		}
	}
}
