package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/codefionn/sqmean/internal/client"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	clientAddr        string
	clientCount       int
	clientConnections int
	clientSeed        uint64
	clientDisconnect  bool
	clientQuiet       bool
	clientTimeout     time.Duration
)

// clientCmd submits random values over one or more connections.
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send random values to a running server",
	Long: `Open --connections connections and send --count random values in
[0, 1024) on each. Every reply is printed unless --quiet is set. Connection i
uses seed --seed+i, so runs are reproducible.`,
	Args: cobra.NoArgs,
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.Flags().StringVar(&clientAddr, "addr", "", "Server address (default from config)")
	clientCmd.Flags().IntVarP(&clientCount, "count", "n", 10, "Values per connection, 0 sends until interrupted")
	clientCmd.Flags().IntVarP(&clientConnections, "connections", "c", 1, "Number of concurrent connections")
	clientCmd.Flags().Uint64Var(&clientSeed, "seed", 0, "Seed for the first connection (default random)")
	clientCmd.Flags().BoolVar(&clientDisconnect, "disconnect", true, "Say goodbye after the last value")
	clientCmd.Flags().BoolVarP(&clientQuiet, "quiet", "q", false, "Only print the per-connection summary")
	clientCmd.Flags().DurationVar(&clientTimeout, "timeout", 0, "Per-request timeout (default from client defaults)")
}

func runClient(cmd *cobra.Command, args []string) error {
	if clientConnections < 1 {
		return fmt.Errorf("--connections must be at least 1, got %d", clientConnections)
	}

	cfg := client.DefaultConfig()
	if clientAddr != "" {
		cfg.Addr = clientAddr
	} else {
		sc, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Addr = sc.Addr()
	}
	if clientTimeout > 0 {
		cfg.RequestTimeout = clientTimeout
	}

	seed := clientSeed
	if !cmd.Flags().Changed("seed") {
		seed = uint64(time.Now().UnixNano())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range clientConnections {
		g.Go(func() error {
			opts := client.RunOptions{
				Count:      clientCount,
				Seed:       seed + uint64(i),
				Disconnect: clientDisconnect,
			}
			if !clientQuiet {
				opts.OnReply = func(v int32, metric float64) {
					printf("[%d] num:%d -> ok:%s\n", i, v, strconv.FormatFloat(metric, 'f', -1, 64))
				}
			}

			sum, err := client.Run(gctx, cfg, opts)
			if err != nil {
				return fmt.Errorf("connection %d: %w", i, err)
			}

			status := color.GreenString("done")
			if sum.Stopped {
				status = color.YellowString("stopped by server")
			}
			printf("[%d] %s: sent %d, last mean %s\n", i, status, sum.Sent, strconv.FormatFloat(sum.Last, 'f', -1, 64))
			return nil
		})
	}
	return g.Wait()
}
