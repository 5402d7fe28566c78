package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/codefionn/sqmean/internal/pidfile"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	stopPIDPath string
	stopWait    time.Duration
)

// stopCmd signals the server recorded in the pid file.
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running server to shut down",
	Long: `Send the shutdown signal to the server recorded in the pid file. With
--wait the command returns once the server has removed its pid file.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
	stopCmd.Flags().StringVar(&stopPIDPath, "pid-path", "", "PID file (default from config)")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "Wait up to this long for the server to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	path := stopPIDPath
	if path == "" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.PIDPath
	}

	pf := pidfile.New(path)
	pid, err := pf.Signal(shutdownSignal)
	if errors.Is(err, pidfile.ErrNotRunning) {
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("No server running"))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %d\n", shutdownSignal, pid)

	if stopWait <= 0 {
		return nil
	}
	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Server stopped"))
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server %d still running after %s", pid, stopWait)
}
