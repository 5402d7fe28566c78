package main

import (
	"fmt"
	"os"

	"github.com/codefionn/sqmean/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logPath    string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sqmean",
	Short: "Mean-of-squares TCP server",
	Long: `sqmean collects integers from many TCP clients and answers each one
with the mean of the squares of all distinct values seen so far.

- serve:   run the server
- client:  submit random values to a running server
- inspect: print the entries of a snapshot file
- stop:    ask a running server to shut down
- config:  print or write the effective configuration

Use 'sqmean help <command>' for more information on a specific command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (JSON, default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "", "Log file (default stderr)")
}

// loadConfig reads the configuration file, then applies the environment and
// the persistent flags, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configFile
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-path") {
		cfg.LogPath = logPath
	}
	return cfg, path, nil
}
