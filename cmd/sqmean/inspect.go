package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/codefionn/sqmean/internal/aggregate"
	"github.com/codefionn/sqmean/internal/dump"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	inspectJSON    bool
	inspectSummary bool
)

// inspectCmd prints the contents of a snapshot file.
var inspectCmd = &cobra.Command{
	Use:   "inspect [FILE]",
	Short: "Print the entries of a snapshot file",
	Long: `Decode a snapshot written by the server and print its entries in key
order, followed by the number of entries, the mean of squares and the
xxhash64 digest of the file. FILE defaults to the configured dump path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print entries as JSON")
	inspectCmd.Flags().BoolVarP(&inspectSummary, "summary", "s", false, "Omit the entries")
}

type inspectReport struct {
	Path    string            `json:"path"`
	Digest  string            `json:"xxhash64"`
	Entries []aggregate.Entry `json:"entries,omitempty"`
	Count   int               `json:"count"`
	Mean    *float64          `json:"mean,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.DumpPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	entries, err := dump.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	report := inspectReport{
		Path:   path,
		Digest: fmt.Sprintf("%016x", xxhash.Sum64(data)),
		Count:  len(entries),
	}
	if !inspectSummary {
		report.Entries = entries
	}
	if len(entries) > 0 {
		var sum float64
		for _, e := range entries {
			sum += e.Square
		}
		mean := sum / float64(len(entries))
		report.Mean = &mean
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, e := range report.Entries {
		fmt.Fprintf(out, "%d\t%s\n", e.Key, strconv.FormatFloat(e.Square, 'f', -1, 64))
	}
	fmt.Fprintf(out, "%s %s\n", color.CyanString("file:"), report.Path)
	fmt.Fprintf(out, "%s %d\n", color.CyanString("entries:"), report.Count)
	if report.Mean != nil {
		fmt.Fprintf(out, "%s %s\n", color.CyanString("mean:"), strconv.FormatFloat(*report.Mean, 'f', -1, 64))
	}
	fmt.Fprintf(out, "%s %s\n", color.CyanString("xxhash64:"), report.Digest)
	return nil
}
