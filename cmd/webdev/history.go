package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/webdev/pkg/cli"
	"mercator-hq/webdev/pkg/history"
)

var historyFlags struct {
	limit  int
	output string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent builds",
	Long: `List recent builds from the history database, newest first.

Examples:
  # Last 20 builds as a table
  webdev history

  # Everything as CSV
  webdev history --limit 0 --output csv`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "number of builds to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.output)
	if err != nil {
		return cli.NewConfigError("--output", err.Error())
	}
	if historyFlags.limit < 0 {
		return cli.NewConfigError("--limit", "must not be negative")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return cli.NewConfigError("history.enabled", "build history is disabled")
	}

	store, err := history.Open(history.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.History.Path,
		BusyTimeout: cfg.History.BusyTimeout,
	})
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	records, err := store.List(ctx, historyFlags.limit)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	var data interface{} = recordTable(records)
	if format == cli.FormatJSON {
		if records == nil {
			records = []history.Record{}
		}
		data = records
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

// recordTable renders build records as rows.
type recordTable []history.Record

func (t recordTable) Header() []string {
	return []string{"JOB", "STATE", "STARTED", "DURATION", "EXIT", "PUBLISHED", "REVISION", "ERROR"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.JobID,
			r.State,
			r.StartedAt.Local().Format(time.DateTime),
			formatDuration(r.Duration()),
			strconv.Itoa(r.ExitCode),
			publishedColumn(r),
			r.Revision,
			firstNonEmpty(r.Error, r.PublishError),
		})
	}
	return rows
}

func publishedColumn(r history.Record) string {
	switch {
	case r.Published:
		return "yes"
	case r.PublishError != "":
		return "failed"
	default:
		return "no"
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
