package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var n int
	var follow bool
	var level string
	var pattern string
	var file string
	var noColor bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View or follow the server's structured logs",
		Long: `logs reads the retrieval server's JSON log file (written when
'serve --debug' or the debug logging config is active), filtering by
level and pattern, and optionally follows it live like 'tail -f'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd.Context(), cmd, n, follow, level, pattern, file, noColor)
		},
	}

	cmd.Flags().IntVarP(&n, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log file for new entries")
	cmd.Flags().StringVar(&level, "level", "", "Filter by level: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "Filter by regexp pattern against the message")
	cmd.Flags().StringVar(&file, "file", "", "Explicit log file path (default: ~/.toolcore/logs/server.log)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored source labels")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, n int, follow bool, level, pattern, file string, noColor bool) error {
	paths, err := logging.FindLogFileBySource(logging.LogSourceServer, file)
	if err != nil {
		return err
	}

	var re *regexp.Regexp
	if pattern != "" {
		re, err = regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      level,
		Pattern:    re,
		NoColor:    noColor,
		ShowSource: len(paths) > 1,
	}, cmd.OutOrStdout())

	entries, err := viewer.TailMultiple(paths, n)
	if err != nil {
		return fmt.Errorf("tail logs: %w", err)
	}
	viewer.Print(entries)

	if !follow {
		return nil
	}

	ch := make(chan logging.LogEntry, 64)
	done := make(chan error, 1)
	go func() { done <- viewer.FollowMultiple(ctx, paths, ch) }()

	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
