// Package cmd provides the CLI commands for toolctl.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/logging"
	"github.com/suntianc/toolcore/internal/profiling"
	"github.com/suntianc/toolcore/pkg/version"
)

var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()

	debugMode      bool
	loggingCleanup func()

	configPath string
)

// NewRootCmd creates the root command for the toolctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "toolctl",
		Short:   "Hybrid retrieval core for tool and skill discovery",
		Version: version.Version,
		Long: `toolctl serves find_tools over the Model Context Protocol, backed by a
hybrid dense/keyword/semantic/tag retrieval engine with progressive
disclosure and a pooled, health-checked vector store.

Run 'toolctl serve' to start the MCP server, or 'toolctl search' for a
one-shot local query.`,
	}

	cmd.SetVersionTemplate("toolctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (defaults to built-in config)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.toolcore/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
