package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or rebuild the vector index",
	}

	cmd.AddCommand(newIndexInfoCmd())
	cmd.AddCommand(newIndexBuildCmd())

	return cmd
}

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool
	var embedderProvider string
	var embedderModel string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index configuration and statistics",
		Long: `Display the row count, embedding dimension, and IVF-PQ index
configuration of the local vector store. Useful for debugging
dimension-mismatch errors and verifying a rebuild took effect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexInfo(cmd.Context(), cmd, embedderProvider, embedderModel, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&embedderProvider, "embedder", "", "Embedder backend: ollama, static, mlx")
	cmd.Flags().StringVar(&embedderModel, "embedder-model", "", "Embedding model name")

	return cmd
}

func runIndexInfo(ctx context.Context, cmd *cobra.Command, embedderProvider, embedderModel string, jsonOutput bool) error {
	application, err := buildApp(ctx, embedderProvider, embedderModel)
	if err != nil {
		return err
	}
	defer application.Close()

	info, err := application.manager.Info(ctx)
	if err != nil {
		return fmt.Errorf("read index info: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	out.Statusf("", "rows:              %d", info.RowCount)
	out.Statusf("", "configured dim:    %d", info.ConfiguredDim)
	out.Statusf("", "actual dim:        %d", info.ActualDim)
	if info.DimensionMatch {
		out.Success("dimension matches configured embedder")
	} else {
		out.Warning("dimension mismatch — reindex with the current embedder, or the table will be recreated on next open")
	}
	out.Statusf("", "ivf-pq partitions: %d", info.IVFPQ.NumPartitions)
	out.Statusf("", "ivf-pq subvectors: %d", info.IVFPQ.NumSubVectors)
	out.Statusf("", "estimated recall:  %.3f", info.IVFPQ.EstimatedRecall)

	return nil
}

func newIndexBuildCmd() *cobra.Command {
	var embedderProvider string
	var embedderModel string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the IVF-PQ index against the current row count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexBuild(cmd.Context(), cmd, embedderProvider, embedderModel)
		},
	}

	cmd.Flags().StringVar(&embedderProvider, "embedder", "", "Embedder backend: ollama, static, mlx")
	cmd.Flags().StringVar(&embedderModel, "embedder-model", "", "Embedding model name")

	return cmd
}

func runIndexBuild(ctx context.Context, cmd *cobra.Command, embedderProvider, embedderModel string) error {
	application, err := buildApp(ctx, embedderProvider, embedderModel)
	if err != nil {
		return err
	}
	defer application.Close()

	cfg, err := application.manager.BuildIndex(ctx)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	out.Successf("rebuilt IVF-PQ index: %d partitions, %d sub-vectors, estimated recall %.3f",
		cfg.NumPartitions, cfg.NumSubVectors, cfg.EstimatedRecall)
	return nil
}
