package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/output"
)

func newIngestCmd() *cobra.Command {
	var embedderProvider string
	var embedderModel string
	var buildIndex bool

	cmd := &cobra.Command{
		Use:   "ingest <manifest-dir>",
		Short: "Bulk-load a directory of tool manifests into the vector index",
		Long: `ingest walks manifest-dir for .yaml/.yml tool manifests, embeds each
one's name and description, and upserts it into the vector store. Run
this once before 'toolctl serve', or periodically for directories not
covered by --manifest-dir watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], embedderProvider, embedderModel, buildIndex)
		},
	}

	cmd.Flags().StringVar(&embedderProvider, "embedder", "", "Embedder backend: ollama, static, mlx")
	cmd.Flags().StringVar(&embedderModel, "embedder-model", "", "Embedding model name")
	cmd.Flags().BoolVar(&buildIndex, "build-index", true, "Rebuild the IVF-PQ index after ingesting")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, dir, embedderProvider, embedderModel string, buildIndex bool) error {
	application, err := buildApp(ctx, embedderProvider, embedderModel)
	if err != nil {
		return err
	}
	defer application.Close()

	out := output.NewAuto(cmd.OutOrStdout())
	sink := manifestSink{app: application}

	count := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		record, ok, err := manifestLoader(path)
		if err != nil {
			out.Warningf("skipping %s: %v", path, err)
			return nil
		}
		if !ok {
			return nil
		}
		if err := sink.Upsert(ctx, record); err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	out.Successf("ingested %d tool manifests from %s", count, dir)

	if buildIndex {
		cfg, err := application.manager.BuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		out.Successf("rebuilt IVF-PQ index: %d partitions, %d sub-vectors", cfg.NumPartitions, cfg.NumSubVectors)
	}

	return nil
}
