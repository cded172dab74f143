package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suntianc/toolcore/internal/output"
	"github.com/suntianc/toolcore/internal/retrieval"
)

type searchOptions struct {
	limit            int
	tags             []string
	minScore         float64
	forceLevel       string
	maxTokens        int
	explain          bool
	format           string
	embedderProvider string
	embedderModel    string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot find_tools query against the local index",
		Long: `search runs the same hybrid retrieval the MCP server's find_tools
tool exposes, against the local vector index, without starting a
server. Useful for debugging relevance and disclosure behavior.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "Filter/boost by hierarchical tags (repeatable)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Override the minimum unified score (0 = use config default)")
	cmd.Flags().StringVar(&opts.forceLevel, "level", "", "Force a disclosure level: metadata, content, resources")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Token budget for disclosed content (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show per-method scores")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.embedderProvider, "embedder", "", "Embedder backend: ollama, static, mlx")
	cmd.Flags().StringVar(&opts.embedderModel, "embedder-model", "", "Embedding model name")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	application, err := buildApp(ctx, opts.embedderProvider, opts.embedderModel)
	if err != nil {
		return err
	}
	defer application.Close()

	retOpts := retrieval.Options{
		Tags:      opts.tags,
		Limit:     opts.limit,
		MaxTokens: opts.maxTokens,
		Explain:   opts.explain,
	}
	if opts.minScore > 0 {
		retOpts.MinScore = &opts.minScore
	}
	if opts.forceLevel != "" {
		level := levelFromString(opts.forceLevel)
		retOpts.ForceLevel = &level
	}

	results, metrics, err := application.engine.SearchWithDisclosure(ctx, query, retOpts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"results": results, "metrics": metrics})
	}

	out.Statusf("🔍", "%d results (%s, cache_hit=%v)", len(results), metrics.TotalElapsed, metrics.CacheHit)
	for i, r := range results {
		out.Statusf("", "%d. %s (%s) score=%.3f", i+1, r.Name, r.ID, r.UnifiedScore)
		if r.Description != "" {
			out.Statusf("", "   %s", r.Description)
		}
		if opts.explain {
			for method, ms := range r.Scores {
				out.Statusf("", "   %s: score=%.3f rank=%d rrf=%.5f", method, ms.Score, ms.Rank, ms.RRF)
			}
		}
	}
	return nil
}
