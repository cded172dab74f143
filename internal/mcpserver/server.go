// Package mcpserver exposes the HybridRetrievalEngine as a single
// find_tools tool over the Model Context Protocol, the external
// collaborator boundary AI clients (Claude Code, Cursor) call through.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/retrieval"
)

// version is set via ldflags at build time; defaults to dev.
var version = "dev"

// Server is the MCP server fronting the retrieval engine.
type Server struct {
	mcp    *mcp.Server
	engine *retrieval.Engine
	logger *slog.Logger
}

// FindToolsInput defines the input schema for the find_tools tool.
type FindToolsInput struct {
	Query      string   `json:"query" jsonschema:"the natural-language query describing the capability needed"`
	Tags       []string `json:"tags,omitempty" jsonschema:"hierarchical tag filters, e.g. category:data, tag:csv"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	MinScore   float64  `json:"min_score,omitempty" jsonschema:"minimum unified score to include a result"`
	ForceLevel string   `json:"force_level,omitempty" jsonschema:"force a disclosure level: metadata, content, or resources"`
	MaxTokens  int      `json:"max_tokens,omitempty" jsonschema:"token budget gating disclosure depth"`
	Explain    bool     `json:"explain,omitempty" jsonschema:"include per-method scores for debugging"`
}

// FindToolsOutput defines the output schema for the find_tools tool.
type FindToolsOutput struct {
	Results []ToolResult `json:"results" jsonschema:"ranked tool matches"`
}

// ToolResult is a single ranked, disclosure-gated tool match.
type ToolResult struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	Description   string                    `json:"description"`
	UnifiedScore  float64                   `json:"unified_score"`
	DisclosureLvl string                    `json:"disclosure_level,omitempty"`
	Tags          []string                  `json:"tags,omitempty"`
	ToolType      model.ToolType            `json:"tool_type,omitempty"`
	Scores        map[string]float64        `json:"scores,omitempty"`
	Content       *model.DisclosureContent  `json:"content,omitempty"`
}

// New constructs a Server wrapping engine.
func New(engine *retrieval.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "toolcore",
			Version: version,
		},
		nil,
	)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_tools",
		Description: "Finds the tools and skills most relevant to a natural-language task description, using hybrid dense/keyword/semantic/tag retrieval with progressive disclosure of detail.",
	}, s.findToolsHandler)

	return s, nil
}

// MCPServer returns the underlying go-sdk server, for transport wiring.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve starts the server over the given transport ("stdio" is the only
// one implemented today).
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.logger.Debug("starting MCP stdio transport")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func (s *Server) findToolsHandler(ctx context.Context, _ *mcp.CallToolRequest, input FindToolsInput) (
	*mcp.CallToolResult,
	FindToolsOutput,
	error,
) {
	if input.Query == "" {
		return nil, FindToolsOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := retrieval.Options{
		Tags:      input.Tags,
		Limit:     input.Limit,
		MaxTokens: input.MaxTokens,
		Explain:   input.Explain,
	}
	if input.MinScore > 0 {
		opts.MinScore = &input.MinScore
	}
	if input.ForceLevel != "" {
		level := model.DisclosureLevel(strings.ToUpper(input.ForceLevel))
		opts.ForceLevel = &level
	}

	start := time.Now()
	results, metrics, err := s.engine.SearchWithDisclosure(ctx, input.Query, opts)
	if err != nil {
		s.logger.Warn("find_tools failed", slog.String("query", input.Query), slog.Duration("elapsed", time.Since(start)), slog.Any("err", err))
		return nil, FindToolsOutput{}, MapError(err)
	}

	s.logger.Info("find_tools completed",
		slog.String("query", input.Query),
		slog.Int("results", len(results)),
		slog.Bool("cache_hit", metrics.CacheHit),
		slog.Duration("elapsed", metrics.TotalElapsed))

	out := FindToolsOutput{Results: make([]ToolResult, 0, len(results))}
	for _, r := range results {
		tr := ToolResult{
			ID:           r.ID,
			Name:         r.Name,
			Description:  r.Description,
			UnifiedScore: r.UnifiedScore,
			Tags:         r.Tags,
			ToolType:     r.ToolType,
			Content:      r.Disclosure,
		}
		if r.Disclosure != nil {
			tr.DisclosureLvl = string(r.Disclosure.Level)
		}
		if input.Explain {
			tr.Scores = make(map[string]float64, len(r.Scores))
			for method, ms := range r.Scores {
				tr.Scores[string(method)] = ms.Score
			}
		}
		out.Results = append(out.Results, tr)
	}

	return nil, out, nil
}
