package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/suntianc/toolcore/internal/config"
	"github.com/suntianc/toolcore/internal/disclosure"
	"github.com/suntianc/toolcore/internal/embed"
	"github.com/suntianc/toolcore/internal/lifecycle"
	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/pool"
	"github.com/suntianc/toolcore/internal/retrieval"
	"github.com/suntianc/toolcore/internal/scoring"
	"github.com/suntianc/toolcore/internal/tagmatch"
	"github.com/suntianc/toolcore/internal/vectorstore"
	"github.com/suntianc/toolcore/internal/vectorstore/lancedb"
)

// app bundles the wired retrieval stack shared by serve/search/ingest/index.
// The vector store handle is fronted by internal/pool even in this
// single-process CLI: one path is all the pool ever holds open here, but
// routing through it means the same TTL/health-check/leak-detection
// machinery that protects multi-path deployments also protects this one,
// rather than only being reachable from a deployment this CLI doesn't run.
type app struct {
	cfg      *config.Config
	pool     *pool.Pool
	manager  *vectorstore.Manager
	embedder embed.Embedder
	registry *toolRegistry
	engine   *retrieval.Engine
}

// toolRegistry is an in-memory mirror of every tool manifest ingested,
// used both as the keyword/tag Enumerator and the disclosure ToolLookup.
type toolRegistry struct {
	byID map[string]model.Tool
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{byID: make(map[string]model.Tool)}
}

func (r *toolRegistry) put(t model.Tool)    { r.byID[t.ID] = t }
func (r *toolRegistry) delete(id string)    { delete(r.byID, id) }
func (r *toolRegistry) enumerate() ([]model.Tool, error) {
	out := make([]model.Tool, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out, nil
}
func (r *toolRegistry) lookup(id string) (*model.Tool, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// buildApp wires the vector store, embedder, and retrieval engine per
// the resolved config. Each subcommand calls this once up front so
// serve/search/ingest/index all share identical wiring.
func buildApp(ctx context.Context, embedderProvider, embedderModel string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Index.StorageRoot == "" {
		root, _ := os.Getwd()
		cfg.Index.StorageRoot = filepath.Join(root, ".toolcore", "index")
	}

	provider := embed.ProviderType(embedderProvider)
	if provider == "" {
		provider = embed.ProviderOllama
	}
	if provider == embed.ProviderOllama {
		mgr := lifecycle.NewOllamaManager()
		running, err := mgr.IsRunning()
		if err == nil && !running {
			slog.Warn("ollama is not running, falling back to static embedder")
			provider = embed.ProviderStatic
		}
	}

	embedder, err := embed.NewEmbedder(ctx, provider, embedderModel)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	driver := lancedb.NewDriver()
	vsCfg := vectorstore.DefaultConfig(cfg.Index.StorageRoot, cfg.Index.TableName, cfg.Index.Dimension)
	vsCfg.TargetRecall = cfg.Index.TargetRecall
	vsCfg.FastMode = cfg.Index.FastMode

	poolCfg := pool.Config{
		MaxInstances:           cfg.Pool.MaxInstances,
		InstanceTTL:            cfg.Pool.InstanceTTL(),
		HealthCheckInterval:    cfg.Pool.HealthCheckInterval(),
		MinIdle:                cfg.Pool.MinIdle,
		LeakDetectionThreshold: cfg.Pool.LeakDetectionThreshold(),
	}
	open := func(ctx context.Context, path string) (any, error) {
		openCfg := vsCfg
		openCfg.StorageRoot = path
		m := vectorstore.NewManager(openCfg, driver, slog.Default())
		if err := m.Open(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
	probe := func(ctx context.Context, conn any) error {
		m, ok := conn.(*vectorstore.Manager)
		if !ok {
			return fmt.Errorf("pool: unexpected connection type %T", conn)
		}
		_, err := m.Count(ctx)
		return err
	}
	connPool := pool.New(poolCfg, open, probe, slog.Default())
	conn, err := connPool.GetConnection(ctx, cfg.Index.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	manager := conn.(*vectorstore.Manager)

	searcher := vectorstore.NewSearcher(manager, embed.NewCachedEmbedderWithDefaults(embedder))
	registry := newToolRegistry()
	tm := tagmatch.New(tagmatch.Config{
		Hierarchy:     cfg.TagMatcher.Hierarchy,
		MinScore:      cfg.TagMatcher.MinScore,
		MaxDepth:      cfg.TagMatcher.MaxDepth,
		EnableAliases: cfg.TagMatcher.EnableAliases,
	})
	disc := disclosure.NewManager(disclosure.ManagerConfig{
		Thresholds:  disclosure.Thresholds{L2: cfg.Disclosure.Thresholds.L2, L3: cfg.Disclosure.Thresholds.L3},
		L1MaxTokens: cfg.Disclosure.L1MaxTokens,
		L2MaxTokens: cfg.Disclosure.L2MaxTokens,
		Cache: disclosure.CacheConfig{
			Enabled:           cfg.Disclosure.Cache.Enabled,
			MaxSize:           cfg.Disclosure.Cache.MaxSize,
			L1TTL:             cfg.Disclosure.Cache.L1TTL(),
			CleanupInterval:   cfg.Disclosure.Cache.CleanupInterval(),
		},
	}, registry.lookup)

	engineCfg := retrieval.Config{
		Weights: scoring.Weights{
			Vector:   cfg.Retrieval.VectorWeight,
			Keyword:  cfg.Retrieval.KeywordWeight,
			Semantic: cfg.Retrieval.SemanticWeight,
			Tag:      cfg.Retrieval.TagWeight,
		},
		RRFConstant:            cfg.Retrieval.RRFK,
		MinScore:               cfg.Retrieval.MinScore,
		MaxResults:             cfg.Retrieval.MaxResults,
		EnableTagMatching:      cfg.Retrieval.EnableTagMatching,
		EnableKeywordMatching:  cfg.Retrieval.EnableKeywordMatching,
		EnableSemanticMatching: cfg.Retrieval.EnableSemanticMatching,
		CacheTTL:               cfg.Retrieval.CacheTTL(),
		DisclosureDefault:      model.LevelMetadata,
	}
	engine := retrieval.New(engineCfg, searcher, registry.enumerate, tm, disc, slog.Default())

	return &app{cfg: cfg, pool: connPool, manager: manager, embedder: embedder, registry: registry, engine: engine}, nil
}

// Close disposes the connection pool, which closes every handle it holds
// (here, just the one vector store connection) and stops its health-check
// sweeper. Safe to call more than once.
func (a *app) Close() error {
	a.pool.Dispose()
	return nil
}
