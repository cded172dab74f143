// Package retrieval implements the HybridRetrievalEngine: end-to-end
// query execution fanning out over vector, keyword, semantic, and tag
// search, fusing results, and gating the payload through progressive
// disclosure.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suntianc/toolcore/internal/disclosure"
	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/scoring"
	"github.com/suntianc/toolcore/internal/tagmatch"
	"github.com/suntianc/toolcore/internal/toolerrors"
)

// VectorSearcher is the injected dense-search capability. It also backs
// the "semantic" method, which is the same candidates re-labeled with
// separate rank/score accounting.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, minScore float64) ([]model.RetrievalResult, error)
}

// Config configures an Engine.
type Config struct {
	Weights               scoring.Weights
	RRFConstant           int
	MinScore              float64
	MaxResults            int
	EnableTagMatching     bool
	EnableKeywordMatching bool
	EnableSemanticMatching bool
	CacheTTL              time.Duration
	DisclosureDefault     model.DisclosureLevel
}

// DefaultConfig returns the documented retrieval defaults.
func DefaultConfig() Config {
	return Config{
		Weights:                scoring.DefaultWeights(),
		RRFConstant:            scoring.DefaultRRFConstant,
		MinScore:               0.1,
		MaxResults:             10,
		EnableTagMatching:      true,
		EnableKeywordMatching:  true,
		EnableSemanticMatching: true,
		CacheTTL:               300 * time.Second,
		DisclosureDefault:      model.LevelMetadata,
	}
}

// Options configures a single query.
type Options struct {
	Tags          []string
	Limit         int
	MinScore      *float64
	ForceLevel    *model.DisclosureLevel
	UseCache      *bool
	MaxTokens     int
	Explain       bool
}

// Metrics records per-query component timings and cache outcome.
type Metrics struct {
	CacheHit       bool
	VectorElapsed  time.Duration
	KeywordElapsed time.Duration
	SemanticElapsed time.Duration
	TagElapsed     time.Duration
	FusionElapsed  time.Duration
	TotalElapsed   time.Duration
}

// aggregateStats accumulates cumulative counters across queries, the
// supplement to per-query Metrics described in SPEC_FULL.md.
type aggregateStats struct {
	mu          sync.Mutex
	queryCount  int64
	cacheHits   int64
	totalVector time.Duration
	totalFusion time.Duration
}

func (s *aggregateStats) record(m Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCount++
	if m.CacheHit {
		s.cacheHits++
	}
	s.totalVector += m.VectorElapsed
	s.totalFusion += m.FusionElapsed
}

// Stats is the cumulative engine statistics snapshot.
type Stats struct {
	QueryCount      int64
	CacheHitRate    float64
	AvgVectorElapsed time.Duration
}

// Engine is the HybridRetrievalEngine.
type Engine struct {
	cfg        Config
	vector     VectorSearcher
	enumerate  Enumerator
	tagMatcher *tagmatch.Engine
	disclosure *disclosure.Manager
	queryCache *QueryCache
	logger     *slog.Logger
	stats      aggregateStats
}

// New constructs an Engine.
func New(cfg Config, vector VectorSearcher, enumerate Enumerator, tagMatcher *tagmatch.Engine, disc *disclosure.Manager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		vector:     vector,
		enumerate:  enumerate,
		tagMatcher: tagMatcher,
		disclosure: disc,
		queryCache: NewQueryCache(cfg.CacheTTL),
		logger:     logger,
	}
}

// Search executes a hybrid search query without disclosure (single fixed
// METADATA-level payload by default).
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]model.UnifiedResult, Metrics, error) {
	return e.search(ctx, query, opts, false)
}

// SearchWithCache is Search with the query-result cache explicitly
// consulted (the default behavior unless opts.UseCache is false).
func (e *Engine) SearchWithCache(ctx context.Context, query string, opts Options) ([]model.UnifiedResult, Metrics, error) {
	return e.search(ctx, query, opts, false)
}

// SearchWithDisclosure executes a hybrid search and applies the
// per-result disclosure decision (score + max_tokens gated); when
// opts.ForceLevel is set, every result is disclosed at that level instead.
func (e *Engine) SearchWithDisclosure(ctx context.Context, query string, opts Options) ([]model.UnifiedResult, Metrics, error) {
	return e.search(ctx, query, opts, true)
}

func (e *Engine) search(ctx context.Context, query string, opts Options, withDisclosure bool) ([]model.UnifiedResult, Metrics, error) {
	start := time.Now()
	var metrics Metrics

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, metrics, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}
	minScore := e.cfg.MinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}

	useCache := opts.UseCache == nil || *opts.UseCache
	levelKey := ""
	if opts.ForceLevel != nil {
		levelKey = string(*opts.ForceLevel)
	}
	cacheKey := Key(query, opts.Tags, limit, levelKey, minScore, opts.ForceLevel != nil)

	if useCache {
		if cached, ok := e.queryCache.Get(cacheKey); ok {
			metrics.CacheHit = true
			metrics.TotalElapsed = time.Since(start)
			e.stats.record(metrics)
			return cached, metrics, nil
		}
	}

	vector, keyword, semantic, tag, err := e.parallelRetrieve(ctx, query, opts, limit, minScore, &metrics)
	if err != nil {
		return nil, metrics, err
	}

	fuseStart := time.Now()
	fusionEngine := scoring.New(scoring.Config{
		Weights:     e.cfg.Weights,
		RRFConstant: e.cfg.RRFConstant,
		MinScore:    minScore,
		Limit:       limit,
	})
	fused := fusionEngine.Fuse(vector, keyword, semantic, tag)
	metrics.FusionElapsed = time.Since(fuseStart)

	if ctx.Err() != nil {
		// Cancelled mid-fusion: do not write any cache entry.
		return nil, metrics, ctx.Err()
	}

	results := make([]model.UnifiedResult, 0, len(fused.Results))
	for _, r := range fused.Results {
		if r.UnifiedScore >= minScore {
			results = append(results, r)
		}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if e.disclosure != nil {
		if withDisclosure {
			for i := range results {
				_, decision, derr := e.disclosure.GetDisclosure(&results[i], results[i].UnifiedScore, opts.MaxTokens)
				if derr != nil {
					return nil, metrics, toolerrors.Wrap(toolerrors.KindDisclosure, "search.disclosure", derr)
				}
				level := decision.Level
				if opts.ForceLevel != nil {
					level = *opts.ForceLevel
				}
				content, cerr := e.disclosure.GetDisclosureContent(&results[i], level)
				if cerr != nil {
					return nil, metrics, toolerrors.Wrap(toolerrors.KindDisclosure, "search.disclosure", cerr)
				}
				results[i].Disclosure = content
			}
		} else {
			level := e.cfg.DisclosureDefault
			if opts.ForceLevel != nil {
				level = *opts.ForceLevel
			}
			var derr error
			results, derr = e.disclosure.ApplyDisclosure(results, level)
			if derr != nil {
				return nil, metrics, toolerrors.Wrap(toolerrors.KindDisclosure, "search.disclosure", derr)
			}
		}
	}

	if ctx.Err() != nil {
		return nil, metrics, ctx.Err()
	}

	if useCache {
		e.queryCache.Set(cacheKey, results, e.cfg.CacheTTL)
	}

	metrics.TotalElapsed = time.Since(start)
	e.stats.record(metrics)
	return results, metrics, nil
}

// parallelRetrieve fans out vector, keyword, and semantic search
// concurrently via errgroup; tag search runs iff query tags were
// supplied and tag matching is enabled. Per-method failures are logged
// and yield an empty list rather than failing the whole query.
func (e *Engine) parallelRetrieve(ctx context.Context, query string, opts Options, limit int, minScore float64, metrics *Metrics) (vector, keyword, semantic, tag []model.RetrievalResult, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t0 := time.Now()
		results, searchErr := e.vector.Search(gctx, query, limit, minScore)
		metrics.VectorElapsed = time.Since(t0)
		if searchErr != nil {
			e.logger.Warn("vector search failed", slog.Any("err", searchErr))
			return nil
		}
		for i := range results {
			results[i].Method = model.MethodVector
		}
		vector = results
		return nil
	})

	if e.cfg.EnableKeywordMatching {
		g.Go(func() error {
			t0 := time.Now()
			results, searchErr := keywordSearch(query, limit, e.enumerate)
			metrics.KeywordElapsed = time.Since(t0)
			if searchErr != nil {
				e.logger.Warn("keyword search failed", slog.Any("err", searchErr))
				return nil
			}
			keyword = results
			return nil
		})
	}

	if e.cfg.EnableSemanticMatching {
		g.Go(func() error {
			t0 := time.Now()
			results, searchErr := e.vector.Search(gctx, query, limit, minScore)
			metrics.SemanticElapsed = time.Since(t0)
			if searchErr != nil {
				e.logger.Warn("semantic search failed", slog.Any("err", searchErr))
				return nil
			}
			for i := range results {
				results[i].Method = model.MethodSemantic
			}
			semantic = results
			return nil
		})
	}

	if e.cfg.EnableTagMatching && len(opts.Tags) > 0 && e.tagMatcher != nil {
		g.Go(func() error {
			t0 := time.Now()
			results, searchErr := e.tagSearch(gctx, opts.Tags, limit)
			metrics.TagElapsed = time.Since(t0)
			if searchErr != nil {
				e.logger.Warn("tag search failed", slog.Any("err", searchErr))
				return nil
			}
			tag = results
			return nil
		})
	}

	// Per the fan-out contract, goroutines never return a non-nil error
	// themselves (failures are swallowed and logged); g.Wait() therefore
	// only ever surfaces context cancellation.
	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, nil, nil, waitErr
	}
	return vector, keyword, semantic, tag, nil
}

// tagSearch requests 2×limit candidates at min_score=0.1 from the vector
// search, then invokes the tag matcher and keeps only matched candidates.
func (e *Engine) tagSearch(ctx context.Context, queryTags []string, limit int) ([]model.RetrievalResult, error) {
	candidates, err := e.vector.Search(ctx, strings.Join(queryTags, " "), limit*2, 0.1)
	if err != nil {
		return nil, err
	}

	tmCandidates := make([]tagmatch.Candidate, 0, len(candidates))
	byID := make(map[string]model.RetrievalResult, len(candidates))
	for _, c := range candidates {
		tmCandidates = append(tmCandidates, tagmatch.Candidate{ID: c.ID, Tags: c.Tags})
		byID[c.ID] = c
	}

	matches := e.tagMatcher.MatchTags(queryTags, tmCandidates)

	out := make([]model.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		if !m.Matched || m.Score < 0.1 {
			continue
		}
		base := byID[m.ToolID]
		base.Score = m.Score
		base.Method = model.MethodTag
		out = append(out, base)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetMetrics returns the engine's cumulative statistics.
func (e *Engine) GetMetrics() Stats {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	s := Stats{QueryCount: e.stats.queryCount}
	if e.stats.queryCount > 0 {
		s.CacheHitRate = float64(e.stats.cacheHits) / float64(e.stats.queryCount)
		s.AvgVectorElapsed = e.stats.totalVector / time.Duration(e.stats.queryCount)
	}
	return s
}

// ClearCache empties the query-result cache.
func (e *Engine) ClearCache() {
	e.queryCache.Clear()
}

// Dispose releases the disclosure manager's cache sweeper.
func (e *Engine) Dispose() {
	if e.disclosure != nil {
		e.disclosure.Dispose()
	}
}
