// Package scoring fuses the four per-method ranked lists produced by the
// retrieval engine into one unified, deduplicated, diversity-reranked
// list. Reciprocal Rank Fusion is computed and retained for telemetry but
// the unified score itself is a weighted blend of min-max-normalized
// per-method scores, following the reference engine's RRFFusion shape
// generalized from two methods to four.
package scoring

import (
	"sort"
	"time"

	"github.com/suntianc/toolcore/internal/model"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// Weights configures the relative importance of each retrieval method.
type Weights struct {
	Vector   float64
	Keyword  float64
	Semantic float64
	Tag      float64
}

// DefaultWeights returns the documented defaults.
func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Keyword: 0.3, Semantic: 0.2, Tag: 0.1}
}

func (w Weights) sum() float64 {
	return w.Vector + w.Keyword + w.Semantic + w.Tag
}

func (w Weights) forMethod(m model.Method) float64 {
	switch m {
	case model.MethodVector:
		return w.Vector
	case model.MethodKeyword:
		return w.Keyword
	case model.MethodSemantic:
		return w.Semantic
	case model.MethodTag:
		return w.Tag
	default:
		return 0
	}
}

// Config snapshots the parameters a fusion run used, carried through on
// the FusionResult for telemetry/explain purposes.
type Config struct {
	Weights     Weights
	RRFConstant int
	MinScore    float64
	Limit       int
}

// DefaultConfig returns the documented defaults (rrf_k=60, min_score=0.1).
func DefaultConfig() Config {
	return Config{
		Weights:     DefaultWeights(),
		RRFConstant: DefaultRRFConstant,
		MinScore:    0.1,
		Limit:       10,
	}
}

// FusionResult is the outcome of one Fuse call.
type FusionResult struct {
	Results           []model.UnifiedResult
	Config            Config
	Elapsed           time.Duration
	UnionSize         int
	DeduplicatedCount int
}

// Engine fuses per-method retrieval lists into a unified ranked list.
type Engine struct {
	cfg Config
}

// New constructs a fusion Engine.
func New(cfg Config) *Engine {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	return &Engine{cfg: cfg}
}

type candidate struct {
	id      string
	methods map[model.Method]*model.RetrievalResult
}

// Fuse combines the four ranked lists per spec: union → per-method
// min-max normalization → RRF telemetry → weighted unified score →
// adaptive gap-cut filtering → dedup → diversity rerank.
func (e *Engine) Fuse(vector, keyword, semantic, tag []model.RetrievalResult) *FusionResult {
	start := time.Now()
	lists := map[model.Method][]model.RetrievalResult{
		model.MethodVector:   vector,
		model.MethodKeyword:  keyword,
		model.MethodSemantic: semantic,
		model.MethodTag:      tag,
	}

	// Union of ids, preserving first-seen carry-through metadata.
	order := []string{}
	byID := map[string]*candidate{}
	for _, m := range []model.Method{model.MethodVector, model.MethodKeyword, model.MethodSemantic, model.MethodTag} {
		for i := range lists[m] {
			r := lists[m][i]
			c, ok := byID[r.ID]
			if !ok {
				c = &candidate{id: r.ID, methods: map[model.Method]*model.RetrievalResult{}}
				byID[r.ID] = c
				order = append(order, r.ID)
			}
			rCopy := r
			c.methods[m] = &rCopy
		}
	}

	normalized := map[model.Method]map[string]float64{}
	activeMethods := 0
	for _, m := range []model.Method{model.MethodVector, model.MethodKeyword, model.MethodSemantic, model.MethodTag} {
		if len(lists[m]) > 0 {
			activeMethods++
		}
		normalized[m] = minMaxNormalize(lists[m])
	}

	unified := make([]model.UnifiedResult, 0, len(order))
	for _, id := range order {
		c := byID[id]
		scores := map[model.Method]model.MethodScores{}

		var maxNorm float64
		var weightedSum float64
		for _, m := range []model.Method{model.MethodVector, model.MethodKeyword, model.MethodSemantic, model.MethodTag} {
			rank := rankOf(lists[m], id)
			norm := 0.0
			if rank > 0 {
				norm = normalized[m][id]
			}
			rrf := 0.0
			if rank > 0 {
				rrf = 1.0 / float64(e.cfg.RRFConstant+rank)
			}
			scores[m] = model.MethodScores{Score: norm, Rank: rank, RRF: rrf}
			if norm > maxNorm {
				maxNorm = norm
			}
			weightedSum += norm * e.cfg.Weights.forMethod(m)
		}

		var unifiedScore float64
		if activeMethods <= 1 {
			unifiedScore = maxNorm
		} else if sum := e.cfg.Weights.sum(); sum > 0 {
			unifiedScore = weightedSum / sum
		}

		ref := firstNonNil(c.methods)
		ur := model.UnifiedResult{
			ID:           id,
			UnifiedScore: unifiedScore,
			Scores:       scores,
		}
		if ref != nil {
			ur.Name = ref.Name
			ur.Description = ref.Description
			ur.Tags = ref.Tags
			ur.ToolType = ref.ToolType
			ur.Path = ref.Path
			ur.Version = ref.Version
			ur.Metadata = ref.Metadata
		}
		unified = append(unified, ur)
	}

	sort.SliceStable(unified, func(i, j int) bool {
		return unified[i].UnifiedScore > unified[j].UnifiedScore
	})

	unionSize := len(unified)
	unified = e.adaptiveFilter(unified, lists, activeMethods)
	unified = dedupe(unified)
	unified = e.diversityRerank(unified)

	return &FusionResult{
		Results:           unified,
		Config:            e.cfg,
		Elapsed:           time.Since(start),
		UnionSize:         unionSize,
		DeduplicatedCount: unionSize - len(unified),
	}
}

// minMaxNormalize scales a method's raw scores to [0,1]; when the range
// is zero every present score becomes 1.
func minMaxNormalize(results []model.RetrievalResult) map[string]float64 {
	out := map[string]float64{}
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	rng := max - min
	for _, r := range results {
		if rng == 0 {
			out[r.ID] = 1.0
		} else {
			out[r.ID] = (r.Score - min) / rng
		}
	}
	return out
}

func rankOf(results []model.RetrievalResult, id string) int {
	for i, r := range results {
		if r.ID == id {
			return i + 1
		}
	}
	return 0
}

func firstNonNil(m map[model.Method]*model.RetrievalResult) *model.RetrievalResult {
	for _, mth := range []model.Method{model.MethodVector, model.MethodKeyword, model.MethodSemantic, model.MethodTag} {
		if r, ok := m[mth]; ok {
			return r
		}
	}
	return nil
}

// adaptiveFilter applies the multi-method gap-cut or the single-method
// max/min spread cut described in spec §4.3 step 7.
func (e *Engine) adaptiveFilter(unified []model.UnifiedResult, lists map[model.Method][]model.RetrievalResult, activeMethods int) []model.UnifiedResult {
	if len(unified) < 2 {
		return unified
	}

	if activeMethods >= 2 {
		maxGap := 0.0
		cutAt := -1
		for i := 0; i < len(unified)-1; i++ {
			gap := unified[i].UnifiedScore - unified[i+1].UnifiedScore
			if gap > maxGap {
				maxGap = gap
				cutAt = i
			}
		}
		if maxGap > 0.3 && cutAt >= 0 {
			return unified[:cutAt+1]
		}
		return unified
	}

	// Single-method case: find the one active method and inspect its raw
	// (pre-normalization) score spread.
	var active model.Method
	for _, m := range []model.Method{model.MethodVector, model.MethodKeyword, model.MethodSemantic, model.MethodTag} {
		if len(lists[m]) > 0 {
			active = m
			break
		}
	}
	raw := lists[active]
	if len(raw) == 0 {
		return unified
	}
	min, max := raw[0].Score, raw[0].Score
	for _, r := range raw {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	if min != 0 && max/min > 10 {
		filtered := make([]model.UnifiedResult, 0, len(unified))
		for _, u := range unified {
			if u.UnifiedScore >= e.cfg.MinScore {
				filtered = append(filtered, u)
			}
		}
		return filtered
	}
	return unified
}

func dedupe(unified []model.UnifiedResult) []model.UnifiedResult {
	seen := map[string]bool{}
	out := make([]model.UnifiedResult, 0, len(unified))
	for _, u := range unified {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}

// diversityRerank prefers introducing an unseen tool_type while the
// selection is shorter than limit/2, then appends the remainder in score
// order, re-sorting the final selection by unified_score desc.
func (e *Engine) diversityRerank(unified []model.UnifiedResult) []model.UnifiedResult {
	limit := e.cfg.Limit
	if limit <= 0 || limit >= len(unified) {
		return unified
	}

	half := limit / 2
	seenTypes := map[model.ToolType]bool{}
	selected := make([]model.UnifiedResult, 0, limit)
	used := make([]bool, len(unified))

	for i := range unified {
		if len(selected) >= half {
			break
		}
		t := unified[i].ToolType
		if !seenTypes[t] {
			seenTypes[t] = true
			selected = append(selected, unified[i])
			used[i] = true
		}
	}

	for i := range unified {
		if len(selected) >= limit {
			break
		}
		if used[i] {
			continue
		}
		selected = append(selected, unified[i])
		used[i] = true
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].UnifiedScore > selected[j].UnifiedScore
	})
	return selected
}
