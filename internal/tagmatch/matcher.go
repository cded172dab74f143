// Package tagmatch scores the alignment between a tool's tag set and a
// caller's query tags under a declared hierarchy with aliases.
package tagmatch

import (
	"strings"

	"github.com/suntianc/toolcore/internal/model"
)

// Config configures an Engine.
type Config struct {
	Hierarchy      model.TagHierarchy
	MinScore       float64
	MaxDepth       int
	EnableAliases  bool
}

// DefaultConfig returns the documented defaults: min_score=0.5, max_depth=3,
// aliases enabled, and the conventional category/subcategory/tag hierarchy.
func DefaultConfig() Config {
	return Config{
		Hierarchy:     model.DefaultTagHierarchy(),
		MinScore:      0.5,
		MaxDepth:      3,
		EnableAliases: true,
	}
}

// Engine implements hierarchical tag matching.
type Engine struct {
	cfg Config
}

// New constructs a tag matching Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Candidate is a tool considered for tag matching.
type Candidate struct {
	ID   string
	Tags []string
}

// MatchTags scores every candidate against queryTags. An empty queryTags
// slice always yields an empty result list.
func (e *Engine) MatchTags(queryTags []string, candidates []Candidate) []model.TagMatchResult {
	if len(queryTags) == 0 {
		return nil
	}
	results := make([]model.TagMatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, e.MatchSingleTool(c, queryTags))
	}
	return results
}

// MatchSingleTool scores one tool's tags against queryTags.
func (e *Engine) MatchSingleTool(c Candidate, queryTags []string) model.TagMatchResult {
	score, tag, level, expandedFrom := e.calculateTagScore(c.Tags, queryTags)
	return model.TagMatchResult{
		ToolID:       c.ID,
		Matched:      score >= e.cfg.MinScore,
		Score:        score,
		Tag:          tag,
		Level:        level,
		ExpandedFrom: expandedFrom,
	}
}

// matchPair scores a single (toolTag, queryTag) pair per the tie-broken
// rules: exact 1.0, same-level case-insensitive 0.8, prefix 0.6, else 0.
func (e *Engine) matchPair(toolTag, queryTag string) float64 {
	if toolTag == queryTag {
		return 1.0
	}
	tLevel, tVal := splitTag(toolTag)
	qLevel, qVal := splitTag(queryTag)
	if tLevel != "" && tLevel == qLevel && strings.EqualFold(tVal, qVal) {
		return 0.8
	}
	if strings.EqualFold(toolTag, queryTag) {
		return 0.8
	}
	if strings.HasPrefix(toolTag, queryTag) || strings.HasPrefix(queryTag, toolTag) {
		return 0.6
	}
	return 0
}

// calculateTagScore computes Σ best_per_query_tag / |query_tags| and
// identifies the winning tool-side tag, its level, and alias origin.
func (e *Engine) calculateTagScore(toolTags, queryTags []string) (score float64, bestTag, bestLevel, expandedFrom string) {
	if len(queryTags) == 0 {
		return 0, "", "", ""
	}

	expandedTool := e.expandAll(toolTags)

	var total float64
	for _, qt := range queryTags {
		expandedQuery := e.ExpandAliases(qt)

		best := 0.0
		var bestToolTag, bestOrigQuery string
		for _, tt := range toolTags {
			for _, candidateTool := range expandedTool[tt] {
				for _, candidateQuery := range expandedQuery {
					s := e.matchPair(candidateTool, candidateQuery)
					if s > best {
						best = s
						bestToolTag = tt
						if candidateQuery != qt {
							bestOrigQuery = qt
						}
					}
				}
			}
		}
		total += best

		if best > 0 && best >= score {
			score = best
			bestTag = bestToolTag
			bestLevel = e.levelOf(bestToolTag)
			if bestOrigQuery != "" {
				expandedFrom = bestOrigQuery
			}
		}
	}

	return total / float64(len(queryTags)), bestTag, bestLevel, expandedFrom
}

// expandAll builds, for each raw tool tag, the set of expansions used
// during matching (including the bare tag itself).
func (e *Engine) expandAll(tags []string) map[string][]string {
	m := make(map[string][]string, len(tags))
	for _, t := range tags {
		m[t] = e.ExpandAliases(t)
	}
	return m
}

// ExpandAliases returns the deduplicated set of equivalent tag spellings
// for tag T under the engine's hierarchy, including T itself.
func (e *Engine) ExpandAliases(tag string) []string {
	out := []string{tag}
	if !e.cfg.EnableAliases {
		return out
	}

	seen := map[string]bool{tag: true}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		prefix, value := tag[:idx], tag[idx+1:]
		if canonical, ok := e.cfg.Hierarchy.Aliases[prefix]; ok {
			add(canonical + ":" + value)
		} else if isCanonicalLevel(e.cfg.Hierarchy, prefix) {
			for alias, canon := range e.cfg.Hierarchy.Aliases {
				if canon == prefix {
					add(alias + ":" + value)
				}
			}
		}
		return out
	}

	if canonical, ok := e.cfg.Hierarchy.Aliases[tag]; ok {
		add(canonical)
	}
	if isCanonicalLevel(e.cfg.Hierarchy, tag) {
		for alias, canon := range e.cfg.Hierarchy.Aliases {
			if canon == tag {
				add(alias)
			}
		}
	}
	return out
}

// levelOf derives the hierarchy level name for a tool tag: its explicit
// prefix if present (resolved through aliases), otherwise a match against
// known level/alias names, defaulting to "tag".
func (e *Engine) levelOf(tag string) string {
	if tag == "" {
		return "tag"
	}
	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		prefix := tag[:idx]
		if canon, ok := e.cfg.Hierarchy.Aliases[prefix]; ok {
			return canon
		}
		if isCanonicalLevel(e.cfg.Hierarchy, prefix) {
			return prefix
		}
		return "tag"
	}
	if canon, ok := e.cfg.Hierarchy.Aliases[tag]; ok {
		return canon
	}
	if isCanonicalLevel(e.cfg.Hierarchy, tag) {
		return tag
	}
	return "tag"
}

func splitTag(tag string) (level, value string) {
	idx := strings.IndexByte(tag, ':')
	if idx < 0 {
		return "", tag
	}
	return tag[:idx], tag[idx+1:]
}

func isCanonicalLevel(h model.TagHierarchy, name string) bool {
	for _, l := range h.Levels {
		if l == name {
			return true
		}
	}
	return false
}
