package tagmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suntianc/toolcore/internal/model"
)

func TestMatchSingleTool_AliasExpansionAcrossLevels(t *testing.T) {
	hierarchy := model.TagHierarchy{
		Levels:  []string{"category", "subcategory", "tag"},
		Aliases: map[string]string{"cat": "category"},
	}
	e := New(Config{Hierarchy: hierarchy, MinScore: 0.5, MaxDepth: 3, EnableAliases: true})

	result := e.MatchSingleTool(Candidate{ID: "tool-1", Tags: []string{"category:file"}}, []string{"cat:file"})

	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.True(t, result.Matched)
	assert.Equal(t, "cat:file", result.ExpandedFrom)
	assert.Equal(t, "category", result.Level)
}

func TestMatchTags_EmptyQueryTagsYieldsEmptyResult(t *testing.T) {
	e := New(DefaultConfig())
	candidates := []Candidate{{ID: "a", Tags: []string{"category:file"}}}

	result := e.MatchTags(nil, candidates)

	assert.Nil(t, result)
}

func TestMatchSingleTool_ExactMatchScoresOne(t *testing.T) {
	e := New(DefaultConfig())
	result := e.MatchSingleTool(Candidate{ID: "a", Tags: []string{"search"}}, []string{"search"})
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.True(t, result.Matched)
}

func TestMatchSingleTool_NoOverlapScoresZero(t *testing.T) {
	e := New(DefaultConfig())
	result := e.MatchSingleTool(Candidate{ID: "a", Tags: []string{"category:network"}}, []string{"category:storage"})
	assert.Zero(t, result.Score)
	assert.False(t, result.Matched)
}

func TestMatchSingleTool_PrefixPartialMatch(t *testing.T) {
	e := New(DefaultConfig())
	result := e.MatchSingleTool(Candidate{ID: "a", Tags: []string{"file"}}, []string{"files"})
	assert.InDelta(t, 0.6, result.Score, 1e-9)
}

func TestExpandAliases_DisabledReturnsOnlyInput(t *testing.T) {
	e := New(Config{Hierarchy: model.DefaultTagHierarchy(), EnableAliases: false})
	out := e.ExpandAliases("cat:file")
	require.Len(t, out, 1)
	assert.Equal(t, "cat:file", out[0])
}

func TestExpandAliases_BareLevelNameExpandsToAlias(t *testing.T) {
	e := New(Config{Hierarchy: model.DefaultTagHierarchy(), EnableAliases: true})
	out := e.ExpandAliases("category")
	assert.Contains(t, out, "category")
	assert.Contains(t, out, "cat")
}
