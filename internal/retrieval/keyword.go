package retrieval

import (
	"sort"
	"strings"

	"github.com/suntianc/toolcore/internal/model"
)

// Enumerator supplies the full tool set for keyword scanning.
type Enumerator func() ([]model.Tool, error)

// keywordSearch lowercases the query, splits on whitespace, scans the
// full tool set, and scores each tool as
// matches_in_name_and_description / total_query_terms, including tools
// that match at least one term in name, description, or tags.
func keywordSearch(query string, limit int, enumerate Enumerator) ([]model.RetrievalResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	tools, err := enumerate()
	if err != nil {
		return nil, err
	}

	type scored struct {
		tool  model.Tool
		score float64
	}
	var candidates []scored

	for _, t := range tools {
		haystack := strings.ToLower(t.Name + " " + t.Description)
		tagHaystack := strings.ToLower(strings.Join(t.Tags, " "))

		matches := 0
		matchedAny := false
		for _, term := range terms {
			inNameDesc := strings.Contains(haystack, term)
			inTags := strings.Contains(tagHaystack, term)
			if inNameDesc {
				matches++
			}
			if inNameDesc || inTags {
				matchedAny = true
			}
		}
		if !matchedAny {
			continue
		}
		candidates = append(candidates, scored{tool: t, score: float64(matches) / float64(len(terms))})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]model.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, model.RetrievalResult{
			ID:          c.tool.ID,
			Score:       c.score,
			Method:      model.MethodKeyword,
			Name:        c.tool.Name,
			Description: c.tool.Description,
			Tags:        c.tool.Tags,
			ToolType:    c.tool.ToolType,
			Path:        c.tool.Path,
			Version:     c.tool.Version,
			Metadata:    c.tool.Metadata,
		})
	}
	return out, nil
}
