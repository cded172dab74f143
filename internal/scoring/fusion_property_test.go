package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/suntianc/toolcore/internal/model"
)

func genRetrievalResults(method model.Method, n int) gopter.Gen {
	return gen.SliceOfN(n, gen.Float64Range(0, 1)).Map(func(scores []float64) []model.RetrievalResult {
		out := make([]model.RetrievalResult, len(scores))
		for i, s := range scores {
			out[i] = model.RetrievalResult{
				ID:       string(rune('a' + i%26)),
				Score:    s,
				Method:   method,
				ToolType: model.ToolTypeSkill,
			}
		}
		return out
	})
}

// TestFuseProperty_UnifiedScoreRangeSortAndDedup checks the quantified
// invariants: every unified_score falls in [0,1], results are sorted
// descending, and no id repeats — for arbitrary vector/keyword score lists.
func TestFuseProperty_UnifiedScoreRangeSortAndDedup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("fused results stay in [0,1], sorted desc, deduplicated", prop.ForAll(
		func(vector, keyword []model.RetrievalResult) bool {
			e := New(DefaultConfig())
			result := e.Fuse(vector, keyword, nil, nil)

			seen := map[string]bool{}
			for i, r := range result.Results {
				if r.UnifiedScore < 0 || r.UnifiedScore > 1 {
					return false
				}
				if seen[r.ID] {
					return false
				}
				seen[r.ID] = true
				if i > 0 && r.UnifiedScore > result.Results[i-1].UnifiedScore {
					return false
				}
			}
			return true
		},
		genRetrievalResults(model.MethodVector, 6),
		genRetrievalResults(model.MethodKeyword, 6),
	))

	properties.TestingRun(t)
}

// TestFuseProperty_ResultCountNeverExceedsUnion checks that fusion never
// fabricates ids beyond the union of its inputs.
func TestFuseProperty_ResultCountNeverExceedsUnion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("fused result count never exceeds input union size", prop.ForAll(
		func(vector []model.RetrievalResult) bool {
			e := New(DefaultConfig())
			result := e.Fuse(vector, nil, nil, nil)
			return len(result.Results) <= len(vector)
		},
		genRetrievalResults(model.MethodVector, 8),
	))

	properties.TestingRun(t)
}
