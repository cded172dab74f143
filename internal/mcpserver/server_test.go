package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suntianc/toolcore/internal/disclosure"
	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/retrieval"
	"github.com/suntianc/toolcore/internal/tagmatch"
)

type fakeVectorSearcher struct {
	results []model.RetrievalResult
}

func (f *fakeVectorSearcher) Search(_ context.Context, _ string, limit int, _ float64) ([]model.RetrievalResult, error) {
	out := f.results
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestEngine(t *testing.T) *retrieval.Engine {
	t.Helper()
	tools := []model.Tool{
		{ID: "csv-reader", Name: "CSV Reader", Description: "Reads CSV files", Tags: []string{"category:data", "tag:csv"}, ToolType: model.ToolTypeSkill},
	}
	vs := &fakeVectorSearcher{results: []model.RetrievalResult{
		{ID: "csv-reader", Score: 0.9, Name: "CSV Reader", Description: "Reads CSV files", Tags: tools[0].Tags, ToolType: model.ToolTypeSkill},
	}}
	enumerate := func() ([]model.Tool, error) { return tools, nil }
	lookup := func(id string) (*model.Tool, error) {
		for i := range tools {
			if tools[i].ID == id {
				return &tools[i], nil
			}
		}
		return nil, nil
	}

	tm := tagmatch.New(tagmatch.DefaultConfig())
	disc := disclosure.NewManager(disclosure.DefaultManagerConfig(), lookup)
	return retrieval.New(retrieval.DefaultConfig(), vs, enumerate, tm, disc, nil)
}

func TestFindToolsHandler_ReturnsRankedResults(t *testing.T) {
	engine := newTestEngine(t)
	srv, err := New(engine, nil)
	require.NoError(t, err)

	_, out, err := srv.findToolsHandler(context.Background(), nil, FindToolsInput{Query: "read a csv file"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	require.Equal(t, "csv-reader", out.Results[0].ID)
}

func TestFindToolsHandler_RejectsEmptyQuery(t *testing.T) {
	engine := newTestEngine(t)
	srv, err := New(engine, nil)
	require.NoError(t, err)

	_, _, err = srv.findToolsHandler(context.Background(), nil, FindToolsInput{})
	require.Error(t, err)
}
