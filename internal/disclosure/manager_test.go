package disclosure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suntianc/toolcore/internal/model"
)

func lookupFromTools(tools ...model.Tool) ToolLookup {
	byID := map[string]model.Tool{}
	for _, t := range tools {
		byID[t.ID] = t
	}
	return func(id string) (*model.Tool, error) {
		t, ok := byID[id]
		if !ok {
			return nil, nil
		}
		return &t, nil
	}
}

func TestManager_ApplyDisclosureIsIdempotent(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), lookupFromTools(model.Tool{ID: "a", Name: "A", Description: "tool a"}))
	defer m.Dispose()

	results := []model.UnifiedResult{{ID: "a"}}

	first, err := m.ApplyDisclosure(results, model.LevelContent)
	require.NoError(t, err)
	second, err := m.ApplyDisclosure(first, model.LevelContent)
	require.NoError(t, err)

	assert.Equal(t, first[0].Disclosure, second[0].Disclosure)
}

func TestManager_GetDisclosureContentUsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	lookup := func(id string) (*model.Tool, error) {
		calls++
		return &model.Tool{ID: id, Name: "A", Description: "desc"}, nil
	}
	m := NewManager(DefaultManagerConfig(), lookup)
	defer m.Dispose()

	result := &model.UnifiedResult{ID: "a"}
	_, err := m.GetDisclosureContent(result, model.LevelMetadata)
	require.NoError(t, err)
	_, err = m.GetDisclosureContent(result, model.LevelMetadata)
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "lookup always resolves the tool; only BuildContent should be skipped on cache hit")
	assert.Equal(t, int64(1), m.cache.Stats().Hits, "second call should be served from the cache")
}

func TestManager_GetDisclosureContentErrorsWhenToolMissing(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), lookupFromTools())
	defer m.Dispose()

	_, err := m.GetDisclosureContent(&model.UnifiedResult{ID: "missing"}, model.LevelMetadata)
	assert.Error(t, err)
}

func TestManager_GetDisclosureContentWrapsLookupError(t *testing.T) {
	lookup := func(id string) (*model.Tool, error) { return nil, errors.New("boom") }
	m := NewManager(DefaultManagerConfig(), lookup)
	defer m.Dispose()

	_, err := m.GetDisclosureContent(&model.UnifiedResult{ID: "a"}, model.LevelMetadata)
	assert.Error(t, err)
}

func TestManager_ApplyAdaptiveDisclosurePicksLevelFromTokenBudget(t *testing.T) {
	tools := []model.Tool{
		{ID: "a", Name: "A", Description: "short"},
	}
	cfg := DefaultManagerConfig()
	cfg.PreferMetadataBelow = 1000
	m := NewManager(cfg, lookupFromTools(tools...))
	defer m.Dispose()

	results := []model.UnifiedResult{{ID: "a"}}
	applied, err := m.ApplyAdaptiveDisclosure(results, 3000)
	require.NoError(t, err)
	assert.Equal(t, model.LevelMetadata, applied[0].Disclosure.Level)
}

func TestManager_InvalidateToolClearsCachedContent(t *testing.T) {
	calls := 0
	lookup := func(id string) (*model.Tool, error) {
		calls++
		return &model.Tool{ID: id, Name: "A", Description: "desc"}, nil
	}
	m := NewManager(DefaultManagerConfig(), lookup)
	defer m.Dispose()

	result := &model.UnifiedResult{ID: "a"}
	_, err := m.GetDisclosureContent(result, model.LevelMetadata)
	require.NoError(t, err)

	m.InvalidateTool("a")

	key := CompositeKey("a", string(model.LevelMetadata), ContentHash("a", "A", "desc", ""))
	_, ok := m.cache.Get(key)
	assert.False(t, ok, "invalidate should evict every cached level for the id")
}

func TestManager_DisposeIsIdempotent(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), lookupFromTools())
	assert.NotPanics(t, func() {
		m.Dispose()
		m.Dispose()
	})
}
