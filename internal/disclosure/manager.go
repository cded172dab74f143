package disclosure

import (
	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/toolerrors"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Thresholds          Thresholds
	L1MaxTokens         int
	L2MaxTokens         int
	Cache               CacheConfig
	PreferMetadataBelow int
}

// DefaultManagerConfig returns the documented Disclosure V2 defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Thresholds:          DefaultThresholds(),
		L1MaxTokens:         120,
		L2MaxTokens:         5000,
		Cache:               DefaultCacheConfig(),
		PreferMetadataBelow: 500,
	}
}

// ToolLookup resolves a tool record by id for content building on a cache
// miss.
type ToolLookup func(id string) (*model.Tool, error)

// Manager wires DecisionManager, the content builder, and Cache together.
type Manager struct {
	cfg      ManagerConfig
	decision *DecisionManager
	cache    *Cache
	lookup   ToolLookup
}

// NewManager constructs a disclosure Manager.
func NewManager(cfg ManagerConfig, lookup ToolLookup) *Manager {
	return &Manager{
		cfg:      cfg,
		decision: NewDecisionManager(cfg.Thresholds),
		cache:    NewCache(cfg.Cache),
		lookup:   lookup,
	}
}

// ApplyDisclosure sets every result's Disclosure to the content at a
// single uniform level. Idempotent: applying the same level twice yields
// the same result.
func (m *Manager) ApplyDisclosure(results []model.UnifiedResult, level model.DisclosureLevel) ([]model.UnifiedResult, error) {
	for i := range results {
		content, err := m.GetDisclosureContent(&results[i], level)
		if err != nil {
			return nil, err
		}
		results[i].Disclosure = content
	}
	return results, nil
}

// ApplyAdaptiveDisclosure picks one level for the whole batch based on
// cumulative METADATA token estimates against maxTokens, per spec §4.5.
func (m *Manager) ApplyAdaptiveDisclosure(results []model.UnifiedResult, maxTokens int) ([]model.UnifiedResult, error) {
	total := 0
	for i := range results {
		tool, err := m.lookup(results[i].ID)
		if err != nil || tool == nil {
			continue
		}
		total += estimateTokens(tool.Name) + estimateTokens(tool.Description)
		if total > maxTokens {
			break
		}
	}

	level := model.LevelResources
	switch {
	case total <= m.cfg.PreferMetadataBelow:
		level = model.LevelMetadata
	case float64(total) <= 0.7*float64(maxTokens):
		level = model.LevelContent
	}

	return m.ApplyDisclosure(results, level)
}

// GetDisclosureContent returns the materialized content for one result at
// level, consulting the cache first.
func (m *Manager) GetDisclosureContent(result *model.UnifiedResult, level model.DisclosureLevel) (*model.DisclosureContent, error) {
	tool, err := m.lookup(result.ID)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindDisclosure, "get_disclosure_content", err)
	}
	if tool == nil {
		return nil, toolerrors.New(toolerrors.KindDisclosure, "get_disclosure_content", "tool not found: "+result.ID)
	}

	hash := ContentHash(tool.ID, tool.Name, tool.Description, tool.Version)
	key := CompositeKey(tool.ID, string(level), hash)

	if cached, ok := m.cache.Get(key); ok {
		if dc, ok := cached.Payload.(*model.DisclosureContent); ok {
			return dc, nil
		}
	}

	dc := BuildContent(tool, level)
	m.cache.Set(key, &Content{ID: tool.ID, Payload: dc}, 0)
	return dc, nil
}

// GetDisclosure decides a level from score/maxTokens, then returns the
// cached or freshly-built content for it.
func (m *Manager) GetDisclosure(result *model.UnifiedResult, score float64, maxTokens int) (*model.DisclosureContent, Decision, error) {
	d := m.decision.Decide(score, maxTokens)
	content, err := m.GetDisclosureContent(result, d.Level)
	return content, d, err
}

// InvalidateTool purges every cached disclosure level for id.
func (m *Manager) InvalidateTool(id string) {
	m.cache.Invalidate(id)
}

// Dispose releases the underlying cache's sweeper.
func (m *Manager) Dispose() {
	m.cache.Dispose()
}
