// Package disclosure implements the three-tier progressive disclosure
// policy: a score/token-budget decision, a content builder per level, a
// TTL+LRU cache keyed by (id, level, content hash), and the manager that
// wires the two together.
package disclosure

import "github.com/suntianc/toolcore/internal/model"

// Thresholds configures the score cutoffs for CONTENT and RESOURCES.
type Thresholds struct {
	L2 float64 // CONTENT threshold, default 0.70
	L3 float64 // RESOURCES threshold, default 0.85
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{L2: 0.70, L3: 0.85}
}

// Reason explains why a level was chosen.
type Reason string

const (
	ReasonAlways      Reason = "always"
	ReasonThreshold   Reason = "threshold"
	ReasonTokenBudget Reason = "tokenBudget"
)

// Decision is the outcome of evaluating one result.
type Decision struct {
	Level  model.DisclosureLevel
	Reason Reason
}

// DecisionManager picks a disclosure level for one result in O(1).
type DecisionManager struct {
	thresholds Thresholds
}

// NewDecisionManager constructs a DecisionManager with the given thresholds.
func NewDecisionManager(t Thresholds) *DecisionManager {
	return &DecisionManager{thresholds: t}
}

// Decide implements the exact priority order from spec §4.4: max_tokens
// < 500 dominates every score case; otherwise score thresholds gate
// RESOURCES then CONTENT, falling back to METADATA with reason
// tokenBudget (the fixed observable for the "just below L2" case).
func (d *DecisionManager) Decide(score float64, maxTokens int) Decision {
	if maxTokens < 500 {
		return Decision{Level: model.LevelMetadata, Reason: ReasonAlways}
	}
	if score >= d.thresholds.L3 {
		return Decision{Level: model.LevelResources, Reason: ReasonThreshold}
	}
	if score >= d.thresholds.L2 {
		return Decision{Level: model.LevelContent, Reason: ReasonThreshold}
	}
	return Decision{Level: model.LevelMetadata, Reason: ReasonTokenBudget}
}
