package entities

import "strings"

// Tier selects model strength, reasoning depth and caching/guideline features.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierEnhanced Tier = "enhanced"
	TierMaximum  Tier = "maximum"
)

// Effort scales reasoning depth per request, independent of Tier.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
	EffortMax    Effort = "max"
)

// Subsystem names the pipeline stage a budget applies to.
type Subsystem string

const (
	SubsystemClinicalNote Subsystem = "clinical_note"
	SubsystemTerminology  Subsystem = "terminology"
	SubsystemEducation    Subsystem = "education"
)

// TierProfile is the per-tier model and feature selection.
type TierProfile struct {
	ModelID           string `json:"model_id" yaml:"model_id"`
	ThinkingEnabled   bool   `json:"thinking_enabled" yaml:"thinking_enabled"`
	CachingEnabled    bool   `json:"caching_enabled" yaml:"caching_enabled"`
	GuidelinesEnabled bool   `json:"guidelines_enabled" yaml:"guidelines_enabled"`
}

// TokenBudget is the token allowance for one gateway call.
type TokenBudget struct {
	ThinkingTokens  int `json:"thinking_tokens" yaml:"thinking_tokens"`
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// ParseTier maps free-form input to a Tier. Unknown values report false.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierBasic:
		return TierBasic, true
	case TierEnhanced:
		return TierEnhanced, true
	case TierMaximum:
		return TierMaximum, true
	}
	return "", false
}

// ParseEffort maps free-form input to an Effort. Unknown values report false.
func ParseEffort(s string) (Effort, bool) {
	switch Effort(strings.ToLower(strings.TrimSpace(s))) {
	case EffortLow:
		return EffortLow, true
	case EffortMedium:
		return EffortMedium, true
	case EffortHigh:
		return EffortHigh, true
	case EffortMax:
		return EffortMax, true
	}
	return "", false
}
