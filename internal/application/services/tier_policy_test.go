package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/pkg/config"
)

func TestTierPolicy_Profiles(t *testing.T) {
	policy := services.NewTierPolicy("")

	basic := policy.Profile(entities.TierBasic)
	assert.False(t, basic.ThinkingEnabled)
	assert.False(t, basic.CachingEnabled)

	maximum := policy.Profile(entities.TierMaximum)
	assert.True(t, maximum.ThinkingEnabled)
	assert.True(t, maximum.GuidelinesEnabled)

	assert.Equal(t, basic, policy.Profile(entities.Tier("platinum")), "unknown tiers use the basic profile")
}

func TestTierPolicy_BudgetIsDeterministicPerTier(t *testing.T) {
	policy := services.NewTierPolicy("")

	enhanced := policy.Budget(entities.TierEnhanced, entities.SubsystemClinicalNote, entities.EffortMedium)
	assert.Equal(t, entities.TokenBudget{ThinkingTokens: 8000, MaxOutputTokens: 16000}, enhanced)
	assert.Equal(t, enhanced, policy.Budget(entities.TierEnhanced, entities.SubsystemClinicalNote, entities.EffortMedium))

	maximum := policy.Budget(entities.TierMaximum, entities.SubsystemClinicalNote, entities.EffortMedium)
	assert.Equal(t, entities.TokenBudget{ThinkingTokens: 16000, MaxOutputTokens: 24000}, maximum)

	basic := policy.Budget(entities.TierBasic, entities.SubsystemClinicalNote, entities.EffortMedium)
	assert.Equal(t, entities.TokenBudget{ThinkingTokens: 0, MaxOutputTokens: 16000}, basic)
}

func TestTierPolicy_OutputAlwaysExceedsThinking(t *testing.T) {
	policy := services.NewTierPolicy("")
	tiers := []entities.Tier{entities.TierBasic, entities.TierEnhanced, entities.TierMaximum}
	subsystems := []entities.Subsystem{entities.SubsystemClinicalNote, entities.SubsystemTerminology, entities.SubsystemEducation}
	efforts := []entities.Effort{entities.EffortLow, entities.EffortMedium, entities.EffortHigh, entities.EffortMax}

	for _, tier := range tiers {
		for _, subsystem := range subsystems {
			for _, effort := range efforts {
				b := policy.Budget(tier, subsystem, effort)
				assert.Greater(t, b.MaxOutputTokens, b.ThinkingTokens, "%s/%s/%s", tier, subsystem, effort)
			}
		}
	}
}

func TestTierPolicy_FallsBackToMedium(t *testing.T) {
	policy := services.NewTierPolicy("")
	medium := policy.Budget(entities.TierEnhanced, entities.SubsystemTerminology, entities.EffortMedium)

	assert.Equal(t, medium, policy.Budget(entities.TierEnhanced, entities.SubsystemTerminology, entities.Effort("extreme")))
	assert.Equal(t,
		policy.Budget(entities.TierEnhanced, entities.SubsystemClinicalNote, entities.EffortMedium),
		policy.Budget(entities.TierEnhanced, entities.Subsystem("billing"), entities.EffortHigh))
}

func TestTierPolicy_ForceModelLeavesBudgetsAlone(t *testing.T) {
	forced := services.NewTierPolicy("claude-3-5-haiku-latest")
	normal := services.NewTierPolicy("")

	for _, tier := range []entities.Tier{entities.TierBasic, entities.TierEnhanced, entities.TierMaximum} {
		assert.Equal(t, "claude-3-5-haiku-latest", forced.Profile(tier).ModelID)
		assert.Equal(t,
			normal.Budget(tier, entities.SubsystemEducation, entities.EffortHigh),
			forced.Budget(tier, entities.SubsystemEducation, entities.EffortHigh))
	}
}

func TestModelSelection_Apply(t *testing.T) {
	policy := services.NewTierPolicy("")
	req := &entities.GatewayRequest{Subsystem: entities.SubsystemClinicalNote}

	policy.Select(entities.TierEnhanced, entities.SubsystemClinicalNote, entities.EffortHigh).Apply(req)

	assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
	assert.Equal(t, 16000, req.ThinkingBudget)
	assert.Equal(t, 24000, req.MaxOutputTokens)
	assert.True(t, req.CachingEnabled)
}

func TestLoadTierPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  enhanced:
    model_id: claude-sonnet-4-5
    thinking_enabled: true
    caching_enabled: false
budgets:
  education:
    low:
      thinking_tokens: 1500
      max_output_tokens: 3000
`), 0o600))

	policy, err := services.LoadTierPolicy(path, "")
	require.NoError(t, err)

	profile := policy.Profile(entities.TierEnhanced)
	assert.Equal(t, "claude-sonnet-4-5", profile.ModelID)
	assert.False(t, profile.CachingEnabled)
	assert.Equal(t, entities.TokenBudget{ThinkingTokens: 1500, MaxOutputTokens: 3000},
		policy.Budget(entities.TierEnhanced, entities.SubsystemEducation, entities.EffortLow))
	assert.Equal(t, entities.TokenBudget{ThinkingTokens: 8000, MaxOutputTokens: 16000},
		policy.Budget(entities.TierEnhanced, entities.SubsystemClinicalNote, entities.EffortMedium), "untouched entries keep defaults")
}

func TestLoadTierPolicy_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown tier":      "tiers:\n  gold:\n    model_id: x\n",
		"missing model":     "tiers:\n  basic:\n    thinking_enabled: false\n",
		"unknown subsystem": "budgets:\n  billing:\n    low: {thinking_tokens: 1, max_output_tokens: 2}\n",
		"unknown effort":    "budgets:\n  education:\n    huge: {thinking_tokens: 1, max_output_tokens: 2}\n",
		"output too small":  "budgets:\n  education:\n    low: {thinking_tokens: 4000, max_output_tokens: 4000}\n",
		"not yaml":          "tiers: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tiers.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := services.LoadTierPolicy(path, "")
			assert.Error(t, err)
		})
	}

	_, err := services.LoadTierPolicy(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)

	policy, err := services.LoadTierPolicy("", "")
	require.NoError(t, err)
	assert.NotNil(t, policy)
}

func TestRequestDefaults_Resolve(t *testing.T) {
	defaults := services.DefaultsFromConfig(config.PipelineConfig{DefaultTier: "Enhanced", DefaultEffort: "bogus"})
	assert.Equal(t, services.RequestDefaults{Tier: entities.TierEnhanced, Effort: entities.EffortMedium}, defaults)

	tier, effort := defaults.Resolve("MAXIMUM", " high ")
	assert.Equal(t, entities.TierMaximum, tier)
	assert.Equal(t, entities.EffortHigh, effort)

	tier, effort = defaults.Resolve("", "extreme")
	assert.Equal(t, entities.TierEnhanced, tier)
	assert.Equal(t, entities.EffortMedium, effort)
}
