package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/pkg/config"
)

var defaultProfiles = map[entities.Tier]entities.TierProfile{
	entities.TierBasic: {
		ModelID: "claude-3-5-haiku-latest",
	},
	entities.TierEnhanced: {
		ModelID:         "claude-sonnet-4-20250514",
		ThinkingEnabled: true,
		CachingEnabled:  true,
	},
	entities.TierMaximum: {
		ModelID:           "claude-opus-4-20250514",
		ThinkingEnabled:   true,
		CachingEnabled:    true,
		GuidelinesEnabled: true,
	},
}

var defaultBudgets = map[entities.Subsystem]map[entities.Effort]entities.TokenBudget{
	entities.SubsystemClinicalNote: {
		entities.EffortLow:    {ThinkingTokens: 2048, MaxOutputTokens: 8192},
		entities.EffortMedium: {ThinkingTokens: 8000, MaxOutputTokens: 16000},
		entities.EffortHigh:   {ThinkingTokens: 16000, MaxOutputTokens: 24000},
		entities.EffortMax:    {ThinkingTokens: 32000, MaxOutputTokens: 48000},
	},
	entities.SubsystemTerminology: {
		entities.EffortLow:    {ThinkingTokens: 1024, MaxOutputTokens: 4096},
		entities.EffortMedium: {ThinkingTokens: 4000, MaxOutputTokens: 8192},
		entities.EffortHigh:   {ThinkingTokens: 8000, MaxOutputTokens: 12000},
		entities.EffortMax:    {ThinkingTokens: 16000, MaxOutputTokens: 24000},
	},
	entities.SubsystemEducation: {
		entities.EffortLow:    {ThinkingTokens: 1024, MaxOutputTokens: 4096},
		entities.EffortMedium: {ThinkingTokens: 4000, MaxOutputTokens: 8192},
		entities.EffortHigh:   {ThinkingTokens: 8000, MaxOutputTokens: 16000},
		entities.EffortMax:    {ThinkingTokens: 16000, MaxOutputTokens: 24000},
	},
}

// thinkingScale multiplies the thinking allowance per tier; absent tiers use 1.
var thinkingScale = map[entities.Tier]int{
	entities.TierMaximum: 2,
}

// TierPolicy maps tier, subsystem and effort to a model and token budget.
// It is read-only after construction.
type TierPolicy struct {
	profiles   map[entities.Tier]entities.TierProfile
	budgets    map[entities.Subsystem]map[entities.Effort]entities.TokenBudget
	forceModel string
}

// ModelSelection is everything a gateway request needs from the policy.
type ModelSelection struct {
	Tier    entities.Tier
	Profile entities.TierProfile
	Budget  entities.TokenBudget
}

// NewTierPolicy returns the built-in policy. A non-empty forceModel pins every tier to that model.
func NewTierPolicy(forceModel string) *TierPolicy {
	p := &TierPolicy{
		profiles:   make(map[entities.Tier]entities.TierProfile, len(defaultProfiles)),
		budgets:    make(map[entities.Subsystem]map[entities.Effort]entities.TokenBudget, len(defaultBudgets)),
		forceModel: forceModel,
	}
	for tier, profile := range defaultProfiles {
		p.profiles[tier] = profile
	}
	for subsystem, table := range defaultBudgets {
		p.budgets[subsystem] = make(map[entities.Effort]entities.TokenBudget, len(table))
		for effort, budget := range table {
			p.budgets[subsystem][effort] = budget
		}
	}
	return p
}

type tierPolicyFile struct {
	Tiers   map[string]entities.TierProfile            `yaml:"tiers"`
	Budgets map[string]map[string]entities.TokenBudget `yaml:"budgets"`
}

// LoadTierPolicy reads overrides for the built-in table from a YAML file. An empty path yields the defaults.
func LoadTierPolicy(path, forceModel string) (*TierPolicy, error) {
	policy := NewTierPolicy(forceModel)
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier policy: %w", err)
	}
	if err := policy.apply(data); err != nil {
		return nil, fmt.Errorf("tier policy %s: %w", path, err)
	}
	return policy, nil
}

func (p *TierPolicy) apply(data []byte) error {
	var file tierPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	for name, profile := range file.Tiers {
		tier, ok := entities.ParseTier(name)
		if !ok {
			return fmt.Errorf("unknown tier %q", name)
		}
		if profile.ModelID == "" {
			return fmt.Errorf("tier %s: model_id is required", tier)
		}
		p.profiles[tier] = profile
	}

	for name, table := range file.Budgets {
		subsystem := entities.Subsystem(name)
		if _, ok := p.budgets[subsystem]; !ok {
			return fmt.Errorf("unknown subsystem %q", name)
		}
		for effortName, budget := range table {
			effort, ok := entities.ParseEffort(effortName)
			if !ok {
				return fmt.Errorf("subsystem %s: unknown effort %q", subsystem, effortName)
			}
			if budget.ThinkingTokens < 0 || budget.MaxOutputTokens <= budget.ThinkingTokens {
				return fmt.Errorf("subsystem %s effort %s: max_output_tokens must exceed thinking_tokens", subsystem, effort)
			}
			p.budgets[subsystem][effort] = budget
		}
	}
	return nil
}

// Profile returns the model and feature flags for tier. Unknown tiers get the basic profile.
func (p *TierPolicy) Profile(tier entities.Tier) entities.TierProfile {
	profile, ok := p.profiles[tier]
	if !ok {
		profile = p.profiles[entities.TierBasic]
	}
	if p.forceModel != "" {
		profile.ModelID = p.forceModel
	}
	return profile
}

// Budget returns the token allowance for one call. An unknown effort falls back
// to medium and an unknown subsystem to the clinical note medium budget.
// Tiers without thinking get a zero thinking allowance.
func (p *TierPolicy) Budget(tier entities.Tier, subsystem entities.Subsystem, effort entities.Effort) entities.TokenBudget {
	table, ok := p.budgets[subsystem]
	if !ok {
		table = p.budgets[entities.SubsystemClinicalNote]
		effort = entities.EffortMedium
	}
	base, ok := table[effort]
	if !ok {
		base = table[entities.EffortMedium]
	}

	if !p.Profile(tier).ThinkingEnabled {
		return entities.TokenBudget{MaxOutputTokens: base.MaxOutputTokens}
	}

	scale, ok := thinkingScale[tier]
	if !ok || scale < 1 {
		scale = 1
	}
	extra := base.ThinkingTokens * (scale - 1)
	return entities.TokenBudget{
		ThinkingTokens:  base.ThinkingTokens + extra,
		MaxOutputTokens: base.MaxOutputTokens + extra,
	}
}

// Select resolves the model and budget for one call.
func (p *TierPolicy) Select(tier entities.Tier, subsystem entities.Subsystem, effort entities.Effort) ModelSelection {
	if _, ok := p.profiles[tier]; !ok {
		tier = entities.TierBasic
	}
	return ModelSelection{
		Tier:    tier,
		Profile: p.Profile(tier),
		Budget:  p.Budget(tier, subsystem, effort),
	}
}

// Apply fills the model, budget and caching fields of req.
func (s ModelSelection) Apply(req *entities.GatewayRequest) {
	req.Model = s.Profile.ModelID
	req.MaxOutputTokens = s.Budget.MaxOutputTokens
	req.ThinkingBudget = s.Budget.ThinkingTokens
	req.CachingEnabled = s.Profile.CachingEnabled
}

// RequestDefaults fills in tier and effort when a request names none or an unknown one.
type RequestDefaults struct {
	Tier   entities.Tier
	Effort entities.Effort
}

// DefaultsFromConfig reads the pipeline defaults, falling back to basic/medium.
func DefaultsFromConfig(cfg config.PipelineConfig) RequestDefaults {
	d := RequestDefaults{Tier: entities.TierBasic, Effort: entities.EffortMedium}
	if tier, ok := entities.ParseTier(cfg.DefaultTier); ok {
		d.Tier = tier
	}
	if effort, ok := entities.ParseEffort(cfg.DefaultEffort); ok {
		d.Effort = effort
	}
	return d
}

// Resolve parses caller-supplied tier and effort strings.
func (d RequestDefaults) Resolve(tier, effort string) (entities.Tier, entities.Effort) {
	t, ok := entities.ParseTier(tier)
	if !ok {
		t = d.Tier
	}
	e, ok := entities.ParseEffort(effort)
	if !ok {
		e = d.Effort
	}
	return t, e
}
