package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
)

// TerminologyAnnotator attaches plain-language definitions to clinical terms
// in a note. It never fails: anything it cannot validate is dropped.
type TerminologyAnnotator struct {
	gateway providers.ReasoningGateway
	policy  *TierPolicy
	logger  zerolog.Logger
}

// NewTerminologyAnnotator creates an annotator.
func NewTerminologyAnnotator(gateway providers.ReasoningGateway, policy *TierPolicy) *TerminologyAnnotator {
	return &TerminologyAnnotator{
		gateway: gateway,
		policy:  policy,
		logger:  log.Logger.With().Str("component", "terminology_annotator").Logger(),
	}
}

// WithLogger returns a copy of the annotator logging to logger.
func (a *TerminologyAnnotator) WithLogger(logger zerolog.Logger) *TerminologyAnnotator {
	clone := *a
	clone.logger = logger
	return &clone
}

// Annotate asks the gateway for term annotations and keeps the ones whose
// offsets check out. Sections without a valid annotation are absent from the result.
func (a *TerminologyAnnotator) Annotate(ctx context.Context, sections entities.NoteSections, tier entities.Tier, effort entities.Effort) map[string][]entities.TermAnnotation {
	result := make(map[string][]entities.TermAnnotation)

	texts := sections.Map()
	if len(texts) == 0 {
		return result
	}

	prompt, err := buildTerminologyUserPrompt(texts)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to build terminology prompt")
		return result
	}

	selection := a.policy.Select(tier, entities.SubsystemTerminology, effort)
	req := &entities.GatewayRequest{
		SystemPrompt: terminologySystemPrompt,
		Messages:     []entities.Message{{Role: "user", Content: prompt}},
		Subsystem:    entities.SubsystemTerminology,
	}
	selection.Apply(req)

	resp, err := a.gateway.Complete(ctx, req)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("failure_class", string(providers.FailureKindOf(err))).
			Msg("terminology annotation skipped")
		return result
	}

	var claimed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text)), &claimed); err != nil {
		a.logger.Warn().Err(err).Msg("terminology output did not parse")
		return result
	}

	for _, section := range entities.SectionOrder {
		text, ok := texts[section]
		if !ok {
			continue
		}
		raw, ok := claimed[section]
		if !ok {
			continue
		}
		if err := validateSchema(annotationSchema, raw); err != nil {
			a.logger.Debug().Err(err).Str("section", section).Msg("dropping malformed annotation section")
			continue
		}
		var claims []entities.TermAnnotation
		if err := json.Unmarshal(raw, &claims); err != nil {
			continue
		}
		if valid := ValidateAnnotations(text, claims); len(valid) > 0 {
			result[section] = valid
		}
	}
	return result
}

// ValidateAnnotations reconciles claimed annotations against text. Offsets
// count characters. A claim whose span does not match its term is relocated to
// the first case-insensitive occurrence of the term; claims with no occurrence
// are dropped. The stored term is always the literal slice of text.
func ValidateAnnotations(text string, claims []entities.TermAnnotation) []entities.TermAnnotation {
	runes := []rune(text)
	var out []entities.TermAnnotation

	for _, claim := range claims {
		term := []rune(strings.TrimSpace(claim.Term))
		if len(term) == 0 {
			continue
		}

		start, end := claim.Start, claim.End
		if !spanMatches(runes, start, end, term) {
			start = indexFold(runes, term)
			if start < 0 {
				continue
			}
			end = start + len(term)
		}

		out = append(out, entities.TermAnnotation{
			Term:       string(runes[start:end]),
			Start:      start,
			End:        end,
			Definition: strings.TrimSpace(claim.Definition),
		})
	}
	return out
}

func spanMatches(text []rune, start, end int, term []rune) bool {
	if start < 0 || end <= start || end > len(text) {
		return false
	}
	return strings.EqualFold(string(text[start:end]), string(term))
}

// indexFold returns the first character offset where term occurs in text
// ignoring case, or -1.
func indexFold(text, term []rune) int {
	for i := 0; i+len(term) <= len(text); i++ {
		if strings.EqualFold(string(text[i:i+len(term)]), string(term)) {
			return i
		}
	}
	return -1
}
