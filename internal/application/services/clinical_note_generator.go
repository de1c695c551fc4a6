package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

var errEmptySections = errors.New("note has no narrative sections")

type notePayload struct {
	Subjective string              `json:"subjective"`
	Objective  string              `json:"objective"`
	Assessment string              `json:"assessment"`
	Plan       string              `json:"plan"`
	Entities   map[string][]string `json:"entities"`
}

// ClinicalNoteGenerator turns a transcript into a structured clinical note.
type ClinicalNoteGenerator struct {
	gateway providers.ReasoningGateway
	policy  *TierPolicy
	logger  zerolog.Logger
}

// NewClinicalNoteGenerator creates a note generator.
func NewClinicalNoteGenerator(gateway providers.ReasoningGateway, policy *TierPolicy) *ClinicalNoteGenerator {
	return &ClinicalNoteGenerator{
		gateway: gateway,
		policy:  policy,
		logger:  log.Logger.With().Str("component", "clinical_note_generator").Logger(),
	}
}

// WithLogger returns a copy of the generator logging to logger.
func (g *ClinicalNoteGenerator) WithLogger(logger zerolog.Logger) *ClinicalNoteGenerator {
	clone := *g
	clone.logger = logger
	return &clone
}

// Generate calls the gateway once and parses its output. A gateway failure is
// returned as a GENERATION_FAILED error wrapping the classified failure. Output
// that does not parse yields a degraded note carrying the raw response.
func (g *ClinicalNoteGenerator) Generate(ctx context.Context, text string, meta entities.VisitMetadata, tier entities.Tier, effort entities.Effort) (*entities.ClinicalNote, error) {
	selection := g.policy.Select(tier, entities.SubsystemClinicalNote, effort)
	req := &entities.GatewayRequest{
		SystemPrompt: buildClinicalNoteSystemPrompt(selection.Profile),
		Messages: []entities.Message{
			{Role: "user", Content: buildClinicalNoteUserPrompt(text, meta)},
		},
		Subsystem: entities.SubsystemClinicalNote,
	}
	selection.Apply(req)

	resp, err := g.gateway.Complete(ctx, req)
	if err != nil {
		return nil, apperrors.NewGenerationFailedError("clinical note generation failed", err)
	}

	note := &entities.ClinicalNote{
		Model: resp.Model,
		Tier:  selection.Tier,
	}

	payload, err := parseNotePayload(resp.Text)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("model", resp.Model).
			Int("response_chars", len(resp.Text)).
			Msg("clinical note output did not parse, keeping degraded note")
		note.Outcome = entities.ParseDegraded
		note.RawResponse = resp.Text
		note.Entities = map[string][]string{}
	} else {
		note.Outcome = entities.ParseStructured
		note.Sections = entities.NoteSections{
			Subjective: payload.Subjective,
			Objective:  payload.Objective,
			Assessment: payload.Assessment,
			Plan:       payload.Plan,
		}
		note.Entities = payload.Entities
		if note.Entities == nil {
			note.Entities = map[string][]string{}
		}
	}

	hash, err := contentHash(note)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash clinical note", err)
	}
	note.ContentHash = hash
	return note, nil
}

func parseNotePayload(text string) (*notePayload, error) {
	cleaned := []byte(cleanJSON(text))
	if !json.Valid(cleaned) {
		return nil, errors.New("output is not valid JSON")
	}
	if err := validateSchema(noteSchema, cleaned); err != nil {
		return nil, err
	}

	var payload notePayload
	if err := json.Unmarshal(cleaned, &payload); err != nil {
		return nil, fmt.Errorf("decode note payload: %w", err)
	}
	if payload.Subjective == "" && payload.Objective == "" && payload.Assessment == "" && payload.Plan == "" {
		return nil, errEmptySections
	}
	return &payload, nil
}

// contentHash is the sha256 of the RFC 8785 canonical form of the note content.
func contentHash(note *entities.ClinicalNote) (string, error) {
	content := struct {
		Sections    entities.NoteSections `json:"sections"`
		Entities    map[string][]string   `json:"entities"`
		Outcome     entities.ParseOutcome `json:"outcome"`
		RawResponse string                `json:"raw_response"`
	}{note.Sections, note.Entities, note.Outcome, note.RawResponse}

	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
