package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

const structuredNote = "```json\n" + `{
  "subjective": "Patient has PVCs daily.",
  "objective": "Pulse irregular at 78 bpm.",
  "assessment": "Benign premature ventricular contractions.",
  "plan": "Holter monitor for 24 hours. Reduce caffeine.",
  "entities": {"conditions": ["PVCs"], "procedures": ["Holter monitor"]}
}` + "\n```"

var visit = entities.VisitMetadata{
	Specialty:    "cardiology",
	VisitDate:    time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
	Practitioner: "Dr. Okafor",
}

func newGenerator(gw providers.ReasoningGateway) *services.ClinicalNoteGenerator {
	return services.NewClinicalNoteGenerator(gw, services.NewTierPolicy("")).WithLogger(zerolog.Nop())
}

func TestClinicalNoteGenerator_Structured(t *testing.T) {
	gw := newScriptedGateway().reply(entities.SubsystemClinicalNote, structuredNote)

	note, err := newGenerator(gw).Generate(context.Background(), "transcript text", visit, entities.TierEnhanced, entities.EffortMedium)
	require.NoError(t, err)

	assert.Equal(t, entities.ParseStructured, note.Outcome)
	assert.False(t, note.Degraded())
	assert.Equal(t, "Patient has PVCs daily.", note.Sections.Subjective)
	assert.Equal(t, []string{"Holter monitor"}, note.Entities["procedures"])
	assert.Empty(t, note.RawResponse)
	assert.Len(t, note.ContentHash, 64)

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "claude-sonnet-4-20250514", reqs[0].Model)
	assert.Equal(t, 8000, reqs[0].ThinkingBudget)
	assert.Equal(t, entities.SubsystemClinicalNote, reqs[0].Subsystem)
	assert.Contains(t, reqs[0].Messages[0].Content, "Specialty: cardiology")
	assert.Contains(t, reqs[0].Messages[0].Content, "Visit date: 2026-02-27")
	assert.NotContains(t, reqs[0].SystemPrompt, "guideline")
}

func TestClinicalNoteGenerator_MaximumTierIncludesGuidelines(t *testing.T) {
	gw := newScriptedGateway().reply(entities.SubsystemClinicalNote, structuredNote)

	_, err := newGenerator(gw).Generate(context.Background(), "text", visit, entities.TierMaximum, entities.EffortMedium)
	require.NoError(t, err)

	assert.Contains(t, gw.Requests()[0].SystemPrompt, "guideline")
}

func TestClinicalNoteGenerator_DegradedOutput(t *testing.T) {
	cases := map[string]string{
		"prose":          "The patient seems fine. Subjective: cough.",
		"truncated json": `{"subjective": "cough`,
		"wrong types":    `{"subjective": 12, "plan": ["rest"]}`,
		"no sections":    `{"entities": {"conditions": []}}`,
		"blank sections": `{"subjective": "", "objective": "", "assessment": "", "plan": ""}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			gw := newScriptedGateway().reply(entities.SubsystemClinicalNote, raw)

			note, err := newGenerator(gw).Generate(context.Background(), "text", visit, entities.TierBasic, entities.EffortLow)
			require.NoError(t, err)

			assert.True(t, note.Degraded())
			assert.True(t, note.Sections.IsEmpty())
			assert.Equal(t, raw, note.RawResponse)
			assert.NotNil(t, note.Entities)
		})
	}
}

func TestClinicalNoteGenerator_GatewayFailure(t *testing.T) {
	cause := &providers.GatewayError{Kind: providers.FailureOverloaded, Status: 529, Message: "overloaded"}
	gw := newScriptedGateway().fail(entities.SubsystemClinicalNote, cause)

	note, err := newGenerator(gw).Generate(context.Background(), "text", visit, entities.TierEnhanced, entities.EffortMedium)

	assert.Nil(t, note)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeGenerationFailed))
	var gwErr *providers.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Same(t, cause, gwErr)
}

func TestClinicalNoteGenerator_IsIdempotent(t *testing.T) {
	gw := newScriptedGateway().
		reply(entities.SubsystemClinicalNote, structuredNote).
		reply(entities.SubsystemClinicalNote, structuredNote)
	generator := newGenerator(gw)

	first, err := generator.Generate(context.Background(), "same transcript", visit, entities.TierEnhanced, entities.EffortMedium)
	require.NoError(t, err)
	second, err := generator.Generate(context.Background(), "same transcript", visit, entities.TierEnhanced, entities.EffortMedium)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-generation changed the note (-first +second):\n%s", diff)
	}
	assert.Equal(t, gw.Requests()[0], gw.Requests()[1])
}

func TestClinicalNoteGenerator_HashIgnoresKeyOrder(t *testing.T) {
	reordered := `{"plan": "Holter monitor for 24 hours. Reduce caffeine.",
		"entities": {"procedures": ["Holter monitor"], "conditions": ["PVCs"]},
		"assessment": "Benign premature ventricular contractions.",
		"objective": "Pulse irregular at 78 bpm.",
		"subjective": "Patient has PVCs daily."}`
	gw := newScriptedGateway().
		reply(entities.SubsystemClinicalNote, structuredNote).
		reply(entities.SubsystemClinicalNote, reordered)
	generator := newGenerator(gw)

	a, err := generator.Generate(context.Background(), "t", visit, entities.TierEnhanced, entities.EffortMedium)
	require.NoError(t, err)
	b, err := generator.Generate(context.Background(), "t", visit, entities.TierEnhanced, entities.EffortMedium)
	require.NoError(t, err)

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.False(t, strings.Contains(a.ContentHash, " "))
}
