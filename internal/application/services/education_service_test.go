package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

func TestEducationService_StreamBuildsRequest(t *testing.T) {
	gw := newScriptedGateway()
	gw.stream = []entities.StreamEvent{
		{Type: entities.StreamEventStatus, Content: "started"},
		{Type: entities.StreamEventText, Content: "Premature ventricular contractions are..."},
	}
	svc := services.NewEducationService(gw, services.NewTierPolicy(""))

	events, err := svc.Stream(context.Background(), services.EducationRequest{
		Topic:        "  PVCs  ",
		ReadingLevel: "grade 8",
		NoteContext:  "Assessment: benign ectopy.",
		Tier:         entities.TierMaximum,
		Effort:       entities.EffortLow,
	})
	require.NoError(t, err)

	var got []entities.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	assert.Len(t, got, 2)

	req := gw.Requests()[0]
	assert.Equal(t, entities.SubsystemEducation, req.Subsystem)
	assert.Equal(t, "claude-opus-4-20250514", req.Model)
	assert.Equal(t, 2048, req.ThinkingBudget)
	assert.True(t, req.CachingEnabled)
	prompt := req.Messages[0].Content
	assert.True(t, strings.HasPrefix(prompt, "Topic: PVCs\n"))
	assert.Contains(t, prompt, "Reading level: grade 8")
	assert.Contains(t, prompt, "benign ectopy")
}

func TestEducationService_DefaultReadingLevel(t *testing.T) {
	gw := newScriptedGateway()
	svc := services.NewEducationService(gw, services.NewTierPolicy(""))

	events, err := svc.Stream(context.Background(), services.EducationRequest{Topic: "Holter monitor"})
	require.NoError(t, err)
	for range events {
	}

	assert.Contains(t, gw.Requests()[0].Messages[0].Content, "Reading level: grade 6")
	assert.NotContains(t, gw.Requests()[0].Messages[0].Content, "Clinician's note")
}

func TestEducationService_Validation(t *testing.T) {
	gw := newScriptedGateway()
	svc := services.NewEducationService(gw, services.NewTierPolicy(""))

	_, err := svc.Stream(context.Background(), services.EducationRequest{Topic: "   "})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Stream(context.Background(), services.EducationRequest{Topic: strings.Repeat("x", 501)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	assert.Empty(t, gw.Requests(), "invalid requests never reach the gateway")
}

func TestEducationService_OpenFailure(t *testing.T) {
	cause := &providers.GatewayError{Kind: providers.FailureRateLimited, Status: 429}
	gw := newScriptedGateway()
	gw.streamErr = cause
	svc := services.NewEducationService(gw, services.NewTierPolicy(""))

	events, err := svc.Stream(context.Background(), services.EducationRequest{Topic: "Asthma"})

	assert.Nil(t, events)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeGenerationFailed))
	assert.Equal(t, providers.FailureRateLimited, providers.FailureKindOf(err))
}
