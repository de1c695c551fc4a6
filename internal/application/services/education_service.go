package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	apperrors "github.com/zatekoja/visitscribe/pkg/errors"
)

const (
	maxEducationTopicChars   = 500
	maxEducationContextChars = 20000
)

// EducationRequest asks for a patient education document.
type EducationRequest struct {
	Topic        string          `json:"topic"`
	ReadingLevel string          `json:"reading_level,omitempty"`
	Language     string          `json:"language,omitempty"`
	NoteContext  string          `json:"note_context,omitempty"`
	Tier         entities.Tier   `json:"tier,omitempty"`
	Effort       entities.Effort `json:"effort,omitempty"`
}

// EducationService streams long-form patient education material.
type EducationService struct {
	gateway providers.ReasoningGateway
	policy  *TierPolicy
	logger  zerolog.Logger
}

// NewEducationService creates an education service.
func NewEducationService(gateway providers.ReasoningGateway, policy *TierPolicy) *EducationService {
	return &EducationService{
		gateway: gateway,
		policy:  policy,
		logger:  log.Logger.With().Str("component", "education_service").Logger(),
	}
}

// Validate checks the caller-supplied fields.
func (s *EducationService) Validate(req EducationRequest) error {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return apperrors.NewValidationError("topic is required")
	}
	if utf8.RuneCountInString(topic) > maxEducationTopicChars {
		return apperrors.NewValidationError("topic is too long")
	}
	if utf8.RuneCountInString(req.NoteContext) > maxEducationContextChars {
		return apperrors.NewValidationError("note context is too long")
	}
	return nil
}

// Stream opens the generation stream. Only opening is retried; once the channel
// is returned every failure arrives as a terminal error event.
func (s *EducationService) Stream(ctx context.Context, req EducationRequest) (<-chan entities.StreamEvent, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	req.Topic = strings.TrimSpace(req.Topic)

	selection := s.policy.Select(req.Tier, entities.SubsystemEducation, req.Effort)
	gwReq := &entities.GatewayRequest{
		SystemPrompt: educationSystemPrompt,
		Messages:     []entities.Message{{Role: "user", Content: buildEducationUserPrompt(req)}},
		Subsystem:    entities.SubsystemEducation,
	}
	selection.Apply(gwReq)

	events, err := s.gateway.Stream(ctx, gwReq)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("failure_class", string(providers.FailureKindOf(err))).
			Str("model", gwReq.Model).
			Msg("education stream failed to open")
		return nil, apperrors.NewGenerationFailedError("education generation failed", err)
	}

	s.logger.Debug().
		Str("tier", string(selection.Tier)).
		Str("model", gwReq.Model).
		Int("thinking_budget", gwReq.ThinkingBudget).
		Msg("education stream opened")
	return events, nil
}
