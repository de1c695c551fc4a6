package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/reasoning"
	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
	"github.com/zatekoja/visitscribe/pkg/config"
	"github.com/zatekoja/visitscribe/pkg/secrets"
)

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	policy   *services.TierPolicy
	gateway  *reasoning.Client
	defaults services.RequestDefaults
	shutdown func(context.Context) error
}

// bootstrap loads secrets and configuration, installs logging on logOut, sets
// up telemetry and, when withGateway is set, builds the reasoning gateway.
func bootstrap(ctx context.Context, component string, logOut io.Writer, withGateway bool) (*app, error) {
	loaded, err := secrets.Apply(ctx, secrets.ConfigFromEnv(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	observability.InitLogger(logOut, observability.LogOptions{
		Service: cfg.App.Name + "-" + component,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
	})
	if loaded.Enabled {
		log.Info().
			Str("path", loaded.Path).
			Strs("loaded", loaded.Loaded).
			Strs("skipped", loaded.Skipped).
			Msg("secrets loaded from vault")
	}

	a := &app{
		cfg:      cfg,
		defaults: services.DefaultsFromConfig(cfg.Pipeline),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("telemetry disabled")
		} else {
			a.shutdown = shutdown
		}
	}

	if cfg.Pipeline.TierPolicyFile != "" {
		a.policy, err = services.LoadTierPolicy(cfg.Pipeline.TierPolicyFile, cfg.Reasoning.ForceModel)
		if err != nil {
			return nil, err
		}
	} else {
		a.policy = services.NewTierPolicy(cfg.Reasoning.ForceModel)
	}
	if cfg.Reasoning.ForceModel != "" {
		log.Warn().Str("model", cfg.Reasoning.ForceModel).Msg("every tier is pinned to one model")
	}

	if withGateway {
		a.gateway, err = reasoning.NewClient(&cfg.Reasoning)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// drafter generates and annotates without persistence or budget.
type drafter struct {
	generator *services.ClinicalNoteGenerator
	annotator *services.TerminologyAnnotator
	tier      entities.Tier
	effort    entities.Effort
}

func (a *app) drafter(tier entities.Tier, effort entities.Effort) *drafter {
	return &drafter{
		generator: services.NewClinicalNoteGenerator(a.gateway, a.policy).WithLogger(log.Logger),
		annotator: services.NewTerminologyAnnotator(a.gateway, a.policy).WithLogger(log.Logger),
		tier:      tier,
		effort:    effort,
	}
}

func (d *drafter) Draft(ctx context.Context, transcript string, meta entities.VisitMetadata) (*entities.ClinicalNote, error) {
	note, err := d.generator.Generate(ctx, transcript, meta, d.tier, d.effort)
	if err != nil {
		return nil, err
	}
	if !note.Degraded() {
		note.Annotations = d.annotator.Annotate(ctx, note.Sections, d.tier, d.effort)
	}
	return note, nil
}
