package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/visitscribe/internal/adapters/cache"
	"github.com/zatekoja/visitscribe/internal/adapters/database"
	"github.com/zatekoja/visitscribe/internal/adapters/queue"
	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/redis"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the clinical note job runner",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "parallel jobs (overrides WORKER_CONCURRENCY)")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, "worker", os.Stdout, true)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	redisClient, err := redis.NewClient(ctx, &a.cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pgClient, err := postgres.NewClient(ctx, &a.cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	pipeline := services.NewNotePipeline(
		database.NewTranscriptAdapter(pgClient),
		database.NewClinicalNoteAdapter(pgClient),
		services.NewTranscriptQualityEvaluator(a.cfg.Pipeline.MinTranscriptWords),
		services.NewClinicalNoteGenerator(a.gateway, a.policy),
		services.NewTerminologyAnnotator(a.gateway, a.policy),
		services.NewBudgetGuard(cache.NewRedisCounterStore(redisClient), a.cfg.Budget),
	)

	workerCfg := a.cfg.Worker
	if workerConcurrency > 0 {
		workerCfg.Concurrency = workerConcurrency
	}
	jobs := queue.NewRedisJobQueue(redisClient, workerCfg.QueueName)
	defer jobs.Close()

	err = services.NewNoteWorker(jobs, pipeline, workerCfg).Run(ctx)
	log.Info().Msg("worker exited")
	return err
}
