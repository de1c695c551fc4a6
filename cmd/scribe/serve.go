package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/visitscribe/internal/adapters/cache"
	"github.com/zatekoja/visitscribe/internal/adapters/database"
	"github.com/zatekoja/visitscribe/internal/adapters/queue"
	"github.com/zatekoja/visitscribe/internal/api/handlers"
	"github.com/zatekoja/visitscribe/internal/api/routes"
	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, "api", os.Stdout, true)
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

	budget := services.NewBudgetGuard(cache.NewRedisCounterStore(redisClient), a.cfg.Budget)
	jobs := queue.NewRedisJobQueue(redisClient, a.cfg.Worker.QueueName)
	defer jobs.Close()

	router := routes.NewRouter(
		handlers.NewNoteHandler(budget, jobs, database.NewClinicalNoteAdapter(pgClient), a.defaults),
		handlers.NewEducationStreamHandler(
			services.NewEducationService(a.gateway, a.policy),
			services.NewStreamingRelay(),
			budget,
			a.defaults,
		),
		handlers.NewBudgetHandler(budget),
		a.cfg.Server.AllowedOrigins,
		map[string]routes.ReadinessCheck{
			"postgres": pgClient.Ping,
			"redis":    redisClient.Ping,
		},
	)

	serverAddr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // education streams run for minutes
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
