package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zatekoja/visitscribe/internal/infrastructure/clients/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the transcript and note tables if they are missing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := bootstrap(ctx, "migrate", os.Stdout, false)
		if err != nil {
			return err
		}
		defer a.shutdown(ctx)

		pgClient, err := postgres.NewClient(ctx, &a.cfg.Database)
		if err != nil {
			return err
		}
		defer pgClient.Close()

		return pgClient.EnsureSchema(ctx)
	},
}
