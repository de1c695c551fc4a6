package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SchemaVersion is bumped whenever schema.sql changes.
const SchemaVersion = 1

//go:embed schema.sql
var schemaDDL string

// EnsureSchema creates the transcript and note tables when missing and records
// SchemaVersion. It refuses to touch a database stamped with a newer version.
func (c *Client) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, SchemaVersion)
	case current < SchemaVersion:
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, SchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	log.Info().Int("from", current).Int("to", SchemaVersion).Msg("schema ensured")
	return nil
}
