package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migration is one schema step. Versions are ordered and recorded in
// schema_migrations, so a step runs exactly once per database.
type migration struct {
	version int
	name    string
	sql     string
}

// The table grew over several iterations of the service (machine binding,
// then usage quotas). The steps are kept separate so existing deployments
// upgrade in place.
var migrations = []migration{
	{
		version: 1,
		name:    "create_app_users",
		sql: `
CREATE TABLE IF NOT EXISTS app_users (
    username   TEXT PRIMARY KEY,
    password   TEXT NOT NULL,
    plan       TEXT NOT NULL DEFAULT 'trial',
    expires_at TEXT NOT NULL DEFAULT '',
    is_active  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
	{
		version: 2,
		name:    "add_machine_id",
		sql:     `ALTER TABLE app_users ADD COLUMN IF NOT EXISTS machine_id TEXT;`,
	},
	{
		version: 3,
		name:    "add_video_quota",
		sql: `
ALTER TABLE app_users ADD COLUMN IF NOT EXISTS video_limit INT;
ALTER TABLE app_users ADD COLUMN IF NOT EXISTS videos_used INT NOT NULL DEFAULT 0;
`,
	},
}

// Migrate applies all pending migrations. Call it once at startup, before
// the HTTP listener binds.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.version, m.name,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
