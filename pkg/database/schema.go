package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SchemaStatements creates the poll tables. Each statement is idempotent.
var SchemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

	`CREATE TABLE IF NOT EXISTS polls (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		allow_multiple_votes BOOLEAN NOT NULL DEFAULT FALSE,
		total_votes BIGINT NOT NULL DEFAULT 0 CHECK (total_votes >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_active_created ON polls (is_active, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS options (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		text VARCHAR(200) NOT NULL,
		display_order INTEGER NOT NULL DEFAULT 0,
		vote_count BIGINT NOT NULL DEFAULT 0 CHECK (vote_count >= 0)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_options_poll_text ON options (poll_id, lower(text))`,
	`CREATE INDEX IF NOT EXISTS idx_options_poll_order ON options (poll_id, display_order)`,

	`CREATE TABLE IF NOT EXISTS votes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		option_id UUID NOT NULL REFERENCES options(id) ON DELETE CASCADE,
		user_id TEXT,
		voter_address TEXT,
		voter_session TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT votes_voter_bound CHECK (
			user_id IS NOT NULL OR voter_address IS NOT NULL OR voter_session IS NOT NULL
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_poll ON votes (poll_id)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_option ON votes (option_id)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_user_created ON votes (user_id, created_at DESC) WHERE user_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS vote_claims (
		poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		claim TEXT NOT NULL,
		PRIMARY KEY (poll_id, claim)
	)`,

	`CREATE TABLE IF NOT EXISTS poll_results (
		poll_id UUID PRIMARY KEY REFERENCES polls(id) ON DELETE CASCADE,
		total_votes BIGINT NOT NULL DEFAULT 0,
		results_data JSONB NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// DropStatements removes the poll tables in dependency order
var DropStatements = []string{
	`DROP TABLE IF EXISTS poll_results CASCADE`,
	`DROP TABLE IF EXISTS vote_claims CASCADE`,
	`DROP TABLE IF EXISTS votes CASCADE`,
	`DROP TABLE IF EXISTS options CASCADE`,
	`DROP TABLE IF EXISTS polls CASCADE`,
}

// ApplySchema creates all tables and indexes
func ApplySchema(ctx context.Context, db Execer) error {
	return execAll(ctx, db, SchemaStatements)
}

// DropSchema drops all tables
func DropSchema(ctx context.Context, db Execer) error {
	return execAll(ctx, db, DropStatements)
}

func execAll(ctx context.Context, db Execer, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
