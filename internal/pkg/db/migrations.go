package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "leaderinfo table",
		sql: `
		CREATE TABLE IF NOT EXISTS leaderinfo (
			id TEXT PRIMARY KEY,
			nick TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			avatar_url TEXT,
			department TEXT NOT NULL DEFAULT '',
			points_day BIGINT DEFAULT 0 CHECK (points_day >= 0),
			points_week BIGINT DEFAULT 0 CHECK (points_week >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_leaderinfo_points_day ON leaderinfo(points_day DESC);
		CREATE INDEX IF NOT EXISTS idx_leaderinfo_department ON leaderinfo(department);
		CREATE INDEX IF NOT EXISTS idx_leaderinfo_nick ON leaderinfo(TRIM(nick));
		`,
	},
	{
		name: "leader_weekly_summary table",
		sql: `
		CREATE TABLE IF NOT EXISTS leader_weekly_summary (
			id BIGSERIAL PRIMARY KEY,
			week_start DATE NOT NULL,
			week_end DATE NOT NULL,
			nick_1 TEXT NOT NULL DEFAULT '',
			dept_1 TEXT NOT NULL DEFAULT '',
			ash_1 BIGINT NOT NULL DEFAULT 0,
			nick_2 TEXT NOT NULL DEFAULT '',
			dept_2 TEXT NOT NULL DEFAULT '',
			ash_2 BIGINT NOT NULL DEFAULT 0,
			nick_3 TEXT NOT NULL DEFAULT '',
			dept_3 TEXT NOT NULL DEFAULT '',
			ash_3 BIGINT NOT NULL DEFAULT 0,
			total_ash BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_weekly_summary_start ON leader_weekly_summary(week_start DESC);
		`,
	},
	{
		name: "page_reactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS page_reactions (
			page TEXT NOT NULL,
			user_key TEXT NOT NULL,
			reaction TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (page, user_key)
		);
		`,
	},
	{
		name: "page_reaction_counts view",
		sql: `
		CREATE OR REPLACE VIEW page_reaction_counts AS
		SELECT
			page,
			reaction,
			COUNT(*) AS cnt
		FROM page_reactions
		GROUP BY page, reaction;
		`,
	},
	{
		name: "users table",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			nick TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			avatar_url TEXT,
			account_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_account_id ON users(account_id);
		`,
	},
	{
		name: "personal_files table",
		sql: `
		CREATE TABLE IF NOT EXISTS personal_files (
			id TEXT PRIMARY KEY,
			forum_nick TEXT NOT NULL DEFAULT '',
			forum_dept TEXT NOT NULL DEFAULT '',
			account_number TEXT NOT NULL DEFAULT '',
			rank TEXT NOT NULL DEFAULT ''
		);
		`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
