package postgresql

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/xjanova/postxagent/pkg/persistence/sqlbase"
)

func runMigrations(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	return sqlbase.NewMigrationManager(logger, db, migrations()).RunMigrations(ctx)
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				platform VARCHAR(100) NOT NULL,
				task_type VARCHAR(100) NOT NULL,
				name VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				steps JSONB NOT NULL DEFAULT '[]',
				success_count INTEGER NOT NULL DEFAULT 0,
				failure_count INTEGER NOT NULL DEFAULT 0,
				confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
				is_active BOOLEAN NOT NULL DEFAULT false,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				last_success_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_active_lookup
				ON workflows (platform, task_type, version DESC)
				WHERE is_active;

			CREATE TABLE IF NOT EXISTS teaching_sessions (
				id UUID PRIMARY KEY,
				platform VARCHAR(100) NOT NULL,
				task_type VARCHAR(100) NOT NULL,
				status VARCHAR(20) NOT NULL,
				current_step INTEGER NOT NULL DEFAULT 0,
				steps JSONB NOT NULL DEFAULT '[]',
				browser_session_id VARCHAR(255),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);
		`,
	}
}
