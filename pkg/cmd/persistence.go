// Package cmd holds the shared wiring helpers the binaries use to build
// their persistence and event bus from configuration.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/persistence/file"
	"github.com/xjanova/postxagent/pkg/persistence/postgresql"
	"github.com/xjanova/postxagent/pkg/persistence/redis"
)

// NewPersistence builds the store selected by the URL scheme: postgres://,
// redis://, or a file path / file:// directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic("failed to initialize PostgreSQL persistence: " + err.Error())
		}

		return p
	case "redis":
		p, err := redis.NewPersistence(ctx, databaseURL)
		if err != nil {
			panic("failed to initialize Redis persistence: " + err.Error())
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "redis", "rediss":
		return "redis"
	default:
		return "file"
	}
}
