package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/driphq/drip/pkg/persistence"
	"github.com/driphq/drip/pkg/persistence/file"
	"github.com/driphq/drip/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from a database URL. Postgres
// URLs get the SQL backend; anything else falls back to file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
