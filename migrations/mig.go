package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed files/*.sql
var migrationFS embed.FS

// Up brings the identity schema to the latest version. Each call builds its
// own goose provider, so databases can be migrated concurrently.
func Up(ctx context.Context, db *sql.DB) error {
	files, err := fs.Sub(migrationFS, "files")
	if err != nil {
		return fmt.Errorf("open migration files: %w", err)
	}
	provider, err := goose.NewProvider(database.DialectSQLite3, db, files)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, r := range results {
		slog.DebugContext(ctx, "migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
