package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

//go:embed migrations
var migrationFS embed.FS

const (
	ServiceAuth    = "auth"
	ServiceProduct = "product"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Migrate applies every pending up migration of a service in name order.
// Applied migrations are recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB, service string) ([]string, error) {
	names, err := migrationNames(service, ".up.sql")
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var applied []string
	for _, name := range names {
		ok, err := applyOnce(ctx, db, service, name)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, name)
		}
	}
	return applied, nil
}

// MigrationContent finds a single migration of a service by name suffix,
// e.g. "create_users.up".
func MigrationContent(service, migrationName string) (string, []byte, error) {
	pattern, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return "", nil, fmt.Errorf("invalid migration name: %w", err)
	}

	names, err := migrationNames(service, ".sql")
	if err != nil {
		return "", nil, err
	}
	for _, name := range names {
		if pattern.MatchString(name) {
			content, err := fs.ReadFile(migrationFS, path.Join("migrations", service, name))
			return name, content, err
		}
	}
	return "", nil, fmt.Errorf("migration %q not found for %s", migrationName, service)
}

func migrationNames(service, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, path.Join("migrations", service))
	if err != nil {
		return nil, fmt.Errorf("unknown service %q: %w", service, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func applyOnce(ctx context.Context, db *sql.DB, service, name string) (bool, error) {
	content, err := fs.ReadFile(migrationFS, path.Join("migrations", service, name))
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	key := service + "/" + name
	res, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return false, fmt.Errorf("failed to execute migration %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", key, err)
	}
	return true, nil
}
