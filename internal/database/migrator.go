package database

import (
	"bytes"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"testing/fstest"
	"text/template"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Tables names the tables the migrations create. Both are configurable.
type Tables struct {
	Waitlist string
	Projects string
}

type Migrator struct {
	db  *sql.DB
	log *zap.Logger
}

func NewMigrator(db *sql.DB, log *zap.Logger, tables Tables) (*Migrator, error) {
	rendered, err := RenderMigrations(tables)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(rendered)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	goose.SetLogger(zap.NewStdLog(log.Named("goose")))

	return &Migrator{db: db, log: log}, nil
}

// Run applies every pending migration in order, each in its own transaction.
func (m *Migrator) Run() error {
	if err := goose.Up(m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	m.log.Info("migrations applied", zap.Int64("version", version))
	return nil
}

// RenderMigrations fills the embedded migration templates with quoted table
// identifiers.
func RenderMigrations(tables Tables) (fs.FS, error) {
	if tables.Waitlist == "" || tables.Projects == "" {
		return nil, fmt.Errorf("migration table names must not be empty")
	}

	data := struct {
		Waitlist               string
		Projects               string
		ProjectsCreatedAtIndex string
	}{
		Waitlist:               pq.QuoteIdentifier(tables.Waitlist),
		Projects:               pq.QuoteIdentifier(tables.Projects),
		ProjectsCreatedAtIndex: pq.QuoteIdentifier("idx_" + tables.Projects + "_created_at"),
	}

	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	rendered := fstest.MapFS{}
	for _, entry := range entries {
		name := path.Join(migrationsDir, entry.Name())
		raw, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		tmpl, err := template.New(entry.Name()).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %w", entry.Name(), err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to render migration %s: %w", entry.Name(), err)
		}

		rendered[name] = &fstest.MapFile{Data: buf.Bytes(), Mode: 0o444}
	}

	return rendered, nil
}
