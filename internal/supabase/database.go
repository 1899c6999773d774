package supabase

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"studio-backend/internal/models"
)

// DatabaseClient writes waitlist and project rows over a direct Postgres connection.
type DatabaseClient struct {
	db            *sql.DB
	waitlistTable string
	projectsTable string
}

func NewDatabaseClient(connectionString, waitlistTable, projectsTable string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDatabaseClientFromDB(db, waitlistTable, projectsTable), nil
}

func NewDatabaseClientFromDB(db *sql.DB, waitlistTable, projectsTable string) *DatabaseClient {
	return &DatabaseClient{
		db:            db,
		waitlistTable: waitlistTable,
		projectsTable: projectsTable,
	}
}

func (d *DatabaseClient) AddToWaitlist(ctx context.Context, email string) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, email) VALUES ($1, $2)`, pq.QuoteIdentifier(d.waitlistTable))
	if _, err := d.db.ExecContext(ctx, query, uuid.New(), email); err != nil {
		return fromPQ(err)
	}
	return nil
}

func (d *DatabaseClient) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, input_image_url, output_image_url, prompt, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, pq.QuoteIdentifier(d.projectsTable))

	err := d.db.QueryRowContext(ctx, query,
		project.ID, project.InputImageURL, project.OutputImageURL, project.Prompt, project.Status,
	).Scan(&project.CreatedAt)
	if err != nil {
		return fromPQ(err)
	}

	return nil
}

func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
