package supabase_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"studio-backend/internal/models"
	"studio-backend/internal/supabase"
)

func TestDatabaseClient_AddToWaitlist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := supabase.NewDatabaseClientFromDB(db, "waitlist", "projects")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "waitlist" (id, email)`)).
		WithArgs(sqlmock.AnyArg(), "a@b.co").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, client.AddToWaitlist(context.Background(), "a@b.co"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_AddToWaitlist_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := supabase.NewDatabaseClientFromDB(db, "waitlist", "projects")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "waitlist"`)).
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "waitlist_email_key"`})

	err = client.AddToWaitlist(context.Background(), "a@b.co")
	require.Error(t, err)
	assert.ErrorIs(t, err, supabase.ErrAlreadyExists)

	var dbErr *supabase.DBError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, "23505", dbErr.Code)
}

func TestDatabaseClient_CreateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := supabase.NewDatabaseClientFromDB(db, "waitlist", "studio_projects")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "studio_projects"`)).
		WithArgs(sqlmock.AnyArg(), "https://in", "https://out", "add sunset", models.ProjectStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	project := &models.Project{
		InputImageURL:  "https://in",
		OutputImageURL: "https://out",
		Prompt:         "add sunset",
		Status:         models.ProjectStatusCompleted,
	}
	require.NoError(t, client.CreateProject(context.Background(), project))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", project.ID.String())
	assert.Equal(t, created, project.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseClient_CreateProject_OtherError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := supabase.NewDatabaseClientFromDB(db, "waitlist", "projects")
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "projects"`)).
		WillReturnError(errors.New("connection reset"))

	err = client.CreateProject(context.Background(), &models.Project{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, supabase.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "connection reset")
}
