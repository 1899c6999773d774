package supabase

import (
	"context"

	"studio-backend/internal/models"
)

// RestClient writes rows through the PostgREST API, used when no direct
// database connection is configured.
type RestClient struct {
	client        *Client
	waitlistTable string
	projectsTable string
}

func NewRestClient(client *Client, waitlistTable, projectsTable string) *RestClient {
	return &RestClient{
		client:        client,
		waitlistTable: waitlistTable,
		projectsTable: projectsTable,
	}
}

type waitlistRow struct {
	Email string `json:"email"`
}

type projectRow struct {
	InputImageURL  string `json:"input_image_url"`
	OutputImageURL string `json:"output_image_url"`
	Prompt         string `json:"prompt"`
	Status         string `json:"status"`
}

func (r *RestClient) AddToWaitlist(ctx context.Context, email string) error {
	_, _, err := r.client.Supabase.From(r.waitlistTable).
		Insert(waitlistRow{Email: email}, false, "", "minimal", "").
		ExecuteWithContext(ctx)
	return fromPostgrest(err)
}

func (r *RestClient) CreateProject(ctx context.Context, project *models.Project) error {
	_, _, err := r.client.Supabase.From(r.projectsTable).
		Insert(projectRow{
			InputImageURL:  project.InputImageURL,
			OutputImageURL: project.OutputImageURL,
			Prompt:         project.Prompt,
			Status:         project.Status,
		}, false, "", "minimal", "").
		ExecuteWithContext(ctx)
	return fromPostgrest(err)
}
