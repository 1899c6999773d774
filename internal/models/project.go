package models

import (
	"time"

	"github.com/google/uuid"
)

const ProjectStatusCompleted = "completed"

type Project struct {
	ID             uuid.UUID `json:"id"`
	InputImageURL  string    `json:"input_image_url"`
	OutputImageURL string    `json:"output_image_url"`
	Prompt         string    `json:"prompt"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type WaitlistEntry struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
