package models

import "time"

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Upstream status code and raw body when the provider rejected a job.
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

type CreateResponse struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generation_id"`
	JobID        string `json:"job_id"`
}

type StatusResponse struct {
	Status       string `json:"status"`
	VideoURL     string `json:"video_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Progress     *int   `json:"progress,omitempty"`
}

type GenerationResponse struct {
	ID           string    `json:"id"`
	ImageURL     string    `json:"image_url,omitempty"`
	Prompt       string    `json:"prompt"`
	AspectRatio  string    `json:"aspect_ratio"`
	Duration     int       `json:"duration"`
	Status       string    `json:"status"`
	JobID        string    `json:"job_id"`
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type GenerationListResponse struct {
	Generations []GenerationResponse `json:"generations"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewGenerationResponse(g *Generation) GenerationResponse {
	r := GenerationResponse{
		ID:          g.ID,
		Prompt:      g.Prompt,
		AspectRatio: g.AspectRatio,
		Duration:    g.Duration,
		Status:      string(g.Status),
		JobID:       g.JobID,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
	if g.ImageURL != nil {
		r.ImageURL = *g.ImageURL
	}
	if g.VideoURL != nil {
		r.VideoURL = *g.VideoURL
	}
	if g.ErrorMessage != nil {
		r.ErrorMessage = *g.ErrorMessage
	}
	return r
}
