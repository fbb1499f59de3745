package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/CRMWizAI/sora2api/internal/models"
)

const generationsTable = "video_generations"

// RestStore keeps generation records through PostgREST. Used when the
// service cannot reach Postgres directly.
type RestStore struct {
	client *Client
}

func NewRestStore(client *Client) *RestStore {
	return &RestStore{client: client}
}

func (s *RestStore) Create(_ context.Context, g *models.Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = models.StatusProcessing
	}

	row := map[string]any{
		"id":           g.ID,
		"user_id":      g.UserID,
		"prompt":       g.Prompt,
		"aspect_ratio": g.AspectRatio,
		"duration":     g.Duration,
		"status":       g.Status,
		"job_id":       g.JobID,
	}
	if g.ImageURL != nil {
		row["image_url"] = *g.ImageURL
	}

	data, _, err := s.client.Supabase.From(generationsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	created, err := decodeGenerations(data)
	if err != nil {
		return err
	}
	if len(created) == 1 {
		g.CreatedAt = created[0].CreatedAt
		g.UpdatedAt = created[0].UpdatedAt
	}
	return nil
}

func (s *RestStore) GetByID(_ context.Context, id string) (*models.Generation, error) {
	data, _, err := s.client.Supabase.From(generationsTable).
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query generation: %w", err)
	}

	gens, err := decodeGenerations(data)
	if err != nil {
		return nil, err
	}
	if len(gens) == 0 {
		return nil, models.ErrGenerationNotFound
	}
	return &gens[0], nil
}

func (s *RestStore) ListByUser(_ context.Context, userID string, limit int) ([]models.Generation, error) {
	data, _, err := s.client.Supabase.From(generationsTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return decodeGenerations(data)
}

func (s *RestStore) CompleteIfProcessing(_ context.Context, id, videoURL string) (bool, error) {
	return s.finish(id, map[string]any{
		"status":     models.StatusCompleted,
		"video_url":  videoURL,
		"updated_at": time.Now().UTC(),
	})
}

func (s *RestStore) FailIfProcessing(_ context.Context, id, message string) (bool, error) {
	return s.finish(id, map[string]any{
		"status":        models.StatusFailed,
		"error_message": message,
		"updated_at":    time.Now().UTC(),
	})
}

// finish updates only while the row is still processing; PostgREST returns
// the rows it changed, so an empty array means another writer got there first.
func (s *RestStore) finish(id string, update map[string]any) (bool, error) {
	data, _, err := s.client.Supabase.From(generationsTable).
		Update(update, "representation", "").
		Eq("id", id).
		Eq("status", string(models.StatusProcessing)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to update generation: %w", err)
	}

	updated, err := decodeGenerations(data)
	if err != nil {
		return false, err
	}
	return len(updated) == 1, nil
}

func decodeGenerations(data []byte) ([]models.Generation, error) {
	var gens []models.Generation
	if len(data) == 0 {
		return gens, nil
	}
	if err := json.Unmarshal(data, &gens); err != nil {
		return nil, fmt.Errorf("failed to parse generations response: %w", err)
	}
	return gens, nil
}
