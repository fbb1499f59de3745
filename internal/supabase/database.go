package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/CRMWizAI/sora2api/internal/models"
)

const generationColumns = `id, user_id, image_url, prompt, aspect_ratio, duration,
	status, job_id, video_url, error_message, created_at, updated_at`

// DatabaseClient is the Postgres record store, talking to the Supabase
// database directly over lib/pq.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the pool for the migrator.
func (d *DatabaseClient) DB() *sql.DB { return d.db }

func (d *DatabaseClient) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DatabaseClient) Close() error { return d.db.Close() }

func (d *DatabaseClient) Create(ctx context.Context, g *models.Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = models.StatusProcessing
	}

	err := d.db.QueryRowContext(ctx, `
		INSERT INTO video_generations (id, user_id, image_url, prompt, aspect_ratio, duration, status, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, g.ID, g.UserID, g.ImageURL, g.Prompt, g.AspectRatio, g.Duration, g.Status, g.JobID,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+generationColumns+` FROM video_generations WHERE id = $1`, id)
	g, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return g, nil
}

func (d *DatabaseClient) ListByUser(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+generationColumns+`
		FROM video_generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var gens []models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, *g)
	}
	return gens, rows.Err()
}

func (d *DatabaseClient) CompleteIfProcessing(ctx context.Context, id, videoURL string) (bool, error) {
	return d.finish(ctx, `
		UPDATE video_generations
		SET status = 'completed', video_url = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, videoURL)
}

func (d *DatabaseClient) FailIfProcessing(ctx context.Context, id, message string) (bool, error) {
	return d.finish(ctx, `
		UPDATE video_generations
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, message)
}

func (d *DatabaseClient) finish(ctx context.Context, query, id, value string) (bool, error) {
	res, err := d.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return false, fmt.Errorf("failed to update generation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*models.Generation, error) {
	var (
		g                             models.Generation
		imageURL, videoURL, errorText sql.NullString
	)
	err := row.Scan(
		&g.ID, &g.UserID, &imageURL, &g.Prompt, &g.AspectRatio, &g.Duration,
		&g.Status, &g.JobID, &videoURL, &errorText, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.ImageURL = nullable(imageURL)
	g.VideoURL = nullable(videoURL)
	g.ErrorMessage = nullable(errorText)
	return &g, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
