package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/CRMWizAI/sora2api/internal/models"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Generation{})
}

// GormStore is the SQLite record store used for local development.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Create(ctx context.Context, g *models.Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = models.StatusProcessing
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	var g models.Generation
	err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return &g, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	var gens []models.Generation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&gens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return gens, nil
}

func (s *GormStore) CompleteIfProcessing(ctx context.Context, id, videoURL string) (bool, error) {
	return s.finish(ctx, id, map[string]any{
		"status":    models.StatusCompleted,
		"video_url": videoURL,
	})
}

func (s *GormStore) FailIfProcessing(ctx context.Context, id, message string) (bool, error) {
	return s.finish(ctx, id, map[string]any{
		"status":        models.StatusFailed,
		"error_message": message,
	})
}

func (s *GormStore) finish(ctx context.Context, id string, update map[string]any) (bool, error) {
	update["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(update)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update generation: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
