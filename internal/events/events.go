// Package events publishes terminal generation transitions so that browser
// sessions holding a realtime subscription can stop polling early.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CRMWizAI/sora2api/internal/models"
)

const (
	GenerationCompleted = "generation.completed"
	GenerationFailed    = "generation.failed"
)

type Event struct {
	Type         string    `json:"type"`
	GenerationID string    `json:"generation_id"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// UserChannel is the channel a user's terminal events are published on.
func UserChannel(userID string) string {
	return fmt.Sprintf("generations:%s", userID)
}

func CompletedEvent(g *models.Generation, videoURL string) Event {
	return Event{
		Type:         GenerationCompleted,
		GenerationID: g.ID,
		UserID:       g.UserID,
		Status:       string(models.StatusCompleted),
		VideoURL:     videoURL,
		At:           time.Now().UTC(),
	}
}

func FailedEvent(g *models.Generation, message string) Event {
	return Event{
		Type:         GenerationFailed,
		GenerationID: g.ID,
		UserID:       g.UserID,
		Status:       string(models.StatusFailed),
		ErrorMessage: message,
		At:           time.Now().UTC(),
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, UserChannel(e.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}
