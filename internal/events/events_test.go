package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRMWizAI/sora2api/internal/events"
	"github.com/CRMWizAI/sora2api/internal/models"
)

func TestEventPayloads(t *testing.T) {
	g := &models.Generation{ID: "gen-1", UserID: "user-1"}

	done := events.CompletedEvent(g, "https://cdn/x.mp4")
	assert.Equal(t, events.GenerationCompleted, done.Type)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "https://cdn/x.mp4", done.VideoURL)
	assert.Empty(t, done.ErrorMessage)

	failed := events.FailedEvent(g, "quota exceeded")
	assert.Equal(t, events.GenerationFailed, failed.Type)
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "quota exceeded", failed.ErrorMessage)
	assert.Empty(t, failed.VideoURL)

	assert.Equal(t, "generations:user-1", events.UserChannel("user-1"))
}

func TestRedisPublisher_PublishesOnUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, "generations:user-1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	other := rdb.Subscribe(ctx, "generations:user-2")
	defer other.Close()
	_, err = other.Receive(ctx)
	require.NoError(t, err)

	g := &models.Generation{ID: "gen-1", UserID: "user-1"}
	require.NoError(t, events.NewRedisPublisher(rdb).Publish(ctx, events.CompletedEvent(g, "https://cdn/x.mp4")))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "generations:user-1", msg.Channel)

		var got events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, events.GenerationCompleted, got.Type)
		assert.Equal(t, "gen-1", got.GenerationID)
		assert.Equal(t, "https://cdn/x.mp4", got.VideoURL)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	select {
	case msg := <-other.Channel():
		t.Fatalf("event leaked to another user's channel: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	g := &models.Generation{ID: "gen-1", UserID: "user-1"}
	err := events.NewRedisPublisher(rdb).Publish(context.Background(), events.FailedEvent(g, "boom"))
	assert.Error(t, err)
}
