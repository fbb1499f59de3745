package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CRMWizAI/sora2api/internal/models"
)

func TestDecodeGenerateAction_Create(t *testing.T) {
	action, err := models.DecodeGenerateAction([]byte(
		`{"action":"create","image_url":"https://img.test/a.png","prompt":"a cat","aspect_ratio":"9:16","duration":8}`))
	require.NoError(t, err)

	create, ok := action.(models.CreateAction)
	require.True(t, ok)
	assert.Equal(t, models.CreateAction{
		ImageURL:    "https://img.test/a.png",
		Prompt:      "a cat",
		AspectRatio: "9:16",
		Duration:    8,
	}, create)
}

func TestDecodeGenerateAction_CheckStatus(t *testing.T) {
	action, err := models.DecodeGenerateAction([]byte(`{"action":"check_status","generationId":"abc"}`))
	require.NoError(t, err)
	check, ok := action.(models.CheckStatusAction)
	require.True(t, ok)
	assert.Equal(t, "abc", check.ID())

	action, err = models.DecodeGenerateAction([]byte(`{"action":"check_status","generation_id":"def"}`))
	require.NoError(t, err)
	assert.Equal(t, "def", action.(models.CheckStatusAction).ID())
}

func TestDecodeGenerateAction_Invalid(t *testing.T) {
	for _, body := range []string{`{}`, `{"action":""}`, `{"action":"Create"}`, `{"action":"delete"}`} {
		_, err := models.DecodeGenerateAction([]byte(body))
		assert.ErrorIs(t, err, models.ErrInvalidAction, body)
	}

	_, err := models.DecodeGenerateAction([]byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInvalidAction)

	_, err = models.DecodeGenerateAction([]byte(`{"action":"create","duration":"four"}`))
	assert.Error(t, err)
}

func TestGenerationStatus_IsTerminal(t *testing.T) {
	assert.False(t, models.StatusProcessing.IsTerminal())
	assert.True(t, models.StatusCompleted.IsTerminal())
	assert.True(t, models.StatusFailed.IsTerminal())
}

func TestNewGenerationResponse(t *testing.T) {
	url := "https://cdn.test/v.mp4"
	r := models.NewGenerationResponse(&models.Generation{
		ID:       "g1",
		Status:   models.StatusCompleted,
		VideoURL: &url,
	})
	assert.Equal(t, "completed", r.Status)
	assert.Equal(t, url, r.VideoURL)
	assert.Empty(t, r.ErrorMessage)
	assert.Empty(t, r.ImageURL)
}
