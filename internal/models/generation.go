package models

import (
	"errors"
	"time"
)

var ErrGenerationNotFound = errors.New("generation not found")

type GenerationStatus string

const (
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s GenerationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
	AspectSquare    = "1:1"
)

// Generation is one user-initiated video request. JobID is set at creation and
// never changes; VideoURL is only set with StatusCompleted and ErrorMessage only
// with StatusFailed.
type Generation struct {
	ID           string           `json:"id"                      gorm:"type:char(36);primaryKey"`
	UserID       string           `json:"user_id"                 gorm:"type:varchar(64);not null;index:idx_video_generations_user_created,priority:1"`
	ImageURL     *string          `json:"image_url,omitempty"     gorm:"type:text"`
	Prompt       string           `json:"prompt"                  gorm:"type:text;not null"`
	AspectRatio  string           `json:"aspect_ratio"            gorm:"type:varchar(16);not null"`
	Duration     int              `json:"duration"                gorm:"not null"`
	Status       GenerationStatus `json:"status"                  gorm:"type:varchar(16);not null;index;check:chk_video_generations_status,status IN ('processing','completed','failed')"`
	JobID        string           `json:"job_id"                  gorm:"type:varchar(128);not null"`
	VideoURL     *string          `json:"video_url,omitempty"     gorm:"type:text"`
	ErrorMessage *string          `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time        `json:"created_at"              gorm:"index:idx_video_generations_user_created,priority:2"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (Generation) TableName() string { return "video_generations" }
