package services

import (
	"errors"

	"github.com/CRMWizAI/sora2api/internal/models"
)

var (
	// ErrInvalidRequest wraps every client input problem; the wrapped message
	// says which field.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrGenerationNotFound is also returned for records owned by another user.
	ErrGenerationNotFound = models.ErrGenerationNotFound
)
