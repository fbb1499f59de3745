package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidAction = errors.New("invalid action")

// GenerateAction is the body of POST /generate, discriminated by "action".
// The concrete types are CreateAction and CheckStatusAction.
type GenerateAction interface {
	actionName() string
}

type CreateAction struct {
	ImageURL    string `json:"image_url,omitempty"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

func (CreateAction) actionName() string { return "create" }

type CheckStatusAction struct {
	GenerationID string `json:"generationId"`
	// Accepted for clients that send snake_case.
	GenerationIDSnake string `json:"generation_id,omitempty"`
}

func (CheckStatusAction) actionName() string { return "check_status" }

// ID returns whichever spelling of the generation id the client sent.
func (a CheckStatusAction) ID() string {
	if a.GenerationID != "" {
		return a.GenerationID
	}
	return a.GenerationIDSnake
}

// DecodeGenerateAction decodes a request body into its concrete action.
// Unknown or missing actions return ErrInvalidAction.
func DecodeGenerateAction(body []byte) (GenerateAction, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	switch envelope.Action {
	case "create":
		var a CreateAction
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("invalid create request: %w", err)
		}
		return a, nil
	case "check_status":
		var a CheckStatusAction
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("invalid check_status request: %w", err)
		}
		return a, nil
	default:
		return nil, ErrInvalidAction
	}
}
