package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CRMWizAI/sora2api/internal/middleware"
	"github.com/CRMWizAI/sora2api/internal/models"
	"github.com/CRMWizAI/sora2api/internal/services"
	"github.com/CRMWizAI/sora2api/internal/sora"
)

const maxRequestBodyBytes = 1 << 20

type GenerationService interface {
	Create(ctx context.Context, userID string, in services.CreateInput) (*services.CreateResult, error)
	CheckStatus(ctx context.Context, userID, generationID string) (*services.StatusResult, error)
	Get(ctx context.Context, userID, generationID string) (*models.Generation, error)
	List(ctx context.Context, userID string, limit int) ([]models.Generation, error)
}

type GenerateHandler struct {
	service GenerationService
}

func NewGenerateHandler(service GenerationService) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// Generate godoc
// @Summary     Create a video generation or poll its status
// @Description Body is discriminated by "action": "create" submits a new job,
// @Description "check_status" polls one generation.
// @Tags        generations
// @Accept      json
// @Produce     json
// @Param       request body     models.CreateAction true "create or check_status action"
// @Success     200     {object} models.CreateResponse
// @Success     200     {object} models.StatusResponse
// @Failure     400     {object} models.ErrorResponse
// @Failure     401     {object} models.ErrorResponse
// @Failure     404     {object} models.ErrorResponse
// @Failure     500     {object} models.ErrorResponse
// @Security    Bearer
// @Router      /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	action, err := models.DecodeGenerateAction(body)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAction) {
			respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid action"})
			return
		}
		respondError(c, http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	switch a := action.(type) {
	case models.CreateAction:
		h.create(c, userID, a)
	case models.CheckStatusAction:
		h.checkStatus(c, userID, a)
	default:
		respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid action"})
	}
}

func (h *GenerateHandler) create(c *gin.Context, userID string, a models.CreateAction) {
	res, err := h.service.Create(c.Request.Context(), userID, services.CreateInput{
		ImageURL:    a.ImageURL,
		Prompt:      a.Prompt,
		AspectRatio: a.AspectRatio,
		Duration:    a.Duration,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CreateResponse{
		Success:      true,
		GenerationID: res.GenerationID,
		JobID:        res.JobID,
	})
}

func (h *GenerateHandler) checkStatus(c *gin.Context, userID string, a models.CheckStatusAction) {
	id := a.ID()
	if id == "" {
		respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "generationId is required"})
		return
	}

	res, err := h.service.CheckStatus(c.Request.Context(), userID, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := models.StatusResponse{Status: string(res.Status)}
	switch res.Status {
	case models.StatusCompleted:
		out.VideoURL = res.VideoURL
	case models.StatusFailed:
		out.ErrorMessage = res.ErrorMessage
	default:
		out.Progress = res.Progress
	}
	c.JSON(http.StatusOK, out)
}

// ListGenerations godoc
// @Summary  List the caller's generations, newest first
// @Tags     generations
// @Produce  json
// @Param    limit query    int false "max results (default 50, max 100)"
// @Success  200   {object} models.GenerationListResponse
// @Failure  401   {object} models.ErrorResponse
// @Security Bearer
// @Router   /generations [get]
func (h *GenerateHandler) ListGenerations(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	gens, err := h.service.List(c.Request.Context(), userID, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out := models.GenerationListResponse{Generations: make([]models.GenerationResponse, 0, len(gens))}
	for i := range gens {
		out.Generations = append(out.Generations, models.NewGenerationResponse(&gens[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetGeneration godoc
// @Summary  Get one generation without polling the provider
// @Tags     generations
// @Produce  json
// @Param    id  path     string true "generation id"
// @Success  200 {object} models.GenerationResponse
// @Failure  404 {object} models.ErrorResponse
// @Security Bearer
// @Router   /generations/{id} [get]
func (h *GenerateHandler) GetGeneration(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		respondError(c, http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	g, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewGenerationResponse(g))
}

func (h *GenerateHandler) handleError(c *gin.Context, err error) {
	var (
		submitErr *sora.UpstreamSubmitError
		imageErr  *sora.ReferenceImageFetchError
	)

	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
	case errors.Is(err, services.ErrGenerationNotFound):
		respondError(c, http.StatusNotFound, models.ErrorResponse{Error: "Generation not found"})
	case errors.As(err, &imageErr):
		respondError(c, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to fetch reference image",
			Details: imageErr.Error(),
		})
	case errors.As(err, &submitErr):
		respondError(c, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "OpenAI API error",
			Status:  submitErr.StatusCode,
			Details: submitErr.Body,
		})
	default:
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Msg("generation request failed")
		respondError(c, http.StatusInternalServerError, models.ErrorResponse{Error: "Video generation failed"})
	}
}

func respondError(c *gin.Context, status int, body models.ErrorResponse) {
	body.RequestID = middleware.RequestIDFrom(c)
	c.AbortWithStatusJSON(status, body)
}
