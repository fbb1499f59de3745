package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CRMWizAI/sora2api/internal/events"
	"github.com/CRMWizAI/sora2api/internal/lock"
	"github.com/CRMWizAI/sora2api/internal/models"
	"github.com/CRMWizAI/sora2api/internal/sora"
)

const (
	DefaultDuration        = sora.DefaultSeconds
	DefaultAspectRatio     = models.AspectLandscape
	DefaultFailureMessage  = "Video generation failed"
	TimeoutFailureMessage  = "generation timed out"
	DefaultPromptMaxLength = 4000
	DefaultLockTTL         = 6 * time.Minute
	DefaultListLimit       = 50
	MaxListLimit           = 100

	tracerName = "services/GenerationService"
)

type JobClient interface {
	Submit(ctx context.Context, req sora.SubmitRequest) (*sora.Job, error)
	FetchStatus(ctx context.Context, jobID string) (*sora.JobStatus, error)
	FetchArtifact(ctx context.Context, jobID string) ([]byte, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*sora.ReferenceImage, error)
}

type ArtifactStore interface {
	Store(ctx context.Context, path string, data []byte) (string, error)
}

// GenerationStore persists generation records. The *IfProcessing methods are
// conditional writes: they report false when the record had already left
// StatusProcessing.
type GenerationStore interface {
	Create(ctx context.Context, g *models.Generation) error
	GetByID(ctx context.Context, id string) (*models.Generation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Generation, error)
	CompleteIfProcessing(ctx context.Context, id, videoURL string) (bool, error)
	FailIfProcessing(ctx context.Context, id, message string) (bool, error)
}

var aspectSizes = map[string]string{
	models.AspectLandscape: sora.SizeLandscape,
	models.AspectPortrait:  sora.SizePortrait,
}

// NormalizeAspectRatio returns one of the stored ratios. Empty means the
// default; anything unrecognised is treated as portrait, matching the size the
// provider is asked for.
func NormalizeAspectRatio(aspectRatio string) string {
	switch r := strings.TrimSpace(aspectRatio); r {
	case "":
		return DefaultAspectRatio
	case models.AspectLandscape, models.AspectPortrait, models.AspectSquare:
		return r
	default:
		return models.AspectPortrait
	}
}

// SizeForAspectRatio maps an aspect ratio to the provider's size string.
// Anything not in the table, 1:1 included, gets the portrait size.
func SizeForAspectRatio(aspectRatio string) string {
	if size, ok := aspectSizes[aspectRatio]; ok {
		return size
	}
	return sora.SizePortrait
}

// ArtifactPath is where a generation's video is stored. It is stable per
// generation so a retried upload overwrites rather than duplicates.
func ArtifactPath(g *models.Generation) string {
	return fmt.Sprintf("users/%s/generations/%s.mp4", g.UserID, g.ID)
}

type CreateInput struct {
	ImageURL    string
	Prompt      string
	AspectRatio string
	Duration    int
}

type CreateResult struct {
	GenerationID string
	JobID        string
}

type StatusResult struct {
	Status       models.GenerationStatus
	VideoURL     string
	ErrorMessage string
	Progress     *int
}

type Options struct {
	LockTTL time.Duration
	// MaxProcessing fails generations still processing after this long.
	// Zero disables the limit.
	MaxProcessing   time.Duration
	PromptMaxLength int
}

type GenerationService struct {
	jobs      JobClient
	images    ImageFetcher
	artifacts ArtifactStore
	store     GenerationStore
	locker    lock.Locker
	publisher events.Publisher

	lockTTL         time.Duration
	maxProcessing   time.Duration
	promptMaxLength int
	now             func() time.Time
}

func NewGenerationService(
	jobs JobClient,
	images ImageFetcher,
	artifacts ArtifactStore,
	store GenerationStore,
	locker lock.Locker,
	publisher events.Publisher,
	opts Options,
) *GenerationService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.PromptMaxLength <= 0 {
		opts.PromptMaxLength = DefaultPromptMaxLength
	}
	return &GenerationService{
		jobs:            jobs,
		images:          images,
		artifacts:       artifacts,
		store:           store,
		locker:          locker,
		publisher:       publisher,
		lockTTL:         opts.LockTTL,
		maxProcessing:   opts.MaxProcessing,
		promptMaxLength: opts.PromptMaxLength,
		now:             time.Now,
	}
}

// Create submits a job to the provider and records it as processing.
// The reference image, if any, is fetched before anything is submitted.
func (s *GenerationService) Create(ctx context.Context, userID string, in CreateInput) (res *CreateResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("generation.reference", strings.TrimSpace(in.ImageURL) != ""),
		),
	)
	defer func() { endSpan(span, err) }()

	logger := zerolog.Ctx(ctx)

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(prompt) > s.promptMaxLength {
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidRequest, s.promptMaxLength)
	}

	aspectRatio := NormalizeAspectRatio(in.AspectRatio)
	duration := in.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	size := SizeForAspectRatio(aspectRatio)

	imageURL := strings.TrimSpace(in.ImageURL)
	var reference *sora.ReferenceImage
	if imageURL != "" {
		img, err := s.images.Fetch(ctx, imageURL)
		if err != nil {
			jobsSubmitted.WithLabelValues("reference_error").Inc()
			logger.Error().Err(err).Str("image_url", imageURL).Msg("failed to fetch reference image")
			return nil, err
		}
		reference = img
	}

	job, err := s.jobs.Submit(ctx, sora.SubmitRequest{
		Prompt:    prompt,
		Size:      size,
		Seconds:   duration,
		Reference: reference,
	})
	if err != nil {
		jobsSubmitted.WithLabelValues("rejected").Inc()
		logger.Error().Err(err).Str("size", size).Msg("provider rejected video job")
		return nil, err
	}
	jobsSubmitted.WithLabelValues("accepted").Inc()

	now := s.now().UTC()
	gen := &models.Generation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		Duration:    duration,
		Status:      models.StatusProcessing,
		JobID:       job.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if imageURL != "" {
		gen.ImageURL = &imageURL
	}

	if err := s.store.Create(ctx, gen); err != nil {
		// No compensation: the provider job keeps running with no local record.
		orphanedJobs.Inc()
		logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("user_id", userID).
			Msg("generation record not written, provider job orphaned")
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}

	logger.Info().
		Str("generation_id", gen.ID).
		Str("job_id", job.ID).
		Str("size", size).
		Int("duration", duration).
		Bool("reference", reference != nil).
		Msg("generation created")

	return &CreateResult{GenerationID: gen.ID, JobID: job.ID}, nil
}

// CheckStatus performs one poll. Terminal records are answered from the store
// without contacting the provider; otherwise the provider is asked and, on a
// terminal answer, the record is moved into that state exactly once.
func (s *GenerationService) CheckStatus(ctx context.Context, userID, generationID string) (res *StatusResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CheckStatus",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("generation.id", generationID),
		),
	)
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.String("generation.status", string(res.Status)))
		}
		endSpan(span, err)
	}()

	gen, err := s.lookup(ctx, userID, generationID)
	if err != nil {
		return nil, err
	}

	if gen.Status.IsTerminal() {
		statusChecks.WithLabelValues(checkTerminalCached).Inc()
		return terminalResult(gen), nil
	}

	logger := zerolog.Ctx(ctx).With().
		Str("generation_id", gen.ID).
		Str("job_id", gen.JobID).
		Logger()

	release, acquired, err := s.locker.TryLock(ctx, pollLockKey(gen.ID), s.lockTTL)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("poll lock unavailable, continuing without it")
	case !acquired:
		statusChecks.WithLabelValues(checkLocked).Inc()
		return processingResult(nil), nil
	default:
		defer release()
	}

	status, err := s.jobs.FetchStatus(ctx, gen.JobID)
	if err != nil {
		statusChecks.WithLabelValues(checkUpstreamError).Inc()
		logger.Warn().Err(err).Msg("status check failed, reporting processing")
		if s.expired(gen) {
			return s.fail(ctx, &logger, gen, TimeoutFailureMessage, checkTimedOut)
		}
		return processingOnStatusError(err), nil
	}

	switch status.State {
	case sora.JobCompleted:
		return s.complete(ctx, &logger, gen, status)
	case sora.JobFailed:
		msg := strings.TrimSpace(status.ErrorMessage)
		if msg == "" {
			msg = DefaultFailureMessage
		}
		return s.fail(ctx, &logger, gen, msg, checkFailed)
	default:
		if s.expired(gen) {
			return s.fail(ctx, &logger, gen, TimeoutFailureMessage, checkTimedOut)
		}
		statusChecks.WithLabelValues(checkProcessing).Inc()
		return processingResult(status.Progress), nil
	}
}

// Get returns a record owned by userID without polling the provider.
func (s *GenerationService) Get(ctx context.Context, userID, generationID string) (*models.Generation, error) {
	return s.lookup(ctx, userID, generationID)
}

// List returns the user's generations, newest first.
func (s *GenerationService) List(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	gens, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return gens, nil
}

// processingOnStatusError is the policy for a failed status check: the caller
// sees processing, the record is untouched, and the next poll retries.
func processingOnStatusError(error) *StatusResult {
	return processingResult(nil)
}

func (s *GenerationService) complete(ctx context.Context, logger *zerolog.Logger, gen *models.Generation, status *sora.JobStatus) (*StatusResult, error) {
	data, err := s.jobs.FetchArtifact(ctx, gen.JobID)
	if err != nil {
		statusChecks.WithLabelValues(checkDownloadError).Inc()
		logger.Warn().Err(err).Msg("artifact download failed, will retry on next poll")
		return processingResult(status.Progress), nil
	}
	artifactBytes.Observe(float64(len(data)))

	// The artifact must be durable before the record says completed.
	videoURL, err := s.artifacts.Store(ctx, ArtifactPath(gen), data)
	if err != nil {
		statusChecks.WithLabelValues(checkStoreError).Inc()
		logger.Warn().Err(err).Msg("artifact store failed, will retry on next poll")
		return processingResult(status.Progress), nil
	}

	updated, err := s.store.CompleteIfProcessing(ctx, gen.ID, videoURL)
	if err != nil {
		statusChecks.WithLabelValues(checkStoreError).Inc()
		logger.Error().Err(err).Str("video_url", videoURL).Msg("failed to mark generation completed")
		return processingResult(status.Progress), nil
	}
	if !updated {
		return s.currentState(ctx, logger, gen.ID), nil
	}

	statusChecks.WithLabelValues(checkCompleted).Inc()
	terminalTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()
	logger.Info().Str("video_url", videoURL).Int("bytes", len(data)).Msg("generation completed")
	s.publish(ctx, logger, events.CompletedEvent(gen, videoURL))

	return &StatusResult{Status: models.StatusCompleted, VideoURL: videoURL}, nil
}

func (s *GenerationService) fail(ctx context.Context, logger *zerolog.Logger, gen *models.Generation, message, result string) (*StatusResult, error) {
	updated, err := s.store.FailIfProcessing(ctx, gen.ID, message)
	if err != nil {
		statusChecks.WithLabelValues(checkStoreError).Inc()
		logger.Error().Err(err).Str("error_message", message).Msg("failed to mark generation failed")
		return processingResult(nil), nil
	}
	if !updated {
		return s.currentState(ctx, logger, gen.ID), nil
	}

	statusChecks.WithLabelValues(result).Inc()
	terminalTransitions.WithLabelValues(string(models.StatusFailed)).Inc()
	logger.Info().Str("error_message", message).Msg("generation failed")
	s.publish(ctx, logger, events.FailedEvent(gen, message))

	return &StatusResult{Status: models.StatusFailed, ErrorMessage: message}, nil
}

// currentState re-reads a record after losing a conditional write to another
// poller and reports whatever terminal state that poller stored.
func (s *GenerationService) currentState(ctx context.Context, logger *zerolog.Logger, id string) *StatusResult {
	gen, err := s.store.GetByID(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to re-read generation after conditional write")
		return processingResult(nil)
	}
	if !gen.Status.IsTerminal() {
		return processingResult(nil)
	}
	statusChecks.WithLabelValues(checkTerminalCached).Inc()
	return terminalResult(gen)
}

func (s *GenerationService) lookup(ctx context.Context, userID, generationID string) (*models.Generation, error) {
	id, err := uuid.Parse(generationID)
	if err != nil {
		return nil, ErrGenerationNotFound
	}
	// Stores only ever see the canonical form; Parse also accepts urn and
	// braced spellings.
	gen, err := s.store.GetByID(ctx, id.String())
	if errors.Is(err, ErrGenerationNotFound) {
		return nil, ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if gen.UserID != userID {
		return nil, ErrGenerationNotFound
	}
	return gen, nil
}

func (s *GenerationService) expired(gen *models.Generation) bool {
	return s.maxProcessing > 0 && s.now().Sub(gen.CreatedAt) > s.maxProcessing
}

func (s *GenerationService) publish(ctx context.Context, logger *zerolog.Logger, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).Str("event", e.Type).Msg("failed to publish event")
	}
}

func terminalResult(gen *models.Generation) *StatusResult {
	r := &StatusResult{Status: gen.Status}
	if gen.VideoURL != nil {
		r.VideoURL = *gen.VideoURL
	}
	if gen.ErrorMessage != nil {
		r.ErrorMessage = *gen.ErrorMessage
	}
	return r
}

func processingResult(progress *int) *StatusResult {
	p := 0
	if progress != nil {
		p = *progress
	}
	return &StatusResult{Status: models.StatusProcessing, Progress: &p}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func pollLockKey(id string) string {
	return "generation-poll:" + id
}
