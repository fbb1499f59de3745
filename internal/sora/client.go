package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultModel   = "sora-2"
	DefaultSeconds = 4

	SizeLandscape = "1280x720"
	SizePortrait  = "720x1280"
)

var supportedSizes = map[string]bool{
	SizeLandscape: true,
	SizePortrait:  true,
	"1792x1024":   true,
	"1024x1792":   true,
}

// JobState is the provider job state normalised to the four states the
// orchestrator reasons about.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

type ReferenceImage struct {
	Data        []byte
	ContentType string
}

type SubmitRequest struct {
	Prompt    string
	Size      string
	Seconds   int
	Reference *ReferenceImage
}

type Job struct {
	ID     string
	Status JobState
}

type JobStatus struct {
	State        JobState
	Progress     *int
	ErrorMessage string
}

// videoResponse is the subset of the provider's video object we decode.
type videoResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress *float64 `json:"progress"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	baseURL        string
	apiKey         string
	model          string
	httpClient     *http.Client
	downloadClient *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout, downloadTimeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		downloadClient: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

// Submit creates a video job. The request is sent as multipart so that an
// optional reference image can travel as a file part.
func (c *Client) Submit(ctx context.Context, sr SubmitRequest) (*Job, error) {
	if strings.TrimSpace(sr.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	if !supportedSizes[sr.Size] {
		return nil, fmt.Errorf("unsupported size %q", sr.Size)
	}
	seconds := sr.Seconds
	if seconds <= 0 {
		seconds = DefaultSeconds
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := [][2]string{
		{"prompt", sr.Prompt},
		{"model", c.model},
		{"seconds", strconv.Itoa(seconds)},
		{"size", sr.Size},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if sr.Reference != nil {
		contentType := sr.Reference.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="input_reference"; filename="reference.%s"`, ReferenceExtension(contentType)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create reference part: %w", err)
		}
		if _, err := part.Write(sr.Reference.Data); err != nil {
			return nil, fmt.Errorf("failed to write reference part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamSubmitError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamSubmitError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &UpstreamSubmitError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result videoResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &UpstreamSubmitError{StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if result.ID == "" {
		return nil, &UpstreamSubmitError{StatusCode: resp.StatusCode, Body: string(respBody), Err: errors.New("job id is empty in response")}
	}

	return &Job{ID: result.ID, Status: normalizeState(result.Status)}, nil
}

func (c *Client) FetchStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, &UpstreamStatusError{JobID: jobID, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamStatusError{JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamStatusError{JobID: jobID, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &UpstreamStatusError{JobID: jobID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result videoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UpstreamStatusError{JobID: jobID, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	status := &JobStatus{State: normalizeState(result.Status)}
	if result.Progress != nil {
		p := clampProgress(*result.Progress)
		status.Progress = &p
	}
	if result.Error != nil {
		status.ErrorMessage = result.Error.Message
	}
	return status, nil
}

// FetchArtifact downloads the finished video. Only meaningful once the job
// reports completed.
func (c *Client) FetchArtifact(ctx context.Context, jobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+url.PathEscape(jobID)+"/content", nil)
	if err != nil {
		return nil, &UpstreamDownloadError{JobID: jobID, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, &UpstreamDownloadError{JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamDownloadError{JobID: jobID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamDownloadError{JobID: jobID, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(data) == 0 {
		return nil, &UpstreamDownloadError{JobID: jobID, Err: errors.New("empty content")}
	}

	return data, nil
}

// ReferenceExtension picks the file extension the provider expects for a
// reference image of the given content type.
func ReferenceExtension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	default:
		return "jpg"
	}
}

func normalizeState(s string) JobState {
	switch strings.ToLower(s) {
	case "queued", "pending":
		return JobQueued
	case "completed", "succeeded":
		return JobCompleted
	case "failed", "cancelled", "canceled":
		return JobFailed
	default:
		return JobProcessing
	}
}

func clampProgress(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
