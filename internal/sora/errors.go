package sora

import "fmt"

// UpstreamSubmitError is returned when the provider does not accept a new job.
// StatusCode is zero when the request never got a response.
type UpstreamSubmitError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamSubmitError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to submit video job: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to submit video job: status %d: %v, body: %s", e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("failed to submit video job: status %d, body: %s", e.StatusCode, e.Body)
}

func (e *UpstreamSubmitError) Unwrap() error { return e.Err }

// UpstreamStatusError covers transport failures, non-2xx responses and
// undecodable bodies from the status endpoint. Callers treat it as transient.
type UpstreamStatusError struct {
	JobID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamStatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to get status for job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("failed to get status for job %s: status %d, body: %s", e.JobID, e.StatusCode, e.Body)
}

func (e *UpstreamStatusError) Unwrap() error { return e.Err }

type UpstreamDownloadError struct {
	JobID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamDownloadError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to download content for job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("failed to download content for job %s: status %d, body: %s", e.JobID, e.StatusCode, e.Body)
}

func (e *UpstreamDownloadError) Unwrap() error { return e.Err }

// ReferenceImageFetchError means the caller-supplied reference image could not
// be retrieved. No job is submitted when this happens.
type ReferenceImageFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ReferenceImageFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch image: %d", e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch image: %v", e.Err)
}

func (e *ReferenceImageFetchError) Unwrap() error { return e.Err }
