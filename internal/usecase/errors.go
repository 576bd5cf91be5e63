package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/video2doc/video2doc-processing-service/internal/infra/fetch"
	"github.com/video2doc/video2doc-processing-service/internal/infra/pdf"
	"github.com/video2doc/video2doc-processing-service/internal/slides"
)

var (
	ErrNoFrames       = errors.New("no frames survived sampling")
	ErrInvalidMessage = errors.New("invalid conversion message")
)

// Codes reported alongside the ones slides.Code produces.
const (
	CodeNoFrames              = "NO_FRAMES"
	CodeEmptyDocument         = "EMPTY_DOCUMENT"
	CodeUpstreamFetchFailed   = "UPSTREAM_FETCH_FAILED"
	CodeDownloadLinkNotFound  = "DOWNLOAD_LINK_NOT_FOUND"
	CodeStorageFailed         = "STORAGE_FAILED"
	CodeEngineUnavailable     = "ENGINE_UNAVAILABLE"
	CodeInvalidMessage        = "INVALID_MESSAGE"
	CodeRetriesExhausted      = "RETRIES_EXHAUSTED"
	CodeCompositionFailed     = "COMPOSITION_FAILED"
	CodeConversionInterrupted = "INTERRUPTED"
)

// StageError ties a failure to the stage it happened in and to how the worker
// should treat it.
type StageError struct {
	Stage     string
	Code      string
	Permanent bool
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func permanent(stage, code string, err error) *StageError {
	return &StageError{Stage: stage, Code: code, Permanent: true, Err: err}
}

func transient(stage, code string, err error) *StageError {
	return &StageError{Stage: stage, Code: code, Err: err}
}

// fetchFailure classifies a remote fetch error.
func fetchFailure(stage string, err error) *StageError {
	switch {
	case errors.Is(err, fetch.ErrDownloadLinkNotFound):
		return permanent(stage, CodeDownloadLinkNotFound, err)
	case fetch.IsPermanent(err):
		return permanent(stage, CodeUpstreamFetchFailed, err)
	}
	return transient(stage, CodeUpstreamFetchFailed, err)
}

// ErrorCode maps any conversion error to the code carried in status messages.
func ErrorCode(err error) string {
	var se *StageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se) && se.Code != "":
		return se.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeConversionInterrupted
	case errors.Is(err, ErrNoFrames):
		return CodeNoFrames
	case errors.Is(err, pdf.ErrEmptyDocument):
		return CodeEmptyDocument
	case errors.Is(err, fetch.ErrDownloadLinkNotFound):
		return CodeDownloadLinkNotFound
	case errors.Is(err, fetch.ErrUpstreamFetchFailed):
		return CodeUpstreamFetchFailed
	}
	return slides.Code(err)
}

// RetryError is returned to the consumer when a failed attempt will be retried.
type RetryError struct {
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retryable failure (attempt %d/%d): %v", e.Attempt, e.MaxAttempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// RetryAttempt lets the consumer scale its backoff.
func (e *RetryError) RetryAttempt() int {
	return e.Attempt
}
