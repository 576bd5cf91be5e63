package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceURL    SourceType = "url"
	SourceHosted SourceType = "hosted"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceUpload, SourceURL, SourceHosted:
		return true
	}
	return false
}

type Job struct {
	ID            uuid.UUID
	UserID        string
	SourceType    SourceType
	VideoKey      string
	SourceURL     string
	DocumentKey   string
	ArchiveKey    string
	Status        JobStatus
	PageCount     int
	FramesSampled int
	FileSize      int64
	VideoDuration float64
	Attempt       int
	MaxAttempts   int
	ErrorCode     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewJob(userID string, sourceType SourceType, videoKey, sourceURL string, fileSize int64, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		SourceType:  sourceType,
		VideoKey:    videoKey,
		SourceURL:   sourceURL,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Source returns the user-facing name of the job's input.
func (j *Job) Source() string {
	if j.SourceType == SourceUpload {
		return j.VideoKey
	}
	return j.SourceURL
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorCode = ""
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(documentKey string, pageCount, framesSampled int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.DocumentKey = documentKey
	j.PageCount = pageCount
	j.FramesSampled = framesSampled
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(code, errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorCode = code
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
