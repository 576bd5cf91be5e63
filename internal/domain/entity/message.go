package entity

import "github.com/google/uuid"

// VideoConversionMessage is the inbound message from the video.conversion queue.
// VideoKey is set for uploads, SourceURL for url and hosted sources.
type VideoConversionMessage struct {
	JobID      uuid.UUID  `json:"job_id"`
	UserID     string     `json:"user_id"`
	SourceType SourceType `json:"source_type"`
	VideoKey   string     `json:"video_key,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	FileSize   int64      `json:"file_size,omitempty"`
	UserEmail  string     `json:"user_email"`
}

// Source returns the locator for the message's source type.
func (m VideoConversionMessage) Source() string {
	if m.SourceType == SourceUpload || m.SourceType == "" {
		return m.VideoKey
	}
	return m.SourceURL
}

// VideoStatusMessage is the outbound message published to the video.status queue.
type VideoStatusMessage struct {
	JobID         uuid.UUID  `json:"job_id"`
	UserID        string     `json:"user_id"`
	Status        JobStatus  `json:"status"`
	SourceType    SourceType `json:"source_type"`
	Source        string     `json:"source"`
	DocumentKey   string     `json:"document_key,omitempty"`
	ArchiveKey    string     `json:"archive_key,omitempty"`
	PageCount     int        `json:"page_count,omitempty"`
	FramesSampled int        `json:"frames_sampled,omitempty"`
	Duration      float64    `json:"duration_seconds,omitempty"`
	ErrorCode     string     `json:"error_code,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Attempt       int        `json:"attempt"`
	MaxAttempts   int        `json:"max_attempts"`
}
