package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob("user-1", SourceURL, "", "https://cdn.example.com/a.mp4", 0, 2)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "https://cdn.example.com/a.mp4", job.Source())
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	job.MarkFailed("UPSTREAM_FETCH_FAILED", "503")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)

	job.MarkProcessing()
	assert.Empty(t, job.ErrorCode)
	assert.Empty(t, job.ErrorMessage)
	assert.False(t, job.CanRetry())

	job.MarkCompleted("user-1/slides.pdf", 3, 9, 95)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 3, job.PageCount)
}

func TestSourceType(t *testing.T) {
	assert.True(t, SourceUpload.Valid())
	assert.True(t, SourceHosted.Valid())
	assert.False(t, SourceType("ftp").Valid())

	upload := VideoConversionMessage{VideoKey: "k", SourceURL: "ignored"}
	assert.Equal(t, "k", upload.Source())
}

func TestOrientationFor(t *testing.T) {
	assert.Equal(t, Portrait, OrientationFor(100, 200))
	assert.Equal(t, Landscape, OrientationFor(300, 150))
	assert.Equal(t, Portrait, OrientationFor(64, 64))
}

func TestSamplingResultComplete(t *testing.T) {
	assert.True(t, (&SamplingResult{Expected: 9, Read: 9}).Complete())
	assert.False(t, (&SamplingResult{Expected: 9, Read: 4}).Complete())
}
