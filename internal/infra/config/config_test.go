package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "video.conversion", cfg.RabbitMQConversionQueue)
	assert.Equal(t, "documents", cfg.MinIODocumentBucket)
	assert.Equal(t, 10*time.Second, cfg.SampleInterval)
	assert.Equal(t, 5.0, cfg.DiffThreshold)
	assert.Equal(t, "output_%04d.png", cfg.FramePattern)
	assert.Equal(t, DurationPolicyFFprobe, cfg.DurationUnknownPolicy)
	assert.Equal(t, 30*time.Second, cfg.ProbeMaxWait)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SAMPLE_INTERVAL", "2s")
	t.Setenv("DIFF_THRESHOLD", "7.5")
	t.Setenv("DURATION_UNKNOWN_POLICY", "fail")
	t.Setenv("EXPORT_SLIDE_ARCHIVE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.SampleInterval)
	assert.Equal(t, 7.5, cfg.DiffThreshold)
	assert.Equal(t, DurationPolicyFail, cfg.DurationUnknownPolicy)
	assert.True(t, cfg.ExportSlideArchive)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"DURATION_UNKNOWN_POLICY": "guess",
		"SAMPLE_INTERVAL":         "0s",
		"DIFF_THRESHOLD":          "-1",
		"WORKER_COUNT":            "0",
		"TRACE_SAMPLE_RATIO":      "1.5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}
