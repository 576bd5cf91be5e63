package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// FFProbe reads container metadata with ffprobe. It backs the duration fallback
// when the engine log carries no parsable duration.
type FFProbe struct {
	timeout time.Duration
}

var _ port.DurationProber = (*FFProbe)(nil)

func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if binary != "" {
		ffprobe.SetFFProbeBinPath(binary)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFProbe{timeout: timeout}
}

func (p *FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	if data.Format == nil || data.Format.DurationSeconds <= 0 {
		return 0, fmt.Errorf("ffprobe %s: no duration in format section", path)
	}
	return data.Format.DurationSeconds, nil
}
