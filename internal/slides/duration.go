package slides

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	// DefaultProbeMarker is what ffmpeg prints after the input summary when it is
	// invoked without an output file.
	DefaultProbeMarker = "At least one output file must be specified"
	DefaultProbeWait   = 30 * time.Second
)

var durationPattern = regexp.MustCompile(`Duration:\s*([0-9]{2}):([0-9]{2}):([0-9]{2}\.[0-9]{0,2})`)

// ParseDuration extracts the first "Duration: HH:MM:SS.ss" from engine output.
func ParseDuration(log string) (float64, error) {
	m := durationPattern.FindStringSubmatch(log)
	if m == nil {
		return 0, ErrDurationUnknown
	}

	hours, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: hours %q", ErrDurationUnknown, m[1])
	}
	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: minutes %q", ErrDurationUnknown, m[2])
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: seconds %q", ErrDurationUnknown, m[3])
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// DurationProbe reads a source's duration from the engine's diagnostic log.
type DurationProbe struct {
	engine  port.CodecEngine
	marker  string
	maxWait time.Duration
	logger  *zap.Logger
}

func NewDurationProbe(engine port.CodecEngine, marker string, maxWait time.Duration, logger *zap.Logger) *DurationProbe {
	if marker == "" {
		marker = DefaultProbeMarker
	}
	if maxWait <= 0 {
		maxWait = DefaultProbeWait
	}
	return &DurationProbe{engine: engine, marker: marker, maxWait: maxWait, logger: logger}
}

// Probe runs an input-only command and collects its log until the marker shows up,
// the log ends, or maxWait elapses. The engine is idle again when Probe returns.
func (p *DurationProbe) Probe(ctx context.Context, input string) (float64, error) {
	lines, unsubscribe := p.engine.Subscribe()

	waitCtx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.engine.Exec(waitCtx, "-hide_banner", "-i", input)
	}()

	var sb strings.Builder
collect:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break collect
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
			if strings.Contains(line, p.marker) {
				break collect
			}
		case <-waitCtx.Done():
			break collect
		}
	}
	unsubscribe()
	execErr := <-done

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timedOut := waitCtx.Err() != nil

	var exitErr *port.ExitError
	if execErr != nil && !errors.As(execErr, &exitErr) && !timedOut {
		return 0, fmt.Errorf("probe %s: %w", input, execErr)
	}

	duration, err := ParseDuration(sb.String())
	if err != nil {
		if timedOut {
			return 0, fmt.Errorf("%w: no marker within %s", err, p.maxWait)
		}
		return 0, err
	}

	p.logger.Debug("probed duration",
		zap.String("input", input),
		zap.Float64("duration_secs", duration),
	)
	return duration, nil
}
