package slides

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	DefaultInterval  = 10 * time.Second
	DefaultThreshold = 5.0
	DefaultPattern   = "output_%04d.png"
)

// Manifest describes the outputs one extraction command is expected to produce.
type Manifest struct {
	Interval time.Duration
	Expected int
	Pattern  string
}

// NewManifest expects floor(duration/interval) frames. A non-positive duration
// expects none.
func NewManifest(duration float64, interval time.Duration, pattern string) Manifest {
	if pattern == "" {
		pattern = DefaultPattern
	}
	expected := 0
	if duration > 0 && interval > 0 {
		expected = int(math.Floor(duration / interval.Seconds()))
	}
	return Manifest{Interval: interval, Expected: expected, Pattern: pattern}
}

// Name returns the output file name for a 1-based ordinal.
func (m Manifest) Name(ordinal int) string {
	return fmt.Sprintf(m.Pattern, ordinal)
}

// Args builds the single extraction command for input.
func (m Manifest) Args(input string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", input,
		"-vf", "fps=1/" + strconv.FormatFloat(m.Interval.Seconds(), 'f', -1, 64),
		"-frames:v", strconv.Itoa(m.Expected),
		m.Pattern,
	}
}

type Decision string

const (
	DecisionKept      Decision = "kept"
	DecisionDiscarded Decision = "discarded"
	DecisionStopped   Decision = "stopped"
)

// Event is emitted once per candidate ordinal the pipeline looks at.
type Event struct {
	Ordinal  int
	Expected int
	Decision Decision
	Reason   entity.KeepReason
	Score    float64
}

type Observer func(Event)

type Config struct {
	Interval time.Duration
	// Threshold is used as given. Zero keeps every frame.
	Threshold float64
	Pattern   string
}

func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Threshold: DefaultThreshold, Pattern: DefaultPattern}
}

// Pipeline samples a source at a fixed interval and keeps frames that differ
// from the last kept one.
type Pipeline struct {
	engine   port.CodecEngine
	cfg      Config
	observer Observer
	logger   *zap.Logger
}

func NewPipeline(engine port.CodecEngine, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	return &Pipeline{engine: engine, cfg: cfg, logger: logger}
}

// WithObserver sets a callback that receives one Event per candidate.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	p.observer = o
	return p
}

// Run extracts candidates from input and returns the kept frames in order.
// Reading or normalization failures end the run early with partial results;
// only cancellation is returned as an error.
func (p *Pipeline) Run(ctx context.Context, input string, duration float64) (*entity.SamplingResult, error) {
	m := NewManifest(duration, p.cfg.Interval, p.cfg.Pattern)
	log := p.logger.With(
		zap.String("input", input),
		zap.Int("expected", m.Expected),
		zap.Float64("threshold", p.cfg.Threshold),
	)

	res := &entity.SamplingResult{
		Duration:   duration,
		Interval:   m.Interval,
		Expected:   m.Expected,
		StopReason: entity.StopCompleted,
	}
	if m.Expected == 0 {
		log.Warn("nothing to sample", zap.Float64("duration_secs", duration))
		res.StopReason = entity.StopEmptySource
		return res, nil
	}

	extractErr := p.engine.Exec(ctx, m.Args(input)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if extractErr != nil {
		log.Warn("frame extraction reported an error, reading what was produced", zap.Error(extractErr))
	}

	var baseline []byte
	for i := 1; i <= m.Expected; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := m.Name(i)
		data, err := p.engine.ReadFile(name)
		if err != nil {
			if extractErr != nil && res.Read == 0 {
				err = fmt.Errorf("%v (extraction: %v)", err, extractErr)
			}
			res.StopReason = entity.StopUnreadable
			res.StopErr = fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, name, err)
			log.Info("stopping at unreadable frame", zap.Int("ordinal", i), zap.Error(err))
			p.emit(Event{Ordinal: i, Expected: m.Expected, Decision: DecisionStopped})
			break
		}
		res.Read++

		frame, err := Normalize(data)
		if err != nil {
			res.StopReason = entity.StopRendering
			res.StopErr = fmt.Errorf("%s: %w", name, err)
			log.Warn("stopping at frame that could not be normalized", zap.Int("ordinal", i), zap.Error(err))
			p.emit(Event{Ordinal: i, Expected: m.Expected, Decision: DecisionStopped})
			break
		}

		pix := frame.Canonical.Pix
		kept := entity.KeptFrame{Ordinal: i, Page: frame.Page}
		switch {
		case baseline == nil:
			kept.Reason = entity.KeepFirst
		case len(pix) != len(baseline):
			kept.Reason = entity.KeepDimensionChange
			log.Debug("frame dimensions changed, rebaselining",
				zap.Int("ordinal", i),
				zap.Int("width", frame.Canonical.Width),
				zap.Int("height", frame.Canonical.Height),
			)
		default:
			score, err := RMSDiff(baseline, pix)
			if err != nil {
				return nil, err
			}
			if score < p.cfg.Threshold {
				res.Discarded++
				log.Debug("discarding near-duplicate frame", zap.Int("ordinal", i), zap.Float64("score", score))
				p.emit(Event{Ordinal: i, Expected: m.Expected, Decision: DecisionDiscarded, Score: score})
				continue
			}
			kept.Reason = entity.KeepChanged
			kept.Score = score
		}

		baseline = pix
		res.Kept = append(res.Kept, kept)
		p.emit(Event{Ordinal: i, Expected: m.Expected, Decision: DecisionKept, Reason: kept.Reason, Score: kept.Score})
	}

	log.Info("sampling finished",
		zap.Int("read", res.Read),
		zap.Int("kept", len(res.Kept)),
		zap.Int("discarded", res.Discarded),
		zap.String("stop_reason", string(res.StopReason)),
	)
	return res, nil
}

func (p *Pipeline) emit(e Event) {
	if p.observer != nil {
		p.observer(e)
	}
}
