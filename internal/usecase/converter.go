package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"github.com/video2doc/video2doc-processing-service/internal/infra/metrics"
	"github.com/video2doc/video2doc-processing-service/internal/infra/pdf"
	"github.com/video2doc/video2doc-processing-service/internal/slides"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	StageDownload = "download"
	StageProbe    = "probe"
	StageSample   = "sample"
	StageAssemble = "assemble"
	StageUpload   = "upload"
)

type ConverterConfig struct {
	ProbeMarker  string
	ProbeMaxWait time.Duration
	Sampling     slides.Config
}

// Input names the source inside the engine's file system. Path is the same
// file on local disk, used by the duration fallback.
type Input struct {
	Name string
	Path string
}

type Conversion struct {
	Duration float64
	Sampling *entity.SamplingResult
	Document *entity.Document
}

// Converter runs probe, sampling and assembly over a source the engine can
// already see. Fallback may be nil, in which case an unknown duration fails.
type Converter struct {
	assembler port.DocumentAssembler
	fallback  port.DurationProber
	cfg       ConverterConfig
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewConverter(assembler port.DocumentAssembler, fallback port.DurationProber, cfg ConverterConfig, logger *zap.Logger) *Converter {
	return &Converter{
		assembler: assembler,
		fallback:  fallback,
		cfg:       cfg,
		tracer:    otel.Tracer("usecase"),
		logger:    logger,
	}
}

func (c *Converter) Convert(ctx context.Context, engine port.CodecEngine, in Input, observer slides.Observer) (*Conversion, error) {
	log := c.logger.With(zap.String("input", in.Name))
	conv := &Conversion{}

	err := runStage(ctx, c.tracer, StageProbe, func(ctx context.Context) error {
		d, err := c.duration(ctx, engine, in, log)
		conv.Duration = d
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(ctx, c.tracer, StageSample, func(ctx context.Context) error {
		res, err := slides.NewPipeline(engine, c.cfg.Sampling, log).WithObserver(observer).Run(ctx, in.Name, conv.Duration)
		if err != nil {
			return err
		}
		recordSampling(res)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("sample.expected", res.Expected),
			attribute.Int("sample.read", res.Read),
			attribute.Int("sample.kept", len(res.Kept)),
		)
		conv.Sampling = res
		return checkSampling(res)
	})
	if err != nil {
		return nil, err
	}

	err = runStage(ctx, c.tracer, StageAssemble, func(ctx context.Context) error {
		doc, err := c.assembler.Assemble(ctx, conv.Sampling.Kept)
		switch {
		case errors.Is(err, pdf.ErrEmptyDocument):
			return permanent(StageAssemble, CodeEmptyDocument, err)
		case err != nil && ctx.Err() == nil:
			return permanent(StageAssemble, CodeCompositionFailed, err)
		case err != nil:
			return err
		}
		metrics.PagesAssembledTotal.Add(float64(len(doc.Pages)))
		conv.Document = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("conversion finished",
		zap.Float64("duration_secs", conv.Duration),
		zap.Int("pages", len(conv.Document.Pages)),
		zap.Ints("skipped", conv.Document.Skipped),
	)
	return conv, nil
}

func (c *Converter) duration(ctx context.Context, engine port.CodecEngine, in Input, log *zap.Logger) (float64, error) {
	probe := slides.NewDurationProbe(engine, c.cfg.ProbeMarker, c.cfg.ProbeMaxWait, log)
	d, err := probe.Probe(ctx, in.Name)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, slides.ErrDurationUnknown) {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, transient(StageProbe, CodeEngineUnavailable, err)
	}
	if c.fallback == nil {
		return 0, permanent(StageProbe, slides.CodeDurationUnknown, err)
	}

	log.Warn("engine log carried no duration, asking ffprobe", zap.Error(err))
	d, ferr := c.fallback.Duration(ctx, in.Path)
	if ferr != nil {
		return 0, permanent(StageProbe, slides.CodeDurationUnknown, fmt.Errorf("%w; fallback: %v", err, ferr))
	}
	return d, nil
}

// checkSampling fails a run that kept nothing, reporting why it stopped.
func checkSampling(res *entity.SamplingResult) error {
	if len(res.Kept) > 0 {
		return nil
	}
	if res.StopErr != nil {
		return permanent(StageSample, slides.Code(res.StopErr), fmt.Errorf("%w: %v", ErrNoFrames, res.StopErr))
	}
	return permanent(StageSample, CodeNoFrames, fmt.Errorf("%w: %s", ErrNoFrames, res.StopReason))
}

func recordSampling(res *entity.SamplingResult) {
	metrics.FramesSampledTotal.Add(float64(res.Read))
	metrics.FramesDiscardedTotal.Add(float64(res.Discarded))
	metrics.SamplingStopsTotal.WithLabelValues(string(res.StopReason)).Inc()
}

// runStage wraps fn in a span and records its duration.
func runStage(ctx context.Context, tracer trace.Tracer, stage string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, stage)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
