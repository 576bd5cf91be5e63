package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"github.com/video2doc/video2doc-processing-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultInputExt = ".mp4"

// EngineFactory opens a codec engine rooted at a job's working directory.
type EngineFactory func(workDir string) (port.CodecEngine, error)

type ConvertVideoDeps struct {
	Repo      port.JobRepository
	Storage   port.VideoStorage
	Fetcher   port.RemoteFetcher
	Engines   EngineFactory
	Converter *Converter
	Archiver  port.Archiver
	Publisher port.StatusPublisher
	DLQ       port.DLQPublisher
	Notifier  port.FailureNotifier
}

type ConvertVideoConfig struct {
	TempDir       string
	MaxRetries    int
	ExportArchive bool
}

type ConvertVideoUseCase struct {
	ConvertVideoDeps
	cfg    ConvertVideoConfig
	tracer trace.Tracer
	logger *zap.Logger
}

func NewConvertVideoUseCase(deps ConvertVideoDeps, cfg ConvertVideoConfig, logger *zap.Logger) *ConvertVideoUseCase {
	return &ConvertVideoUseCase{
		ConvertVideoDeps: deps,
		cfg:              cfg,
		tracer:           otel.Tracer("usecase"),
		logger:           logger,
	}
}

// Execute handles one raw queue message. A nil return acks the message; a
// *RetryError asks the consumer to requeue it after a backoff.
func (uc *ConvertVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, span := uc.tracer.Start(ctx, "ConvertVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	msg, err := decodeMessage(rawMsg)
	if err != nil {
		uc.logger.Error("rejecting conversion message", zap.Error(err), zap.ByteString("body", rawMsg))
		if dlqErr := uc.DLQ.PublishToDLQ(ctx, rawMsg, err.Error()); dlqErr != nil {
			return fmt.Errorf("dead-letter invalid message: %w", dlqErr)
		}
		metrics.JobsProcessedTotal.WithLabelValues("rejected").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.source_type", string(msg.SourceType)),
		attribute.String("job.source", msg.Source()),
	)
	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("source_type", string(msg.SourceType)),
		zap.String("source", msg.Source()),
	)

	job, err := uc.loadJob(ctx, msg)
	if err != nil {
		log.Error("failed to load job record", zap.Error(err))
		return err
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		uc.failPermanently(ctx, job, msg, rawMsg, permanent("admission", CodeRetriesExhausted, errors.New("max retries exceeded")), log)
		return nil
	}

	job.MarkProcessing()
	if err := uc.Repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.convert(ctx, job, msg, log); err != nil {
		if ctx.Err() != nil {
			log.Warn("conversion interrupted", zap.Error(err))
			return err
		}
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func decodeMessage(rawMsg []byte) (entity.VideoConversionMessage, error) {
	var msg entity.VideoConversionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return msg, fmt.Errorf("%w: unmarshal: %v", ErrInvalidMessage, err)
	}
	if msg.SourceType == "" {
		msg.SourceType = entity.SourceUpload
	}
	if !msg.SourceType.Valid() {
		return msg, fmt.Errorf("%w: unknown source type %q", ErrInvalidMessage, msg.SourceType)
	}
	if msg.Source() == "" {
		return msg, fmt.Errorf("%w: %s source without a locator", ErrInvalidMessage, msg.SourceType)
	}
	return msg, nil
}

func (uc *ConvertVideoUseCase) loadJob(ctx context.Context, msg entity.VideoConversionMessage) (*entity.Job, error) {
	job, err := uc.Repo.FindByID(ctx, msg.JobID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, port.ErrJobNotFound) {
		return nil, fmt.Errorf("find job: %w", err)
	}

	job = entity.NewJob(msg.UserID, msg.SourceType, msg.VideoKey, msg.SourceURL, msg.FileSize, uc.cfg.MaxRetries)
	job.ID = msg.JobID
	if err := uc.Repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (uc *ConvertVideoUseCase) convert(ctx context.Context, job *entity.Job, msg entity.VideoConversionMessage, log *zap.Logger) error {
	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	var in Input
	err := runStage(ctx, uc.tracer, StageDownload, func(ctx context.Context) error {
		var err error
		in, err = uc.acquire(ctx, workDir, msg, log)
		return err
	})
	if err != nil {
		return err
	}

	engine, err := uc.Engines(workDir)
	if err != nil {
		return transient(StageProbe, CodeEngineUnavailable, err)
	}

	conv, err := uc.Converter.Convert(ctx, engine, in, nil)
	if err != nil {
		return err
	}

	documentKey := fmt.Sprintf("%s/slides_%s.pdf", job.UserID, job.ID)
	err = runStage(ctx, uc.tracer, StageUpload, func(ctx context.Context) error {
		blob := conv.Document.Blob
		if err := uc.Storage.UploadDocument(ctx, documentKey, bytes.NewReader(blob), int64(len(blob))); err != nil {
			return transient(StageUpload, CodeStorageFailed, err)
		}
		if !uc.cfg.ExportArchive || uc.Archiver == nil {
			return nil
		}

		var buf bytes.Buffer
		if err := uc.Archiver.CreateArchive(ctx, conv.Sampling.Kept, &buf); err != nil {
			return transient(StageUpload, CodeStorageFailed, fmt.Errorf("build slide archive: %w", err))
		}
		archiveKey := fmt.Sprintf("%s/slides_%s.zip", job.UserID, job.ID)
		if err := uc.Storage.UploadArchive(ctx, archiveKey, &buf, int64(buf.Len())); err != nil {
			return transient(StageUpload, CodeStorageFailed, err)
		}
		job.ArchiveKey = archiveKey
		return nil
	})
	if err != nil {
		return err
	}

	job.MarkCompleted(documentKey, len(conv.Document.Pages), conv.Sampling.Read, conv.Duration)
	if err := uc.Repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed",
		zap.Int("page_count", job.PageCount),
		zap.Int("frames_sampled", job.FramesSampled),
		zap.Float64("duration_secs", job.VideoDuration),
		zap.String("document_key", documentKey),
	)
	return nil
}

// acquire places the source in workDir and returns where the engine can find it.
func (uc *ConvertVideoUseCase) acquire(ctx context.Context, workDir string, msg entity.VideoConversionMessage, log *zap.Logger) (Input, error) {
	switch msg.SourceType {
	case entity.SourceUpload:
		in := inputFor(workDir, msg.VideoKey)
		if err := uc.Storage.DownloadVideo(ctx, msg.VideoKey, in.Path); err != nil {
			return Input{}, transient(StageDownload, CodeStorageFailed, err)
		}
		return in, nil

	case entity.SourceHosted:
		link, err := uc.Fetcher.ResolveHosted(ctx, msg.SourceURL)
		if err != nil {
			return Input{}, fetchFailure(StageDownload, err)
		}
		log.Debug("resolved hosted video", zap.String("download_url", link))
		return uc.download(ctx, workDir, link)

	default:
		return uc.download(ctx, workDir, msg.SourceURL)
	}
}

func (uc *ConvertVideoUseCase) download(ctx context.Context, workDir, rawURL string) (Input, error) {
	in := inputFor(workDir, urlPath(rawURL))
	f, err := os.Create(in.Path)
	if err != nil {
		return Input{}, fmt.Errorf("create input file: %w", err)
	}
	_, err = uc.Fetcher.Download(ctx, rawURL, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close input file: %w", cerr)
	}
	if err != nil {
		return Input{}, fetchFailure(StageDownload, err)
	}
	return in, nil
}

func inputFor(workDir, locator string) Input {
	ext := strings.ToLower(path.Ext(locator))
	if ext == "" || len(ext) > 6 {
		ext = defaultInputExt
	}
	name := "input" + ext
	return Input{Name: name, Path: filepath.Join(workDir, name)}
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func (uc *ConvertVideoUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoConversionMessage,
	rawMsg []byte,
	err error,
	log *zap.Logger,
) error {
	var se *StageError
	if !errors.As(err, &se) {
		se = transient("internal", ErrorCode(err), err)
	}
	log.Error("conversion failed",
		zap.String("stage", se.Stage),
		zap.String("error_code", se.Code),
		zap.Bool("permanent", se.Permanent),
		zap.Error(err),
	)

	if se.Permanent || job.Attempt >= job.MaxAttempts {
		uc.failPermanently(ctx, job, msg, rawMsg, se, log)
		return nil
	}

	job.MarkFailed(se.Code, se.Error())
	if err := uc.Repo.Update(ctx, job); err != nil {
		log.Error("failed to record failed attempt", zap.Error(err))
	}
	metrics.JobFailuresTotal.WithLabelValues(se.Code).Inc()
	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return &RetryError{Attempt: job.Attempt, MaxAttempts: job.MaxAttempts, Err: se}
}

func (uc *ConvertVideoUseCase) failPermanently(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoConversionMessage,
	rawMsg []byte,
	se *StageError,
	log *zap.Logger,
) {
	job.MarkFailed(se.Code, se.Error())
	if err := uc.Repo.Update(ctx, job); err != nil {
		log.Error("failed to record permanent failure", zap.Error(err))
	}

	if err := uc.DLQ.PublishToDLQ(ctx, rawMsg, se.Code+": "+se.Error()); err != nil {
		log.Error("failed to publish to DLQ", zap.Error(err))
	}
	uc.publishStatus(ctx, job, log)

	metrics.JobFailuresTotal.WithLabelValues(se.Code).Inc()
	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		if err := uc.Notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.Source(), se.Error()); err != nil {
			log.Warn("failed to send failure notice", zap.Error(err))
		}
	}
}

func (uc *ConvertVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	status := entity.VideoStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		SourceType:    job.SourceType,
		Source:        job.Source(),
		DocumentKey:   job.DocumentKey,
		ArchiveKey:    job.ArchiveKey,
		PageCount:     job.PageCount,
		FramesSampled: job.FramesSampled,
		Duration:      job.VideoDuration,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	if err := uc.Publisher.PublishStatus(ctx, status); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
