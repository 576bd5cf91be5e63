package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"github.com/video2doc/video2doc-processing-service/internal/infra/archive"
	"github.com/video2doc/video2doc-processing-service/internal/infra/config"
	"github.com/video2doc/video2doc-processing-service/internal/infra/email"
	"github.com/video2doc/video2doc-processing-service/internal/infra/fetch"
	"github.com/video2doc/video2doc-processing-service/internal/infra/ffmpeg"
	"github.com/video2doc/video2doc-processing-service/internal/infra/metrics"
	miniostorage "github.com/video2doc/video2doc-processing-service/internal/infra/minio"
	"github.com/video2doc/video2doc-processing-service/internal/infra/pdf"
	"github.com/video2doc/video2doc-processing-service/internal/infra/postgres"
	"github.com/video2doc/video2doc-processing-service/internal/infra/rabbitmq"
	"github.com/video2doc/video2doc-processing-service/internal/infra/tracing"
	"github.com/video2doc/video2doc-processing-service/internal/slides"
	"github.com/video2doc/video2doc-processing-service/internal/usecase"
	"github.com/video2doc/video2doc-processing-service/pkg/logger"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video2doc-processing-service", zap.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing is optional; the worker runs without a collector.
	tp, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint:    cfg.JaegerEndpoint,
		Version:     version,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	fatalOnErr(ffmpeg.ValidateBinary(ctx, cfg.FFmpegPath), "validate ffmpeg")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	fatalOnErr(postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir), "run migrations")

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		DocumentBucket: cfg.MinIODocumentBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	var fallback port.DurationProber
	if cfg.DurationUnknownPolicy == config.DurationPolicyFFprobe {
		fallback = ffmpeg.NewFFProbe(cfg.FFprobePath, cfg.ProbeMaxWait)
	}
	converter := usecase.NewConverter(
		pdf.NewAssembler(cfg.PDFCompress, log),
		fallback,
		usecase.ConverterConfig{
			ProbeMarker:  cfg.ProbeMarker,
			ProbeMaxWait: cfg.ProbeMaxWait,
			Sampling: slides.Config{
				Interval:  cfg.SampleInterval,
				Threshold: cfg.DiffThreshold,
				Pattern:   cfg.FramePattern,
			},
		},
		log,
	)

	// The consumer owns the connection; publishers open their own channel on it.
	var uc *usecase.ConvertVideoUseCase
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:              cfg.RabbitMQURL,
		Queue:            cfg.RabbitMQConversionQueue,
		RoutingKey:       cfg.RabbitMQConversionQueue,
		Exchange:         cfg.RabbitMQExchange,
		DLQ:              cfg.RabbitMQDLQ,
		StatusQueue:      cfg.RabbitMQStatusQueue,
		StatusRoutingKey: cfg.RabbitMQStatusQueue,
		Prefetch:         cfg.RabbitMQPrefetch,
		WorkerCount:      cfg.WorkerCount,
		BaseDelayMs:      cfg.RetryBaseDelayMs,
	}, func(ctx context.Context, body []byte) error {
		return uc.Execute(ctx, body)
	}, log)
	fatalOnErr(err, "create consumer")
	defer consumer.Close()

	pub, err := rabbitmq.NewPublisher(consumer.Conn(), cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	uc = usecase.NewConvertVideoUseCase(usecase.ConvertVideoDeps{
		Repo:    postgres.NewJobRepository(pool),
		Storage: storage,
		Fetcher: fetch.NewClient(fetch.ClientConfig{
			Timeout:         cfg.FetchTimeout,
			ResolverURL:     cfg.HostingResolverURL,
			ResolverTimeout: cfg.HostingResolverTimeout,
			RatePerSecond:   cfg.FetchRatePerSecond,
			Burst:           cfg.FetchBurst,
			UserAgent:       "video2doc/" + version,
		}, log),
		Engines: func(workDir string) (port.CodecEngine, error) {
			return ffmpeg.NewEngine(cfg.FFmpegPath, workDir, log)
		},
		Converter: converter,
		Archiver:  archive.NewZipCreator(),
		Publisher: rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue),
		DLQ:       rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		Notifier:  email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
	}, usecase.ConvertVideoConfig{
		TempDir:       cfg.TempDir,
		MaxRetries:    cfg.MaxRetries,
		ExportArchive: cfg.ExportSlideArchive,
	}, log)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, pool.Ping, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("consuming conversion requests", zap.String("queue", cfg.RabbitMQConversionQueue))
	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info("video2doc-processing-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
