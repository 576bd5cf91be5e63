package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/schollz/progressbar/v3"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"github.com/video2doc/video2doc-processing-service/internal/infra/archive"
	"github.com/video2doc/video2doc-processing-service/internal/infra/fetch"
	"github.com/video2doc/video2doc-processing-service/internal/infra/ffmpeg"
	"github.com/video2doc/video2doc-processing-service/internal/infra/pdf"
	"github.com/video2doc/video2doc-processing-service/internal/slides"
	"github.com/video2doc/video2doc-processing-service/internal/usecase"
	"github.com/video2doc/video2doc-processing-service/pkg/logger"
	"go.uber.org/zap"
)

type args struct {
	Input           string        `arg:"-i,--input" help:"path to a local video"`
	URL             string        `arg:"--url" help:"direct link to a video file"`
	Hosted          string        `arg:"--hosted" help:"page URL of a hosted video, resolved to a download link first"`
	Output          string        `arg:"-o,--output" default:"video2doc-output.pdf" help:"where to write the PDF"`
	Interval        time.Duration `arg:"--interval" default:"10s" help:"time between sampled frames"`
	Threshold       float64       `arg:"--threshold" default:"5" help:"minimum RMS difference for a frame to count as a new slide"`
	FFmpeg          string        `arg:"--ffmpeg,env:FFMPEG_PATH" default:"ffmpeg" help:"ffmpeg binary"`
	FFprobe         string        `arg:"--ffprobe,env:FFPROBE_PATH" default:"ffprobe" help:"ffprobe binary used by --ffprobe-fallback"`
	FFprobeFallback bool          `arg:"--ffprobe-fallback" help:"ask ffprobe when the ffmpeg log carries no duration"`
	Archive         string        `arg:"--archive" help:"also write the kept slides as a zip to this path"`
	LogLevel        string        `arg:"--log-level,env:LOG_LEVEL" default:"warn" help:"debug, info, warn or error"`
}

func (args) Description() string {
	return "video2doc turns a recorded talk into a PDF with one page per distinct slide."
}

func (args) Version() string {
	return "video2doc 1.0.0"
}

func (a *args) validate() error {
	given := 0
	for _, s := range []string{a.Input, a.URL, a.Hosted} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return errors.New("exactly one of --input, --url or --hosted is required")
	}
	if a.Interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", a.Interval)
	}
	if a.Threshold < 0 {
		return fmt.Errorf("--threshold must not be negative, got %g", a.Threshold)
	}
	return nil
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if err := a.validate(); err != nil {
		p.Fail(err.Error())
	}

	log, err := logger.NewConsole(a.LogLevel)
	if err != nil {
		p.Fail(err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, log); err != nil {
		fmt.Fprintf(os.Stderr, "video2doc: %v\n", err)
		if errors.Is(err, slides.ErrDurationUnknown) && !a.FFprobeFallback {
			fmt.Fprintln(os.Stderr, "hint: rerun with --ffprobe-fallback to read the duration with ffprobe")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, log *zap.Logger) error {
	if err := ffmpeg.ValidateBinary(ctx, a.FFmpeg); err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "video2doc-")
	if err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	in, err := resolveInput(ctx, a, workDir, log)
	if err != nil {
		return err
	}

	engine, err := ffmpeg.NewEngine(a.FFmpeg, workDir, log)
	if err != nil {
		return err
	}

	var fallback port.DurationProber
	if a.FFprobeFallback {
		fallback = ffmpeg.NewFFProbe(a.FFprobe, 0)
	}
	converter := usecase.NewConverter(pdf.NewAssembler(true, log), fallback, usecase.ConverterConfig{
		Sampling: slides.Config{Interval: a.Interval, Threshold: a.Threshold},
	}, log)

	progress := newProgress()
	conv, err := converter.Convert(ctx, engine, in, progress.observe)
	progress.finish()
	if err != nil {
		return err
	}

	if err := os.WriteFile(a.Output, conv.Document.Blob, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", a.Output, err)
	}
	if a.Archive != "" {
		if err := writeArchive(ctx, a.Archive, conv); err != nil {
			return err
		}
	}

	res := conv.Sampling
	fmt.Printf("%s: %d pages from %d sampled frames (%d near-duplicates dropped)\n",
		a.Output, len(conv.Document.Pages), res.Read, res.Discarded)
	if !res.Complete() {
		fmt.Printf("sampling stopped early at frame %d of %d: %v\n", res.Read+1, res.Expected, res.StopErr)
	}
	return nil
}

func resolveInput(ctx context.Context, a args, workDir string, log *zap.Logger) (usecase.Input, error) {
	if a.Input != "" {
		abs, err := filepath.Abs(a.Input)
		if err != nil {
			return usecase.Input{}, err
		}
		if _, err := os.Stat(abs); err != nil {
			return usecase.Input{}, err
		}
		return usecase.Input{Name: abs, Path: abs}, nil
	}

	client := fetch.NewClient(fetch.ClientConfig{}, log)
	link := a.URL
	if a.Hosted != "" {
		var err error
		if link, err = client.ResolveHosted(ctx, a.Hosted); err != nil {
			return usecase.Input{}, err
		}
		log.Info("resolved hosted video", zap.String("download_url", link))
	}

	name := "input" + filepath.Ext(link)
	if len(name) == len("input") || len(name) > len("input")+6 {
		name = "input.mp4"
	}
	path := filepath.Join(workDir, name)
	f, err := os.Create(path)
	if err != nil {
		return usecase.Input{}, err
	}
	defer f.Close()

	n, err := client.Download(ctx, link, f)
	if err != nil {
		return usecase.Input{}, err
	}
	log.Info("downloaded source", zap.Int64("bytes", n))
	return usecase.Input{Name: name, Path: path}, nil
}

func writeArchive(ctx context.Context, path string, conv *usecase.Conversion) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := archive.NewZipCreator().CreateArchive(ctx, conv.Sampling.Kept, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// progress renders a bar once the pipeline reports how many frames to expect.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress() *progress {
	return &progress{}
}

func (p *progress) observe(e slides.Event) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(e.Expected,
			progressbar.OptionSetDescription("Sampling"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	if e.Decision == slides.DecisionStopped {
		_ = p.bar.Finish()
		return
	}
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
