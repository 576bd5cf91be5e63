package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const tailLines = 20

// Engine runs ffmpeg inside a working directory that acts as its file system.
// Commands are serialized. A log subscription binds to the next command to
// start and lasts until that command exits or the subscriber deregisters.
type Engine struct {
	binary  string
	workDir string
	logger  *zap.Logger

	execMu sync.Mutex

	subMu sync.Mutex
	subs  map[*subscription]struct{}
}

type subscription struct {
	ch    chan string
	quit  chan struct{}
	once  sync.Once
	bound bool
}

var _ port.CodecEngine = (*Engine)(nil)

func NewEngine(binary, workDir string, logger *zap.Logger) (*Engine, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create engine workdir: %w", err)
	}
	return &Engine{
		binary:  binary,
		workDir: workDir,
		logger:  logger.With(zap.String("engine_workdir", workDir)),
		subs:    make(map[*subscription]struct{}),
	}, nil
}

func (e *Engine) WorkDir() string {
	return e.workDir
}

// Subscribe registers a listener for the log of the next command to start. A
// command that is already running when Subscribe is called is not included.
func (e *Engine) Subscribe() (<-chan string, func()) {
	s := &subscription{
		ch:   make(chan string, 64),
		quit: make(chan struct{}),
	}
	e.subMu.Lock()
	e.subs[s] = struct{}{}
	e.subMu.Unlock()

	return s.ch, func() {
		s.once.Do(func() { close(s.quit) })
		e.subMu.Lock()
		delete(e.subs, s)
		e.subMu.Unlock()
	}
}

func (e *Engine) Exec(ctx context.Context, args ...string) error {
	e.execMu.Lock()
	defer e.execMu.Unlock()
	subs := e.bindSubscribers()
	defer e.closeSubscribers(subs)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = e.workDir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	e.logger.Debug("running ffmpeg", zap.Strings("args", args))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.binary, err)
	}

	tail := make([]string, 0, tailLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLogLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(tail) == tailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
		e.broadcast(subs, line)
	}

	err = cmd.Wait()
	e.logger.Debug("ffmpeg finished", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &port.ExitError{Code: exitErr.ExitCode(), Tail: strings.Join(tail, "\n")}
	}
	return fmt.Errorf("wait %s: %w", e.binary, err)
}

func (e *Engine) ReadFile(name string) ([]byte, error) {
	p, err := e.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (e *Engine) WriteFile(name string, data []byte) error {
	p, err := e.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (e *Engine) path(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid engine file name %q", name)
	}
	return filepath.Join(e.workDir, name), nil
}

// bindSubscribers attaches every unbound subscription to the command about to run.
func (e *Engine) bindSubscribers() []*subscription {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	subs := make([]*subscription, 0, len(e.subs))
	for s := range e.subs {
		if !s.bound {
			s.bound = true
			subs = append(subs, s)
		}
	}
	return subs
}

func (e *Engine) broadcast(subs []*subscription, line string) {
	for _, s := range subs {
		select {
		case s.ch <- line:
		case <-s.quit:
		}
	}
}

func (e *Engine) closeSubscribers(subs []*subscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, s := range subs {
		if _, ok := e.subs[s]; ok {
			close(s.ch)
			delete(e.subs, s)
		}
	}
}

// scanLogLines splits on \n and on the bare \r ffmpeg uses for progress updates.
func scanLogLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ValidateBinary checks that binary runs.
func ValidateBinary(ctx context.Context, binary string) error {
	out, err := exec.CommandContext(ctx, binary, "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s validation failed: %w, output: %s", binary, err, string(out))
	}
	return nil
}
