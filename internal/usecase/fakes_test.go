package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
)

// scriptedEngine answers the probe with probeLog and makes frames appear once
// an extraction command runs.
type scriptedEngine struct {
	mu       sync.Mutex
	probeLog []string
	frames   map[string][]byte
	files    map[string][]byte
	subs     []chan string
	execs    [][]string
}

func newScriptedEngine(duration string, frames ...[]byte) *scriptedEngine {
	e := &scriptedEngine{frames: make(map[string][]byte), files: make(map[string][]byte)}
	e.probeLog = []string{"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'input.mp4':"}
	if duration != "" {
		e.probeLog = append(e.probeLog, "  Duration: "+duration+", start: 0.000000, bitrate: 800 kb/s")
	}
	e.probeLog = append(e.probeLog, "At least one output file must be specified")
	for i, f := range frames {
		e.frames[fmt.Sprintf("output_%04d.png", i+1)] = f
	}
	return e
}

func (e *scriptedEngine) Exec(_ context.Context, args ...string) error {
	e.mu.Lock()
	e.execs = append(e.execs, args)
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	defer func() {
		for _, ch := range subs {
			close(ch)
		}
	}()

	if len(args) == 3 {
		for _, line := range e.probeLog {
			for _, ch := range subs {
				ch <- line
			}
		}
		return &port.ExitError{Code: 1}
	}

	e.mu.Lock()
	for name, data := range e.frames {
		e.files[name] = data
	}
	e.mu.Unlock()
	return nil
}

func (e *scriptedEngine) ReadFile(name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (e *scriptedEngine) WriteFile(name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *scriptedEngine) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch, func() {}
}

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.Job
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]entity.Job)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return port.ErrJobNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	return &job, nil
}

func (r *fakeRepo) get(id uuid.UUID) entity.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

type fakeStorage struct {
	downloadErr error
	uploadErr   error
	videos      map[string][]byte
	documents   map[string][]byte
	archives    map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		videos:    make(map[string][]byte),
		documents: make(map[string][]byte),
		archives:  make(map[string][]byte),
	}
}

func (s *fakeStorage) DownloadVideo(_ context.Context, key, dest string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(dest, s.videos[key], 0o644)
}

func (s *fakeStorage) UploadDocument(_ context.Context, key string, r io.Reader, _ int64) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(r)
	s.documents[key] = data
	return err
}

func (s *fakeStorage) UploadArchive(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	s.archives[key] = data
	return err
}

type fakeFetcher struct {
	link        string
	resolveErr  error
	downloadErr error
	resolved    []string
	downloaded  []string
}

func (f *fakeFetcher) Download(_ context.Context, url string, w io.Writer) (int64, error) {
	f.downloaded = append(f.downloaded, url)
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	n, err := w.Write([]byte("video"))
	return int64(n), err
}

func (f *fakeFetcher) ResolveHosted(_ context.Context, pageURL string) (string, error) {
	f.resolved = append(f.resolved, pageURL)
	return f.link, f.resolveErr
}

type fakeProber struct {
	duration float64
	err      error
	paths    []string
}

func (p *fakeProber) Duration(_ context.Context, path string) (float64, error) {
	p.paths = append(p.paths, path)
	return p.duration, p.err
}

type recorder struct {
	mu        sync.Mutex
	statuses  []entity.VideoStatusMessage
	dlq       []string
	emails    []string
	notifyErr error
}

func (r *recorder) PublishStatus(_ context.Context, status entity.VideoStatusMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *recorder) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dlq = append(r.dlq, reason)
	return nil
}

func (r *recorder) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, userEmail)
	return r.notifyErr
}

func (r *recorder) lastStatus() entity.VideoStatusMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func grayPNG(t *testing.T, w, h int, level uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: level, G: level, B: level, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
