package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/talk.mp4":
			assert.Equal(t, "video2doc-test", r.UserAgent())
			_, _ = w.Write([]byte("fake video bytes"))
		case "/gone.mp4":
			http.NotFound(w, r)
		default:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{UserAgent: "video2doc-test"}, zap.NewNop())

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), srv.URL+"/talk.mp4", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)
	assert.Equal(t, "fake video bytes", buf.String())

	_, err = c.Download(context.Background(), srv.URL+"/gone.mp4", &buf)
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.True(t, IsPermanent(err))

	_, err = c.Download(context.Background(), srv.URL+"/busy.mp4", &buf)
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
	assert.False(t, IsPermanent(err))
}

func TestDownloadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, zap.NewNop())
	_, err := c.Download(context.Background(), addr+"/talk.mp4", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
	assert.False(t, IsPermanent(err))
}

func TestDownloadCancelled(t *testing.T) {
	c := NewClient(ClientConfig{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Download(ctx, "http://127.0.0.1:1/talk.mp4", &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveHosted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://video.example.com/watch?v=42", r.URL.Query().Get("command"))
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"[info] extracting\n", "[download] 100%\n<a hr", `ef="/download/talk.mp4">Download</a>`} {
			_, _ = fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ResolverURL: srv.URL + "/stream"}, zap.NewNop())
	link, err := c.ResolveHosted(context.Background(), "https://video.example.com/watch?v=42")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/download/talk.mp4", link)
}

func TestResolveHostedNoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ERROR: unsupported URL\n")
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ResolverURL: srv.URL}, zap.NewNop())
	_, err := c.ResolveHosted(context.Background(), "https://example.com/not-a-video")
	assert.ErrorIs(t, err, ErrDownloadLinkNotFound)
	assert.True(t, IsPermanent(err))
}

func TestResolveHostedTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "[info] still working\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{ResolverURL: srv.URL, ResolverTimeout: 50 * time.Millisecond}, zap.NewNop())
	_, err := c.ResolveHosted(context.Background(), "https://video.example.com/watch?v=1")
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
}

func TestStatusErrorPermanent(t *testing.T) {
	tests := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusForbidden:           true,
		http.StatusNotFound:            true,
		http.StatusRequestTimeout:      false,
		http.StatusTooManyRequests:     false,
		http.StatusInternalServerError: false,
		http.StatusBadGateway:          false,
	}
	for code, want := range tests {
		assert.Equal(t, want, (&StatusError{StatusCode: code}).Permanent(), "status %d", code)
	}
}
