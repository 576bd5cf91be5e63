package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerProbes(t *testing.T) {
	healthy := NewHandler(func(context.Context) error { return nil })
	broken := NewHandler(func(context.Context) error { return errors.New("postgres down") })

	tests := []struct {
		name    string
		handler http.Handler
		path    string
		code    int
	}{
		{"liveness", broken, "/healthz", http.StatusOK},
		{"ready", healthy, "/readyz", http.StatusOK},
		{"not ready", broken, "/readyz", http.StatusServiceUnavailable},
		{"metrics", healthy, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestMetricsExposeVideo2docSeries(t *testing.T) {
	FramesSampledTotal.Add(1)

	rec := httptest.NewRecorder()
	NewHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "video2doc_frames_sampled_total")
}
