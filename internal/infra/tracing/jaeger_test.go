package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestSamplerBounds(t *testing.T) {
	assert.Contains(t, Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(2).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestResourceCarriesServiceIdentity(t *testing.T) {
	res := Resource("1.2.3")
	attrs := res.Attributes()
	assert.Contains(t, attrs, semconv.ServiceName(ServiceName))
	assert.Contains(t, attrs, attribute.String(string(semconv.ServiceVersionKey), "1.2.3"))
}

func TestNeverSampleDropsRootSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(Sampler(0)), sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "convert")
	span.End()
	assert.Empty(t, rec.Ended())
}

func TestInitTracerInstallsProvider(t *testing.T) {
	tp, err := InitTracer(context.Background(), Config{
		Endpoint:    "http://127.0.0.1:4318/v1/traces",
		Version:     "test",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))
}
