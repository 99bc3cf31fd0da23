package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracerProviderInstallsPropagator(t *testing.T) {
	tp, err := InitTracerProvider(context.Background(), Config{ServiceName: "boamp-console-test", Version: "1.2.3", SampleRatio: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	require.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	require.NotEmpty(t, carrier.Get("traceparent"))
}

func TestSamplerRatioBounds(t *testing.T) {
	t.Parallel()

	assert.Contains(t, Config{SampleRatio: 1}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Config{SampleRatio: 0}.sampler().Description(), "AlwaysOffSampler")
	assert.Contains(t, Config{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
