package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMockTracer(t *testing.T) *mocktracer.MockTracer {
	prev := opentracing.GlobalTracer()
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })
	return tracer
}

func TestInitJaegerDisabled(t *testing.T) {
	tracer, closer, err := InitJaeger("relay-test", false)
	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tracer)
	assert.NoError(t, closer.Close())
}

func TestReporterConfig(t *testing.T) {
	rc := reporterConfig()
	assert.True(t, rc.LogSpans)
	assert.Equal(t, 100, rc.QueueSize)
	assert.Equal(t, "localhost:6831", rc.LocalAgentHostPort)

	t.Setenv("JAEGER_AGENT_HOST", "jaeger")
	t.Setenv("JAEGER_REPORTER_LOG_SPANS", "false")
	t.Setenv("JAEGER_REPORTER_MAX_QUEUE_SIZE", "500")
	rc = reporterConfig()
	assert.False(t, rc.LogSpans)
	assert.Equal(t, 500, rc.QueueSize)
	assert.Equal(t, "jaeger:6831", rc.LocalAgentHostPort)
}

func TestHeaderPropagation(t *testing.T) {
	tracer := useMockTracer(t)

	client, _ := StartClientSpan(context.Background(), "Display.SendToDisplay")
	headers := map[string]string{}
	InjectHeaders(client, headers)
	require.NotEmpty(t, headers)

	server, _ := StartServerSpan(context.Background(), "Display.SendToDisplay", headers)
	server.Finish()
	client.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.TraceID, spans[0].SpanContext.TraceID)
	assert.Equal(t, spans[1].SpanContext.SpanID, spans[0].ParentID)
}

func TestStartSpanTagsRequestID(t *testing.T) {
	tracer := useMockTracer(t)

	span, _ := StartSpanFromContext(context.Background(), "ProcessData", "req-1")
	span.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "req-1", spans[0].Tag("request_id"))
}
