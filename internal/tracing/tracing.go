package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-lib/metrics"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitJaeger initializes the Jaeger tracer for service and installs it as the
// global tracer. When enabled is false a no-op tracer is installed instead.
func InitJaeger(service string, enabled bool) (opentracing.Tracer, io.Closer, error) {
	if !enabled {
		tracer := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(tracer)
		return tracer, nopCloser{}, nil
	}

	cfg := jaegercfg.Configuration{
		ServiceName: service,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: reporterConfig(),
	}

	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(jaegerlog.StdLogger),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// reporterConfig reads the agent address and reporter tuning from the
// environment.
func reporterConfig() *jaegercfg.ReporterConfig {
	return &jaegercfg.ReporterConfig{
		LogSpans:  config.GetEnvAsBool("JAEGER_REPORTER_LOG_SPANS", true),
		QueueSize: config.GetEnvAsInt("JAEGER_REPORTER_MAX_QUEUE_SIZE", 100),
		LocalAgentHostPort: fmt.Sprintf("%s:%s",
			config.GetEnv("JAEGER_AGENT_HOST", "localhost"),
			config.GetEnv("JAEGER_AGENT_PORT", "6831"),
		),
	}
}

// StartSpanFromContext starts a new span from the provided context and tags
// it with the relay request id when one is known.
func StartSpanFromContext(ctx context.Context, operationName string, requestID string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)

	if requestID != "" {
		span.SetTag("request_id", requestID)
	}
	span.LogFields(log.String("event", "start"), log.String("operation", operationName))

	return span, ctx
}

// StartClientSpan starts an RPC client span for an outgoing call.
func StartClientSpan(ctx context.Context, method string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, method)
	ext.SpanKindRPCClient.Set(span)
	return span, ctx
}

// StartServerSpan continues the trace carried in RPC headers, if any.
func StartServerSpan(ctx context.Context, method string, headers map[string]string) (opentracing.Span, context.Context) {
	var opts []opentracing.StartSpanOption
	if parent, err := ExtractHeaders(headers); err == nil {
		opts = append(opts, ext.RPCServerOption(parent))
	} else {
		opts = append(opts, ext.SpanKindRPCServer)
	}
	span := opentracing.GlobalTracer().StartSpan(method, opts...)
	return span, opentracing.ContextWithSpan(ctx, span)
}

// InjectHeaders serializes the span context into RPC frame headers.
func InjectHeaders(span opentracing.Span, headers map[string]string) {
	if span == nil || headers == nil {
		return
	}
	_ = opentracing.GlobalTracer().Inject(span.Context(), opentracing.TextMap, opentracing.TextMapCarrier(headers))
}

// ExtractHeaders reads a span context previously written by InjectHeaders.
func ExtractHeaders(headers map[string]string) (opentracing.SpanContext, error) {
	return opentracing.GlobalTracer().Extract(opentracing.TextMap, opentracing.TextMapCarrier(headers))
}

// MarkError flags the span as failed.
func MarkError(span opentracing.Span, err error) {
	if span == nil || err == nil {
		return
	}
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))
}
