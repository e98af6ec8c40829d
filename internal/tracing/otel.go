package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	setupOnce sync.Once
	setupErr  error

	tracerMu       sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
)

// Init installs the global tracer provider for this process. sampleRatio
// selects head sampling for root spans: 0 records nothing, 1 records every
// run. Values outside [0, 1] are clamped. Only the first call takes effect.
func Init(serviceName string, sampleRatio float64) error {
	setupOnce.Do(func() {
		if sampleRatio < 0 {
			sampleRatio = 0
		}
		if sampleRatio > 1 {
			sampleRatio = 1
		}

		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(semconv.ServiceName(serviceName)),
		)
		if err != nil {
			setupErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
			sdktrace.WithResource(res),
		)

		tracerMu.Lock()
		tracerProvider = tp
		tracerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return setupErr
}

// Shutdown flushes pending spans and releases the provider. A nil provider
// (Init never called, or it failed) is not an error.
func Shutdown(ctx context.Context) error {
	tracerMu.RLock()
	tp := tracerProvider
	tracerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span and mirrors its trace ID into this package's
// context keys so log lines and spans correlate.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
