package tracing

import (
	"context"

	honeycomb "github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("contenthub-backend")

// HoneycombSetup uses the honeycomb distro to set up the OpenTelemetry SDK.
// The returned func flushes and stops the exporters.
func HoneycombSetup(enabled bool, serviceName string) (func(), error) {
	if !enabled {
		log.Debugln("tracing disabled, using no-op tracer provider")
		return func() {}, nil
	}

	bsp := honeycomb.NewBaggageSpanProcessor()
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(bsp),
	)
	if err != nil {
		return nil, err
	}

	return otelShutdown, nil
}

// EndSpan records err (if any) on the span and ends it.
// Meant to be deferred with a named error return.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Start is a shorthand for GlobalTracer.Start.
func Start(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return GlobalTracer.Start(ctx, spanName)
}
