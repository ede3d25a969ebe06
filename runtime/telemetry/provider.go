// Package telemetry provides OpenTelemetry integration for live sessions,
// including TracerProvider management and an event-to-span listener.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/redilah/CulinaryAI/runtime/version"
)

const (
	// InstrumentationName is the OTel instrumentation scope name.
	InstrumentationName = "github.com/redilah/CulinaryAI"

	// DefaultServiceName is used when no service name is configured.
	DefaultServiceName = "culinary-live"
)

// Resource attribute keys for the live model setup.
const (
	AttrLiveModel = attribute.Key("culinary.live.model")
	AttrLiveVoice = attribute.Key("culinary.live.voice")
)

// Resource describes the assistant process to the tracing backend.
type Resource struct {
	ServiceName string
	Model       string
	Voice       string
}

func (r Resource) build() (*resource.Resource, error) {
	name := r.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", name),
		attribute.String("service.version", version.GetVersion()),
	}
	if r.Model != "" {
		attrs = append(attrs, AttrLiveModel.String(r.Model))
	}
	if r.Voice != "" {
		attrs = append(attrs, AttrLiveVoice.String(r.Voice))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// Tracer returns a named tracer from the given TracerProvider, versioned
// with the build version. If tp is nil the global provider is used.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(version.GetVersion()))
}

// NewTracerProvider creates a TracerProvider that exports spans via OTLP/HTTP.
// The caller is responsible for calling Shutdown on the returned provider.
func NewTracerProvider(ctx context.Context, endpoint string, res Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, err
	}

	r, err := res.build()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)
	return tp, nil
}

// SetupPropagation configures the global OTel text-map propagator for W3C
// TraceContext and Baggage. The Live WebSocket handshake injects headers
// through this propagator.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
