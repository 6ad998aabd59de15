// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for spans emitted by this module.
const TracerName = "github.com/tombee/restclient"

// Span attribute keys.
const (
	AttrHTTPMethod    = attribute.Key("http.request.method")
	AttrURL           = attribute.Key("url.full")
	AttrStatusCode    = attribute.Key("http.response.status_code")
	AttrCorrelationID = attribute.Key("restclient.correlation_id")
)

// W3CPropagator returns a TextMapPropagator that implements W3C Trace Context
// and Baggage.
func W3CPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// InjectHTTPHeaders injects the trace context from ctx into the request headers
// using the globally registered propagator.
func InjectHTTPHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// StartClientSpan starts a client span for an outbound HTTP request.
// tp may be nil, in which case the global tracer provider is used.
// sanitizedURL must already have secrets removed.
func StartClientSpan(ctx context.Context, tp trace.TracerProvider, method, sanitizedURL string) (context.Context, trace.Span) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	attrs := []attribute.KeyValue{
		AttrHTTPMethod.String(method),
		AttrURL.String(sanitizedURL),
	}
	if id := FromContextOrEmpty(ctx); id != "" {
		attrs = append(attrs, AttrCorrelationID.String(id.String()))
	}

	return tp.Tracer(TracerName).Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndClientSpan records the outcome of an outbound request and ends the span.
// Statuses >= 500 and transport errors mark the span as failed.
func EndClientSpan(span trace.Span, statusCode int, err error) {
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(AttrStatusCode.Int(statusCode))
	if statusCode >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	}
}
