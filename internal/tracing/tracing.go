/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package tracing wraps the OpenTelemetry tracer used across the cache
// engine, pipeline, and dispatcher so call sites only ever deal with a
// span name and a resource identifier, not provider plumbing.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/trickster-io/mapcache/internal/runtime"
	"go.opentelemetry.io/otel/api/core"
	"go.opentelemetry.io/otel/api/distributedcontext"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/api/trace"
	"go.opentelemetry.io/otel/plugin/httptrace"
)

type ctxAttrType struct{}
type ctxSpanCtxType struct{}
type ctxTracerType struct{}

var (
	attrKey    = ctxAttrType{}
	spanCtxKey = ctxSpanCtxType{}
	tracerKey  = ctxTracerType{}
)

// Name returns the tracer name for this application.
func Name() string {
	return fmt.Sprintf("%s/%s", runtime.ApplicationName, runtime.ApplicationVersion)
}

// PrepareRequest extracts any inbound trace-context headers, starts a root
// span named spanName, and stashes enough state on the returned request's
// context for downstream NewChildSpan calls to attach to it.
func PrepareRequest(r *http.Request, spanName string) (*http.Request, trace.Span) {
	attrs, entries, spanCtx := httptrace.Extract(r.Context(), r)

	ctx := distributedcontext.WithMap(
		r.Context(),
		distributedcontext.NewMap(distributedcontext.MapUpdate{MultiKV: entries}),
	)
	ctx = context.WithValue(ctx, attrKey, attrs)
	ctx = context.WithValue(ctx, tracerKey, Name())

	tr := global.TraceProvider().Tracer(Name())
	ctx, span := tr.Start(ctx, spanName, trace.WithAttributes(attrs...), trace.ChildOf(spanCtx))
	ctx = context.WithValue(ctx, spanCtxKey, span.SpanContext())

	return r.WithContext(ctx), span
}

// NewSpan starts a span named spanName tagged with the given resource
// identifier (typically a cache key, tileset name, or upstream host). If
// ctx carries a parent span established by PrepareRequest, the new span is
// a child of it; otherwise it is a root span.
func NewSpan(ctx context.Context, spanName, resource string) (context.Context, trace.Span) {
	tracerName, _ := ctx.Value(tracerKey).(string)
	if tracerName == "" {
		tracerName = Name()
	}
	tr := global.TraceProvider().Tracer(tracerName)

	opts := []trace.StartOption{trace.WithAttributes(key.String("resource", resource))}
	if spanCtx, ok := ctx.Value(spanCtxKey).(core.SpanContext); ok {
		opts = append(opts, trace.ChildOf(spanCtx))
	}

	ctx, span := tr.Start(ctx, spanName, opts...)
	ctx = context.WithValue(ctx, spanCtxKey, span.SpanContext())
	return ctx, span
}

// SpanFromContext is an alias of NewSpan kept for call sites that pass a
// handler name instead of a bare resource identifier (matches the shape of
// the proxy engine's call sites).
func SpanFromContext(ctx context.Context, handlerName, opName string) (context.Context, trace.Span) {
	return NewSpan(ctx, opName, handlerName)
}
