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

package tracing

import (
	"go.opentelemetry.io/otel/api/core"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/exporter/trace/jaeger"
	"go.opentelemetry.io/otel/exporter/trace/stdout"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Implementation names a trace exporter.
type Implementation int

// Supported trace exporters.
const (
	Stdout Implementation = iota
	Jaeger
)

var implementationNames = map[string]Implementation{
	"stdout": Stdout,
	"jaeger": Jaeger,
}

// ParseImplementation resolves a configured tracer_implementation string,
// defaulting to Stdout on an unrecognized value.
func ParseImplementation(s string) Implementation {
	if i, ok := implementationNames[s]; ok {
		return i
	}
	return Stdout
}

// SetTracer installs the global trace provider for the given implementation
// and returns a flush function to be called at shutdown.
func SetTracer(impl Implementation, collectorEndpoint string) (func(), error) {
	switch impl {
	case Jaeger:
		return setJaegerTracer(collectorEndpoint)
	default:
		return setStdoutTracer()
	}
}

func setStdoutTracer() (func(), error) {
	exporter, err := stdout.NewExporter(stdout.Options{PrettyPrint: false})
	if err != nil {
		return nil, err
	}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter))
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)
	return func() {}, nil
}

func setJaegerTracer(collectorEndpoint string) (func(), error) {
	exporter, err := jaeger.NewExporter(
		jaeger.WithCollectorEndpoint(collectorEndpoint),
		jaeger.WithProcess(jaeger.Process{
			ServiceName: Name(),
			Tags:        []core.KeyValue{key.String("exporter", "jaeger")},
		}),
	)
	if err != nil {
		return nil, err
	}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter))
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)
	return exporter.Flush, nil
}
