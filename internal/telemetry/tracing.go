/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry configures OpenTelemetry tracing for the healing agent.
//
// Spans follow the OTel GenAI semantic conventions where applicable:
//   - gen_ai.system — the LLM provider
//   - gen_ai.request.model — the model name
//   - gen_ai.usage.input_tokens — tokens consumed
//   - gen_ai.usage.output_tokens — tokens generated
//
// Custom span attributes use the `healing.` prefix.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "helix-ops.io/healing-agent"
)

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC exporter.
// If endpoint is empty, tracing is disabled (noop provider is used).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("healing-agent"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartPipelineSpan creates the parent span for one alert's trip through the
// pipeline.
func StartPipelineSpan(ctx context.Context, alertName, severity string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "healing.pipeline",
		trace.WithAttributes(
			attribute.String("healing.alert", alertName),
			attribute.String("healing.severity", severity),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClassifySpan creates a child span for the classification waterfall.
func StartClassifySpan(ctx context.Context, alertName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "healing.classify",
		trace.WithAttributes(
			attribute.String("healing.alert", alertName),
		),
	)
}

// EndClassifySpan enriches the classify span with the decision.
func EndClassifySpan(span trace.Span, actionType string, confidence float64, autoExecute bool) {
	span.SetAttributes(
		attribute.String("healing.action_type", actionType),
		attribute.Float64("healing.confidence", confidence),
		attribute.Bool("healing.auto_execute", autoExecute),
	)
	span.End()
}

// StartLLMCallSpan creates a child span for a reasoner call, following GenAI
// conventions.
func StartLLMCallSpan(ctx context.Context, model, provider string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gen_ai.chat",
		trace.WithAttributes(
			attribute.String("gen_ai.system", provider),
			attribute.String("gen_ai.request.model", model),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndLLMCallSpan enriches the LLM span with usage data.
func EndLLMCallSpan(span trace.Span, inputTokens, outputTokens int64) {
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", inputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", outputTokens),
	)
	span.End()
}

// StartRemediationSpan creates a child span for an action execution.
func StartRemediationSpan(ctx context.Context, actionType, target string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "healing.remediate",
		trace.WithAttributes(
			attribute.String("healing.action_type", actionType),
			attribute.String("healing.target", target),
		),
	)
}

// EndRemediationSpan enriches the remediation span with its result.
func EndRemediationSpan(span trace.Span, status string) {
	span.SetAttributes(attribute.String("healing.action_status", status))
	span.End()
}

// StartNotifySpan creates a child span for notification delivery.
func StartNotifySpan(ctx context.Context, alertName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "healing.notify",
		trace.WithAttributes(
			attribute.String("healing.alert", alertName),
		),
	)
}
