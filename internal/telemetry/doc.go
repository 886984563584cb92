// Package telemetry provides OpenTelemetry instrumentation for ragbrain.
//
// Traces and metrics are exported over OTLP (grpc or http/protobuf) to a
// collector. Export is disabled by default; when enabled but unreachable
// the instance degrades to no-op providers instead of failing startup.
//
// The orchestration pipeline opens one span per step under the
// "ragbrain.pipeline" tracer and records step durations on the
// "ragbrain.pipeline.step.duration" histogram. The gateway client records
// request counts and latency per operation.
//
// Configuration:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 1.0
//
// Tests use TestTelemetry, which records spans in memory and collects
// metrics through a manual reader:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "step")
//	span.End()
//	tt.AssertSpanExists(t, "step")
package telemetry
