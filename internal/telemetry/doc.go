// Package telemetry wires OpenTelemetry tracing and metrics for namingd.
//
// Telemetry is disabled by default. When enabled, spans and metrics are
// exported over OTLP (gRPC or HTTP/protobuf). Components obtain tracers and
// meters from the global providers, so a disabled Telemetry costs nothing.
package telemetry
