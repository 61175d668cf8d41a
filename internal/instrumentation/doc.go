// Package instrumentation provides OpenTelemetry metrics with a Prometheus
// exporter.
//
// The provider wires an sdk/metric MeterProvider to a Prometheus reader and
// hands out a Metrics recorder used across the application. All Record
// methods on Metrics are safe to call on a zero value, so components never
// need to check whether instrumentation is enabled.
//
// Recorded metrics:
//   - http_requests_total / http_request_duration_seconds
//   - message_turns_total: webhook message turns by outcome
//   - interpretation_requests_total / interpretation_duration_seconds
//   - google_api_operations_total / google_api_operation_duration_seconds
//   - oauth_auth_total
//
// Labels are kept low-cardinality: user identifiers never appear as metric
// attributes.
package instrumentation
