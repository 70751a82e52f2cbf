// Package instrumentation provides OpenTelemetry instrumentation for gdriveapp.
//
// It covers:
//   - Metrics for Google Drive API operations, transferred bytes, OAuth events
//     and MCP tool invocations
//   - Tracing spans for Drive calls (google.drive.<operation>) and MCP tools
//     (tool.<name>)
//   - A Prometheus registry that the metrics server exposes on /metrics
//   - OTLP and stdout exporters for other backends
//   - Audit logging of MCP tool invocations
//
// # Metrics
//
//   - google_api_operations_total: Counter by service, operation, status
//   - google_api_operation_duration_seconds: Histogram by service, operation, status
//   - drive_transfer_bytes_total: Counter of downloaded/uploaded bytes by direction
//   - oauth_auth_total: Counter of interactive OAuth flows by result
//   - oauth_token_refresh_total: Counter of token refreshes by result
//   - mcp_tool_invocations_total: Counter by tool and status
//   - mcp_tool_duration_seconds: Histogram by tool and status
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP (default: false)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: gdriveapp)
//   - AUDIT_LOGGING_ENABLED: Log every MCP tool invocation (default: true)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGoogleAPIOperation(ctx, instrumentation.ServiceDrive,
//		instrumentation.OperationList, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
