// Package server holds the state shared by the MCP tools while the
// server runs, and the optional Prometheus metrics endpoint.
//
// ServerContext creates the Drive client on first use, so the server can
// start (and list its tools) before the user has authorized access. It
// also carries the metrics recorder, the audit logger and the read-only
// flag consulted when tools are registered.
//
// MetricsServer exposes /metrics and /healthz on a dedicated address,
// separate from the stdio MCP transport.
package server
