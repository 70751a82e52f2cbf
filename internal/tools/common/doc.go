// Package common provides shared utilities for the MCP tool packages:
// argument parsing, JSON results and the instrumentation wrapper applied
// to every tool handler.
package common
