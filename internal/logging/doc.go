// Package logging provides structured logging utilities for gdriveapp.
//
// All logging goes through the standard library's slog package. This package
// builds the process logger from CLI flags and centralizes attribute names so
// that Drive operations, OAuth events and MCP tool calls log the same keys.
//
// # Usage Patterns
//
// Build the logger once at startup:
//
//	logger, err := logging.New(logging.Options{Level: "info", Format: "text"})
//
// Attach operation context:
//
//	logger = logging.WithOperation(logger, "drive.list_folder")
//	logger.Info("listed folder", logging.FolderID(id), logging.Count(len(files)))
//
// # Security Considerations
//
// OAuth tokens are never logged directly; use SanitizeToken.
package logging
