// Package cmd implements the command-line interface for gdriveapp.
//
// This package provides the following commands:
//   - auth: Authorize access to Google Drive and cache the token
//   - search, find: Search Drive by raw query or by name terms
//   - list: List a folder, optionally recursively
//   - download, download-folder: Fetch a file or mirror a folder tree
//   - upload, mkdir, delete: Modify Drive
//   - serve: Start the MCP server over stdio
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Global flags fall back to environment variables (GDRIVE_CLIENT_SECRET,
// GDRIVE_TOKEN_FILE, LOG_LEVEL, LOG_FORMAT, GDRIVE_MAX_RETRIES).
package cmd
