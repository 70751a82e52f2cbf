// Package resources provides MCP resources describing the Drive account and
// the server itself. Resources are read-only data that MCP clients can fetch
// without calling a tool:
//
//   - drive://about: the authorized account and its storage quota
//   - gdriveapp://status: server mode, download directory and token state
package resources
