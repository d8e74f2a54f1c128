// Package logging provides file-based structured logging with rotation for
// DocsMCP. Logs are written as JSON lines to ~/.docsmcp/logs/ so the MCP
// stdio transport stays clean; the docsmcp-logs binary reads the same files
// back through Viewer.
package logging
