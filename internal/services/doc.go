// Package services holds the namingd service registry.
//
// The HTTP API and the MCP server take a Registry rather than individual
// services. Build one with NewRegistry after wiring the services.
package services
