// Package mcp exposes namingd to MCP clients.
//
// The server registers tools for resolving phrases to identifiers,
// searching the catalog and finding similar morphemes. Read-only tools
// are always available; request_field is the only tool that writes.
package mcp
