// Package driving provides interfaces for primary (inbound) ports.
// The CLI and MCP adapters call the generation core through these.
package driving
