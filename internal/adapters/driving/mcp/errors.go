// Package mcp provides an MCP (Model Context Protocol) server adapter for
// the intake brief pipeline. It lets AI assistants rank evidence, generate
// sections and inspect the open-question ledger over a local connection.
package mcp

import "errors"

// ErrMissingRanker is returned when the evidence ranker is not provided.
var ErrMissingRanker = errors.New("mcp: evidence ranker is required")

// ErrMissingDocumentStore is returned when the document store is not provided.
var ErrMissingDocumentStore = errors.New("mcp: document store is required")
