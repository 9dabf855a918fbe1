// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports). The generation core calls out through these;
// it never depends on a concrete transport, store, or model vendor.
package driven
