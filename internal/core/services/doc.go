// Package services contains the generation core: ingestion, evidence
// ranking, citation-verified generation, batch scheduling, the question
// ledger, and edit reconciliation. Services depend only on domain types
// and ports, never on concrete adapters.
package services
