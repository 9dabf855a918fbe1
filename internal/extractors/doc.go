// Package extractors provides implementations of the TextExtractor
// interface for the supported upload formats, plus the registry that
// selects one by document kind.
//
// Extractors are registered with the Registry at startup.
package extractors
