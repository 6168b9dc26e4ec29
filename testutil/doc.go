// Package testutil provides testing utilities for biomatch.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic embeddings and gesture
// sequences.
package testutil
