// Package blobstore abstracts the storage targets used to mirror snapshot
// artifacts off-box. Mirroring is supplemental replication: the engine's
// durability guarantee comes from the local snapshot, and a mirror failure
// never fails the request that triggered it.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is a named-blob storage target.
type Store interface {
	// Put writes a blob atomically, replacing any existing blob of the
	// same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob. Returns ErrNotFound if the blob does not exist.
	Get(ctx context.Context, name string) ([]byte, error)
}
