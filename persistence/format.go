package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies biomatch snapshot artifacts (ASCII: "BIO1").
	MagicNumber = 0x42494F31
	// Version is the current artifact format version (v1.0.0).
	Version = 0x00010000

	// maxCodecNameLen bounds the codec name field so a corrupt header
	// cannot trigger a huge allocation.
	maxCodecNameLen = 64
)

var (
	ErrInvalidMagic   = errors.New("persistence: invalid magic number")
	ErrInvalidVersion = errors.New("persistence: unsupported version")
	ErrUnknownCodec   = errors.New("persistence: unknown codec")
)

// ChecksumMismatchError is returned when artifact checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("persistence: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}
