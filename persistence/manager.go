// Package persistence makes the enrollment stores survive process restarts.
//
// Each modality persists as a single self-describing snapshot artifact that
// carries the identity index, label map and enrollment archive together:
// one atomic rename replaces the whole durable state of a modality, so a
// crash can never leave the three logical stores inconsistent with each
// other. Artifacts record the codec that produced them and are checksummed
// (CRC32) and zstd-compressed.
//
// A Manager may additionally mirror every written artifact to a blob store.
// Mirroring is best-effort replication; a mirror failure is logged and does
// not fail the save.
package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/authentix/biomatch/blobstore"
	"github.com/authentix/biomatch/codec"
)

// ErrManagerClosed is returned when operations are attempted on a closed manager.
var ErrManagerClosed = errors.New("persistence: manager is closed")

// Options configures the persistence manager.
type Options struct {
	// Codec serializes snapshot payloads. Defaults to codec.Default.
	Codec codec.Codec

	// Mirror is an optional secondary store that receives a copy of every
	// written artifact.
	Mirror blobstore.Store

	// MirrorRateBytes throttles mirror uploads to this many bytes per
	// second. Zero means unlimited.
	MirrorRateBytes int64

	// Logger receives mirror failures and recovery notices.
	// Defaults to a discarding logger.
	Logger *slog.Logger
}

// Manager reads and writes snapshot artifacts under a data directory.
// It is safe for concurrent use; artifacts with distinct names never
// contend with each other.
type Manager struct {
	dir     string
	codec   codec.Codec
	mirror  blobstore.Store
	limiter *rate.Limiter
	logger  *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a persistence manager rooted at dir, creating the
// directory if necessary.
func NewManager(dir string, optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data dir: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: init decompressor: %w", err)
	}

	m := &Manager{
		dir:    dir,
		codec:  opts.Codec,
		mirror: opts.Mirror,
		logger: opts.Logger,
		enc:    enc,
		dec:    dec,
	}
	if opts.Mirror != nil && opts.MirrorRateBytes > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.MirrorRateBytes), int(opts.MirrorRateBytes))
	}
	return m, nil
}

// Dir returns the data directory.
func (m *Manager) Dir() string { return m.dir }

// Save serializes v and writes it atomically as the named artifact,
// then mirrors the encoded bytes if a mirror is configured.
func (m *Manager) Save(ctx context.Context, name string, v any) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := m.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: encode %s: %w", name, err)
	}
	compressed := m.enc.EncodeAll(payload, nil)

	var buf bytes.Buffer
	if err := writeArtifact(&buf, m.codec.Name(), compressed); err != nil {
		return fmt.Errorf("persistence: frame %s: %w", name, err)
	}
	encoded := buf.Bytes()

	if err := SaveToFile(filepath.Join(m.dir, name), func(w io.Writer) error {
		_, err := w.Write(encoded)
		return err
	}); err != nil {
		return fmt.Errorf("persistence: save %s: %w", name, err)
	}

	m.mirrorArtifact(ctx, name, encoded)
	return nil
}

// Load reads the named artifact and decodes it into v.
// Returns an error satisfying errors.Is(err, os.ErrNotExist) if absent.
func (m *Manager) Load(ctx context.Context, name string, v any) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}

	codecName, compressed, err := readArtifact(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("persistence: read %s: %w", name, err)
	}

	c := m.codec
	if codecName != c.Name() {
		byName, ok := codec.ByName(codecName)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnknownCodec, codecName, name)
		}
		c = byName
	}

	payload, err := m.dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("persistence: decompress %s: %w", name, err)
	}
	if err := c.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("persistence: decode %s: %w", name, err)
	}
	return nil
}

// Close releases compression resources. Artifacts already written stay valid.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	m.dec.Close()
	return m.enc.Close()
}

// mirrorArtifact replicates encoded artifact bytes to the configured mirror,
// throttled by the upload rate limiter. Failures are logged, never returned:
// the local artifact is the durability source of truth.
func (m *Manager) mirrorArtifact(ctx context.Context, name string, encoded []byte) {
	if m.mirror == nil {
		return
	}

	if m.limiter != nil {
		if err := m.throttle(ctx, len(encoded)); err != nil {
			m.logger.WarnContext(ctx, "snapshot mirror throttled out", "artifact", name, "error", err)
			return
		}
	}
	if err := m.mirror.Put(ctx, name, encoded); err != nil {
		m.logger.WarnContext(ctx, "snapshot mirror failed", "artifact", name, "error", err)
	}
}

// throttle waits for n bytes of upload budget, in bursts the limiter can grant.
func (m *Manager) throttle(ctx context.Context, n int) error {
	burst := m.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// writeArtifact frames a compressed payload with the self-describing header
// and trailing checksum. Layout (little-endian):
//
//	magic u32 | version u32 | codec name len u16 | codec name |
//	payload len u64 | payload | crc32(payload) u32
func writeArtifact(w io.Writer, codecName string, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(MagicNumber)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(Version)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(codecName))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, codecName); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, crc32.ChecksumIEEE(payload))
}

// readArtifact parses and verifies an artifact frame, returning the codec
// name and the compressed payload.
func readArtifact(r io.Reader) (string, []byte, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return "", nil, err
	}
	if magic != MagicNumber {
		return "", nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", nil, err
	}
	if version != Version {
		return "", nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, version)
	}

	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, err
	}
	if nameLen > maxCodecNameLen {
		return "", nil, fmt.Errorf("%w: name length %d", ErrUnknownCodec, nameLen)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return "", nil, err
	}

	var payloadLen uint64
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return "", nil, err
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}

	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return "", nil, err
	}
	if actual := crc32.ChecksumIEEE(payload); actual != sum {
		return "", nil, &ChecksumMismatchError{Expected: sum, Actual: actual}
	}

	return string(nameBytes), payload, nil
}
