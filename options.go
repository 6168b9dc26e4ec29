package biomatch

import (
	"log/slog"

	"github.com/authentix/biomatch/blobstore"
	"github.com/authentix/biomatch/codec"
)

const (
	// DefaultFaceDimension is the length of face embedding vectors.
	DefaultFaceDimension = 512

	// DefaultVoiceDimension is the length of voice embedding vectors.
	DefaultVoiceDimension = 80

	// DefaultSearchK is how many ranked candidates the face and voice
	// verification paths retrieve before applying the decision policy.
	DefaultSearchK = 5
)

type options struct {
	policy           Policy
	faceDimension    int
	voiceDimension   int
	searchK          int
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	mirror           blobstore.Store
	mirrorRateBytes  int64
}

// Option configures engine construction.
type Option func(*options)

// WithPolicy overrides the default acceptance thresholds.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFaceDimension sets the face embedding dimension.
// Changing it on an existing data directory makes recovery fail.
func WithFaceDimension(dim int) Option {
	return func(o *options) {
		o.faceDimension = dim
	}
}

// WithVoiceDimension sets the voice embedding dimension.
// Changing it on an existing data directory makes recovery fail.
func WithVoiceDimension(dim int) Option {
	return func(o *options) {
		o.voiceDimension = dim
	}
}

// WithSearchK sets how many ranked candidates face and voice verification
// retrieve. Values below 1 are ignored.
func WithSearchK(k int) Option {
	return func(o *options) {
		if k >= 1 {
			o.searchK = k
		}
	}
}

// WithCodec configures the codec used for snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
// Shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures operational metrics collection.
//
// If nil is passed, metrics collection is disabled.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

// WithSnapshotMirror replicates every written snapshot artifact to the given
// blob store (e.g. S3, MinIO), best-effort. bytesPerSec throttles uploads;
// zero means unlimited.
func WithSnapshotMirror(store blobstore.Store, bytesPerSec int64) Option {
	return func(o *options) {
		o.mirror = store
		o.mirrorRateBytes = bytesPerSec
	}
}

func defaultOptions() options {
	return options{
		policy:           DefaultPolicy(),
		faceDimension:    DefaultFaceDimension,
		voiceDimension:   DefaultVoiceDimension,
		searchK:          DefaultSearchK,
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}
