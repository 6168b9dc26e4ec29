package biomatch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEnroll is called after each enrollment operation.
	// duration is the total time taken including the durability flush,
	// err is nil if successful.
	RecordEnroll(modality Modality, duration time.Duration, err error)

	// RecordVerify is called after each verification operation.
	// matched reports the decision outcome; it is false when err is non-nil.
	RecordVerify(modality Modality, matched bool, duration time.Duration, err error)

	// RecordFlush is called after each snapshot flush.
	RecordFlush(modality Modality, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEnroll(Modality, time.Duration, error)       {}
func (NoopMetricsCollector) RecordVerify(Modality, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(Modality, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EnrollCount      atomic.Int64
	EnrollErrors     atomic.Int64
	EnrollTotalNanos atomic.Int64
	VerifyCount      atomic.Int64
	VerifyMatches    atomic.Int64
	VerifyErrors     atomic.Int64
	VerifyTotalNanos atomic.Int64
	FlushCount       atomic.Int64
	FlushErrors      atomic.Int64
}

// RecordEnroll implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEnroll(_ Modality, duration time.Duration, err error) {
	b.EnrollCount.Add(1)
	b.EnrollTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EnrollErrors.Add(1)
	}
}

// RecordVerify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVerify(_ Modality, matched bool, duration time.Duration, err error) {
	b.VerifyCount.Add(1)
	b.VerifyTotalNanos.Add(duration.Nanoseconds())
	if matched {
		b.VerifyMatches.Add(1)
	}
	if err != nil {
		b.VerifyErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ Modality, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// BasicMetricsStats is a point-in-time snapshot of collected metrics.
type BasicMetricsStats struct {
	EnrollCount    int64
	EnrollErrors   int64
	EnrollAvgNanos int64
	VerifyCount    int64
	VerifyMatches  int64
	VerifyErrors   int64
	VerifyAvgNanos int64
	FlushCount     int64
	FlushErrors    int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	stats := BasicMetricsStats{
		EnrollCount:   b.EnrollCount.Load(),
		EnrollErrors:  b.EnrollErrors.Load(),
		VerifyCount:   b.VerifyCount.Load(),
		VerifyMatches: b.VerifyMatches.Load(),
		VerifyErrors:  b.VerifyErrors.Load(),
		FlushCount:    b.FlushCount.Load(),
		FlushErrors:   b.FlushErrors.Load(),
	}
	if stats.EnrollCount > 0 {
		stats.EnrollAvgNanos = b.EnrollTotalNanos.Load() / stats.EnrollCount
	}
	if stats.VerifyCount > 0 {
		stats.VerifyAvgNanos = b.VerifyTotalNanos.Load() / stats.VerifyCount
	}
	return stats
}
