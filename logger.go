package biomatch

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with biomatch-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithModality adds a modality field to the logger.
func (l *Logger) WithModality(m Modality) *Logger {
	return &Logger{
		Logger: l.Logger.With("modality", m.String()),
	}
}

// LogEnroll logs an enrollment operation.
func (l *Logger) LogEnroll(ctx context.Context, modality Modality, userID string, accepted bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "enroll failed",
			"modality", modality.String(),
			"user", userID,
			"error", err,
		)
	} else if !accepted {
		l.WarnContext(ctx, "enroll rejected",
			"modality", modality.String(),
			"user", userID,
		)
	} else {
		l.DebugContext(ctx, "enroll completed",
			"modality", modality.String(),
			"user", userID,
		)
	}
}

// LogVerify logs a verification operation.
func (l *Logger) LogVerify(ctx context.Context, modality Modality, userID string, d Decision, err error) {
	if err != nil {
		l.ErrorContext(ctx, "verify failed",
			"modality", modality.String(),
			"user", userID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "verify completed",
			"modality", modality.String(),
			"user", userID,
			"matched", d.Matched,
			"confidence", d.Confidence,
			"reason", d.Reason.String(),
		)
	}
}

// LogFlush logs a write-through flush of a modality snapshot.
func (l *Logger) LogFlush(ctx context.Context, modality Modality, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot flush failed",
			"modality", modality.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "snapshot flushed",
			"modality", modality.String(),
		)
	}
}

// LogRecovery logs the outcome of loading a modality's snapshot at startup.
func (l *Logger) LogRecovery(ctx context.Context, modality Modality, users, samples int) {
	l.InfoContext(ctx, "recovered enrollment state",
		"modality", modality.String(),
		"users", users,
		"samples", samples,
	)
}
