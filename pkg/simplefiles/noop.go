package simplefiles

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful when classification is driven externally or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ObjectStored does nothing and returns nil
func (n *NoopEventSink) ObjectStored(ctx context.Context, event ObjectStoredEvent) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ObjectStored logs the object-stored event
func (l *LoggingEventSink) ObjectStored(ctx context.Context, event ObjectStoredEvent) error {
	l.logger.InfoContext(ctx, "Object stored", "key", event.Key, "size", event.Size)
	return nil
}

// SyncEventSink processes object-stored events inline on the caller's goroutine.
type SyncEventSink struct {
	Handler func(ctx context.Context, event ObjectStoredEvent) error
}

func (s *SyncEventSink) ObjectStored(ctx context.Context, event ObjectStoredEvent) error {
	if s.Handler == nil {
		return nil
	}
	return s.Handler(ctx, event)
}

type noopMetrics struct{}

// NewNoopMetrics returns a MetricsRecorder that records nothing.
func NewNoopMetrics() MetricsRecorder { return noopMetrics{} }

func (noopMetrics) UploadAccepted(int64)            {}
func (noopMetrics) UploadRejected(string)           {}
func (noopMetrics) ObjectClassified(string, string) {}
func (noopMetrics) ClassificationSkipped(string)    {}
