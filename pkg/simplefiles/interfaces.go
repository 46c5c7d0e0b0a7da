package simplefiles

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// GetDownloadURL returns a URL for downloading content.
	// Backends without URL support return ErrDownloadURLUnsupported.
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}

// Repository defines the interface for file record persistence
type Repository interface {
	CreateFile(ctx context.Context, file *FileRecord) error

	// GetFile returns ErrFileNotFound when no record has the id.
	GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// ListFiles returns records newest first.
	ListFiles(ctx context.Context, limit, offset int) ([]*FileRecord, error)

	// MarkProcessed stores the extracted attributes, sets the status to
	// processed and records processedAt. It returns ErrFileNotFound when no
	// record has the id.
	MarkProcessed(ctx context.Context, id uuid.UUID, extracted map[string]any, processedAt time.Time) error
}

// EventSink receives object-stored notifications
type EventSink interface {
	// ObjectStored is fired after an upload has been written to the blob store
	ObjectStored(ctx context.Context, event ObjectStoredEvent) error
}

// MetricsRecorder receives service-level counters
type MetricsRecorder interface {
	UploadAccepted(size int64)
	UploadRejected(reason string)
	ObjectClassified(fileType, category string)
	ClassificationSkipped(reason string)
}
