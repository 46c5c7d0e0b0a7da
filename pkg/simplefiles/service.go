package simplefiles

import (
	"context"

	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
)

// Service defines the main interface for the simple-files library
type Service interface {
	// Upload operations
	ParseUpload(contentType string, body []byte) (*UploadFileRequest, error)
	UploadFile(ctx context.Context, req UploadFileRequest) (*FileRecord, error)
	MaxUploadBytes() int64

	// Read operations
	// GetFile fills DownloadURL when the blob store can produce one.
	GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error)
	ListFiles(ctx context.Context, req ListFilesRequest) ([]*FileRecord, error)
	GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error)

	// Classification
	ProcessStoredObject(ctx context.Context, event ObjectStoredEvent) (*metadata.Classification, error)
}
