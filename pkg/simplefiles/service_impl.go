package simplefiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
	"github.com/tendant/simple-files/pkg/simplefiles/objectkey"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStore      BlobStore
	eventSink      EventSink
	metrics        MetricsRecorder
	logger         *slog.Logger
	maxUploadBytes int64
	keyGenerator   objectkey.Generator
	now            func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithMetrics sets the metrics recorder for the service
func WithMetrics(m MetricsRecorder) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxUploadBytes sets the maximum accepted file size
func WithMaxUploadBytes(n int64) Option {
	return func(s *service) {
		s.maxUploadBytes = n
	}
}

// WithKeyGenerator sets the object key generator
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithClock sets the time source used for upload and processing timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		maxUploadBytes: DefaultMaxUploadBytes,
		keyGenerator:   objectkey.NewUploadsGenerator(),
		now:            time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive, got %d", s.maxUploadBytes)
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.metrics == nil {
		s.metrics = NewNoopMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keyGenerator == nil {
		s.keyGenerator = objectkey.NewUploadsGenerator()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

func (s *service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Upload operations

func (s *service) ParseUpload(contentType string, body []byte) (*UploadFileRequest, error) {
	req, err := parseUpload(contentType, body, s.maxUploadBytes)
	if err != nil {
		s.metrics.UploadRejected(rejectReason(err))
		return nil, err
	}
	return req, nil
}

func (s *service) UploadFile(ctx context.Context, req UploadFileRequest) (*FileRecord, error) {
	size := int64(len(req.Data))
	if size > s.maxUploadBytes {
		s.metrics.UploadRejected(rejectReason(ErrFileTooLarge))
		return nil, &FileTooLargeError{Size: size, Limit: s.maxUploadBytes}
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = metadata.DefaultFileName
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = metadata.DefaultContentType
	}
	fields := req.Metadata
	if fields == nil {
		fields = metadata.New()
	}

	id := uuid.New()
	key := s.keyGenerator.GenerateKey(id, fileName)

	err := s.blobStore.UploadWithParams(ctx, bytes.NewReader(req.Data), UploadParams{
		ObjectKey: key,
		MimeType:  contentType,
	})
	if err != nil {
		s.metrics.UploadRejected("storage")
		return nil, &FileError{ID: id, Op: "upload", Err: err}
	}

	record := &FileRecord{
		ID:              id,
		FileName:        fileName,
		ContentType:     contentType,
		StorageKey:      key,
		UploadTimestamp: s.now().UTC(),
		FileSize:        size,
		Status:          FileStatusUploaded,
		Metadata:        fields,
	}

	if err := s.repository.CreateFile(ctx, record); err != nil {
		if delErr := s.blobStore.Delete(ctx, key); delErr != nil {
			s.logger.ErrorContext(ctx, "Failed to remove orphaned object", "key", key, "error", delErr)
		}
		s.metrics.UploadRejected("repository")
		return nil, &FileError{ID: id, Op: "create", Err: err}
	}

	s.metrics.UploadAccepted(size)
	s.logger.InfoContext(ctx, "File uploaded",
		"file_id", id,
		"key", key,
		"size", humanize.IBytes(uint64(size)),
		"metadata_fields", fields.Len())

	// Event failures do not fail the upload: the object and the record exist.
	if err := s.eventSink.ObjectStored(ctx, ObjectStoredEvent{Key: key, Size: size}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish object stored event", "key", key, "error", err)
	}

	return record, nil
}

// Read operations

// GetFile returns the record with DownloadURL filled in when the blob store
// can produce one. A failure to build the URL does not fail the lookup.
func (s *service) GetFile(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	record, err := s.repository.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.downloadURL(ctx, record)
	switch {
	case err == nil:
		record.DownloadURL = url
	case errors.Is(err, ErrDownloadURLUnsupported):
	default:
		s.logger.ErrorContext(ctx, "Failed to get download URL", "file_id", id, "error", err)
	}
	return record, nil
}

func (s *service) ListFiles(ctx context.Context, req ListFilesRequest) ([]*FileRecord, error) {
	req = req.normalized()
	return s.repository.ListFiles(ctx, req.Limit, req.Offset)
}

func (s *service) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.repository.GetFile(ctx, id)
	if err != nil {
		return "", err
	}
	return s.downloadURL(ctx, record)
}

func (s *service) downloadURL(ctx context.Context, record *FileRecord) (string, error) {
	url, err := s.blobStore.GetDownloadURL(ctx, record.StorageKey, record.FileName)
	if err != nil {
		return "", &FileError{ID: record.ID, Op: "download_url", Err: err}
	}
	return url, nil
}

// Classification

func (s *service) ProcessStoredObject(ctx context.Context, event ObjectStoredEvent) (*metadata.Classification, error) {
	key, ok := objectkey.Parse(event.Key)
	if !ok {
		s.metrics.ClassificationSkipped("unmanaged_key")
		return nil, fmt.Errorf("%w: %q", ErrObjectKeyNotManaged, event.Key)
	}

	meta, err := s.blobStore.GetObjectMeta(ctx, event.Key)
	if err != nil {
		return nil, &FileError{ID: key.FileID, Op: "get_object_meta", Err: err}
	}

	size := event.Size
	if size <= 0 {
		size = meta.Size
	}

	classifier := metadata.Classifier{Now: s.now}
	classification := classifier.Classify(meta.ContentType, key.FileName, size)
	fields := classification.Fields(ExtractedPrefix)

	err = s.repository.MarkProcessed(ctx, key.FileID, fields, classification.ProcessingTimestamp)
	if errors.Is(err, ErrFileNotFound) {
		s.logger.WarnContext(ctx, "No file record for stored object, skipping",
			"file_id", key.FileID, "key", event.Key)
		s.metrics.ClassificationSkipped("record_missing")
		return &classification, nil
	}
	if err != nil {
		return nil, &FileError{ID: key.FileID, Op: "mark_processed", Err: err}
	}

	s.metrics.ObjectClassified(string(classification.FileType), string(classification.Category))
	s.logger.InfoContext(ctx, "Object classified",
		"file_id", key.FileID,
		"file_type", classification.FileType,
		"category", classification.Category,
		"size_category", classification.SizeCategory)

	return &classification, nil
}

func rejectReason(err error) string {
	var verr *ValidationFailedError
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, ErrNoFile):
		return "no_file"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	default:
		return "other"
	}
}
