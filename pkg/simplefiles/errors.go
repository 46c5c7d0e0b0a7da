package simplefiles

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
	"github.com/tendant/simple-files/pkg/simplefiles/multipart"
)

// Error types
var (
	// ErrFileNotFound indicates a file record was not found
	ErrFileNotFound = errors.New("file not found")

	// ErrObjectNotFound indicates an object was not found in the blob store
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoFile indicates an upload request did not carry a part named "file"
	ErrNoFile = errors.New("no file provided")

	// ErrMalformedRequest indicates the request is not a usable multipart body
	ErrMalformedRequest = multipart.ErrMalformedRequest

	// ErrFileTooLarge indicates the uploaded file exceeds the configured limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrObjectKeyNotManaged indicates a storage key outside uploads/{id}/{filename}
	ErrObjectKeyNotManaged = errors.New("object key not managed")

	// ErrDownloadURLUnsupported indicates the blob store cannot produce download links
	ErrDownloadURLUnsupported = errors.New("download url not supported")
)

// FileError represents an error related to file record operations
type FileError struct {
	ID  uuid.UUID
	Op  string
	Err error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.ID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationFailedError carries the metadata fields rejected during upload
// normalization.
type ValidationFailedError struct {
	Errors []metadata.ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := e.Messages()
	return "metadata validation failed: " + strings.Join(msgs, "; ")
}

// Messages returns the individual validation messages in order.
func (e *ValidationFailedError) Messages() []string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Message)
	}
	return msgs
}

// FileTooLargeError reports an upload over the configured size limit.
// Size is zero when the request body was cut off before the file was read.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	if e.Size <= 0 {
		return fmt.Sprintf("file too large: request body exceeds the %s limit", humanize.IBytes(uint64(e.Limit)))
	}
	return fmt.Sprintf("file too large: %s exceeds the %s limit",
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

func (e *FileTooLargeError) Unwrap() error {
	return ErrFileTooLarge
}
