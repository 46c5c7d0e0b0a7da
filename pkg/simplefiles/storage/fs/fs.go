package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// Backend is a filesystem implementation of the simplefiles.BlobStore interface
type Backend struct {
	fs        afero.Fs
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string   // Base directory for storing files
	URLPrefix string   // Optional URL prefix for download URLs
	Fs        afero.Fs // Filesystem to use; defaults to the OS filesystem
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	fsys := config.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	if err := fsys.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		fs:        fsys,
		baseDir:   filepath.Clean(config.BaseDir),
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
	}, nil
}

var _ simplefiles.BlobStore = (*Backend)(nil)

// path maps an object key to a file below baseDir. Keys cannot escape it.
func (b *Backend) path(objectKey string) string {
	return filepath.Join(b.baseDir, filepath.Clean("/"+objectKey))
}

// sidecar holds attributes of an object that the filesystem cannot carry.
// It is written next to the object as "<name>.meta".
type sidecar struct {
	ContentType string `json:"content_type"`
}

func metaPath(filePath string) string {
	return filePath + ".meta"
}

func (b *Backend) readSidecar(filePath string) (sidecar, bool) {
	var sc sidecar
	data, err := afero.ReadFile(b.fs, metaPath(filePath))
	if err != nil {
		return sc, false
	}
	if err := json.Unmarshal(data, &sc); err != nil || sc.ContentType == "" {
		return sc, false
	}
	return sc, true
}

// GetObjectMeta retrieves metadata for an object in the filesystem.
// The declared content type is read from the sidecar file; objects stored
// without one get a type detected from their bytes.
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplefiles.ObjectMeta, error) {
	filePath := b.path(objectKey)

	info, err := b.fs.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, simplefiles.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	contentType := "application/octet-stream"
	if sc, ok := b.readSidecar(filePath); ok {
		contentType = sc.ContentType
	} else if file, err := b.fs.Open(filePath); err == nil {
		defer file.Close()
		if mt, err := mimetype.DetectReader(file); err == nil {
			contentType = mt.String()
		}
	}

	return &simplefiles.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    map[string]string{"content_type": contentType},
	}, nil
}

// Upload uploads content directly to the filesystem
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	filePath := b.path(objectKey)

	if err := b.fs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := b.fs.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	// An overwrite without a declared type must not keep the old one.
	if err := b.fs.Remove(metaPath(filePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale metadata: %w", err)
	}
	return nil
}

// UploadWithParams uploads content and records the declared MIME type in a
// sidecar file.
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simplefiles.UploadParams) error {
	if err := b.Upload(ctx, params.ObjectKey, reader); err != nil {
		return err
	}
	if params.MimeType == "" {
		return nil
	}

	data, err := json.Marshal(sidecar{ContentType: params.MimeType})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := afero.WriteFile(b.fs, metaPath(b.path(params.ObjectKey)), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// GetDownloadURL returns a URL for downloading content
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	if b.urlPrefix == "" {
		return "", simplefiles.ErrDownloadURLUnsupported
	}
	if downloadFilename != "" {
		return fmt.Sprintf("%s/download/%s?filename=%s", b.urlPrefix, objectKey, url.QueryEscape(downloadFilename)), nil
	}
	return fmt.Sprintf("%s/download/%s", b.urlPrefix, objectKey), nil
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := b.fs.Open(b.path(objectKey))
	if os.IsNotExist(err) {
		return nil, simplefiles.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := b.path(objectKey)

	if _, err := b.fs.Stat(filePath); os.IsNotExist(err) {
		return simplefiles.ErrObjectNotFound
	}
	if err := b.fs.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := b.fs.Remove(metaPath(filePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	for dir != b.baseDir && strings.HasPrefix(dir, b.baseDir) {
		empty, err := afero.IsEmpty(b.fs, dir)
		if err != nil || !empty {
			return
		}
		if err := b.fs.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
