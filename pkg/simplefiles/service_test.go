package simplefiles_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
	"github.com/tendant/simple-files/pkg/simplefiles/objectkey"
	"github.com/tendant/simple-files/pkg/simplefiles/repo/memory"
	memorystorage "github.com/tendant/simple-files/pkg/simplefiles/storage/memory"
)

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func buildForm(t *testing.T, file *formFile, fields ...[2]string) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f[0], f[1]))
	}
	if file != nil {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + file.name + `"`}
		if file.contentType != "" {
			h["Content-Type"] = []string{file.contentType}
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf.Bytes()
}

type recordingSink struct {
	mu     sync.Mutex
	events []simplefiles.ObjectStoredEvent
	err    error
}

func (r *recordingSink) ObjectStored(ctx context.Context, ev simplefiles.ObjectStoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

type countingMetrics struct {
	mu         sync.Mutex
	accepted   int
	rejected   map[string]int
	classified map[string]int
	skipped    map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		rejected:   map[string]int{},
		classified: map[string]int{},
		skipped:    map[string]int{},
	}
}

func (m *countingMetrics) UploadAccepted(int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *countingMetrics) UploadRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *countingMetrics) ObjectClassified(fileType, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classified[fileType+"/"+category]++
}

func (m *countingMetrics) ClassificationSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

type failingRepo struct {
	simplefiles.Repository
}

func (failingRepo) CreateFile(ctx context.Context, f *simplefiles.FileRecord) error {
	return errors.New("database unavailable")
}

type countingRepo struct {
	*memory.Repository
	gets atomic.Int32
}

func (r *countingRepo) GetFile(ctx context.Context, id uuid.UUID) (*simplefiles.FileRecord, error) {
	r.gets.Add(1)
	return r.Repository.GetFile(ctx, id)
}

type urlStore struct {
	*memorystorage.Backend
	err error
}

func (s urlStore) GetDownloadURL(ctx context.Context, key, filename string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.example.com/" + key + "?filename=" + filename, nil
}

type fixture struct {
	svc     simplefiles.Service
	repo    *memory.Repository
	store   *memorystorage.Backend
	sink    *recordingSink
	metrics *countingMetrics
	now     time.Time
}

func newFixture(t *testing.T, opts ...simplefiles.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:    memory.New(),
		store:   memorystorage.New(),
		sink:    &recordingSink{},
		metrics: newCountingMetrics(),
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []simplefiles.Option{
		simplefiles.WithRepository(f.repo),
		simplefiles.WithBlobStore(f.store),
		simplefiles.WithEventSink(f.sink),
		simplefiles.WithMetrics(f.metrics),
		simplefiles.WithClock(func() time.Time { return f.now }),
	}
	svc, err := simplefiles.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplefiles.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			expectError: true,
		},
		{
			name:        "repository without blob store should fail",
			options:     []simplefiles.Option{simplefiles.WithRepository(memory.New())},
			expectError: true,
		},
		{
			name: "repository and blob store should succeed",
			options: []simplefiles.Option{
				simplefiles.WithRepository(memory.New()),
				simplefiles.WithBlobStore(memorystorage.New()),
			},
		},
		{
			name: "non-positive upload limit should fail",
			options: []simplefiles.Option{
				simplefiles.WithRepository(memory.New()),
				simplefiles.WithBlobStore(memorystorage.New()),
				simplefiles.WithMaxUploadBytes(0),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplefiles.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
				assert.Equal(t, simplefiles.DefaultMaxUploadBytes, svc.MaxUploadBytes())
			}
		})
	}
}

func TestParseUpload(t *testing.T) {
	f := newFixture(t)

	ct, body := buildForm(t,
		&formFile{name: "report.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")},
		[2]string{"Project Name", "Apollo"},
		[2]string{"pages", "12"},
		[2]string{"draft", "TRUE"},
	)

	req, err := f.svc.ParseUpload(ct, body)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", req.FileName)
	assert.Equal(t, "application/pdf", req.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), req.Data)
	assert.Equal(t, []string{"project_name", "pages", "draft"}, req.Metadata.Keys())
	assert.Equal(t, map[string]any{"project_name": "Apollo", "pages": 12.0, "draft": true}, req.Metadata.Map())
}

func TestParseUpload_Errors(t *testing.T) {
	f := newFixture(t, simplefiles.WithMaxUploadBytes(8))

	t.Run("missing boundary", func(t *testing.T) {
		_, err := f.svc.ParseUpload("multipart/form-data", []byte("x"))
		assert.ErrorIs(t, err, simplefiles.ErrMalformedRequest)
	})

	t.Run("no file part", func(t *testing.T) {
		ct, body := buildForm(t, nil, [2]string{"title", "x"})
		_, err := f.svc.ParseUpload(ct, body)
		assert.ErrorIs(t, err, simplefiles.ErrNoFile)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		ct, body := buildForm(t, &formFile{name: "a.txt", data: []byte("hi")}, [2]string{"note", "   "})
		_, err := f.svc.ParseUpload(ct, body)
		var verr *simplefiles.ValidationFailedError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"empty string value for key note"}, verr.Messages())
	})

	t.Run("file too large", func(t *testing.T) {
		ct, body := buildForm(t, &formFile{name: "a.txt", data: []byte("0123456789")})
		_, err := f.svc.ParseUpload(ct, body)
		var tooLarge *simplefiles.FileTooLargeError
		require.ErrorAs(t, err, &tooLarge)
		assert.Equal(t, int64(10), tooLarge.Size)
		assert.Equal(t, int64(8), tooLarge.Limit)
		assert.ErrorIs(t, err, simplefiles.ErrFileTooLarge)
	})

	assert.Equal(t, map[string]int{
		"malformed_request": 1,
		"no_file":           1,
		"validation":        1,
		"too_large":         1,
	}, f.metrics.rejected)
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fields := metadata.New()
	fields.Set("owner", metadata.StringValue("ops"))

	record, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello world"),
		Metadata:    fields,
	})
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", record.FileName)
	assert.Equal(t, "text/plain", record.ContentType)
	assert.Equal(t, int64(11), record.FileSize)
	assert.Equal(t, simplefiles.FileStatusUploaded, record.Status)
	assert.Equal(t, f.now, record.UploadTimestamp)
	assert.Equal(t, "uploads/"+record.ID.String()+"/notes.txt", record.StorageKey)

	rc, err := f.store.Download(ctx, record.StorageKey)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))

	stored, err := f.svc.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StorageKey, stored.StorageKey)
	assert.Equal(t, map[string]any{"owner": "ops"}, stored.Metadata.Map())

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, simplefiles.ObjectStoredEvent{Key: record.StorageKey, Size: 11}, f.sink.events[0])
	assert.Equal(t, 1, f.metrics.accepted)
}

func TestUploadFile_Defaults(t *testing.T) {
	f := newFixture(t)

	record, err := f.svc.UploadFile(context.Background(), simplefiles.UploadFileRequest{Data: []byte{0x01}})
	require.NoError(t, err)
	assert.Equal(t, metadata.DefaultFileName, record.FileName)
	assert.Equal(t, metadata.DefaultContentType, record.ContentType)
	assert.Equal(t, 0, record.Metadata.Len())
}

func TestUploadFile_SinkErrorDoesNotFailUpload(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("broker down")

	record, err := f.svc.UploadFile(context.Background(), simplefiles.UploadFileRequest{
		FileName: "a.bin",
		Data:     []byte("abc"),
	})
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Len(t, f.sink.events, 1)
}

func TestUploadFile_TooLarge(t *testing.T) {
	f := newFixture(t, simplefiles.WithMaxUploadBytes(2))

	_, err := f.svc.UploadFile(context.Background(), simplefiles.UploadFileRequest{Data: []byte("abc")})
	assert.ErrorIs(t, err, simplefiles.ErrFileTooLarge)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.sink.events)
}

func TestUploadFile_RepositoryFailureRemovesObject(t *testing.T) {
	store := memorystorage.New()
	svc, err := simplefiles.New(
		simplefiles.WithRepository(failingRepo{}),
		simplefiles.WithBlobStore(store),
	)
	require.NoError(t, err)

	_, err = svc.UploadFile(context.Background(), simplefiles.UploadFileRequest{FileName: "a.txt", Data: []byte("x")})
	var fileErr *simplefiles.FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "create", fileErr.Op)
	assert.Equal(t, 0, store.Len())
}

func TestGetFile_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetFile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, simplefiles.ErrFileNotFound)
}

func TestListFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Minute)
		rec, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{FileName: "f.txt", Data: []byte("x")})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all, err := f.svc.ListFiles(ctx, simplefiles.ListFilesRequest{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	page, err := f.svc.ListFiles(ctx, simplefiles.ListFilesRequest{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	empty, err := f.svc.ListFiles(ctx, simplefiles.ListFilesRequest{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetDownloadURL(ctx, uuid.New())
	assert.ErrorIs(t, err, simplefiles.ErrFileNotFound)

	rec, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{FileName: "a.txt", Data: []byte("x")})
	require.NoError(t, err)

	_, err = f.svc.GetDownloadURL(ctx, rec.ID)
	assert.ErrorIs(t, err, simplefiles.ErrDownloadURLUnsupported)
}

func TestGetFile_DownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("filled from the loaded record", func(t *testing.T) {
		repo := &countingRepo{Repository: memory.New()}
		svc, err := simplefiles.New(
			simplefiles.WithRepository(repo),
			simplefiles.WithBlobStore(urlStore{Backend: memorystorage.New()}),
		)
		require.NoError(t, err)

		rec, err := svc.UploadFile(ctx, simplefiles.UploadFileRequest{FileName: "a.txt", Data: []byte("x")})
		require.NoError(t, err)

		got, err := svc.GetFile(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/"+rec.StorageKey+"?filename=a.txt", got.DownloadURL)
		assert.Equal(t, int32(1), repo.gets.Load())
	})

	t.Run("store failure keeps the record", func(t *testing.T) {
		svc, err := simplefiles.New(
			simplefiles.WithRepository(memory.New()),
			simplefiles.WithBlobStore(urlStore{Backend: memorystorage.New(), err: errors.New("signer offline")}),
		)
		require.NoError(t, err)

		rec, err := svc.UploadFile(ctx, simplefiles.UploadFileRequest{FileName: "a.txt", Data: []byte("x")})
		require.NoError(t, err)

		got, err := svc.GetFile(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Empty(t, got.DownloadURL)

		_, err = svc.GetDownloadURL(ctx, rec.ID)
		assert.ErrorContains(t, err, "signer offline")
	})

	t.Run("unsupported store", func(t *testing.T) {
		f := newFixture(t)
		rec, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{FileName: "a.txt", Data: []byte("x")})
		require.NoError(t, err)

		got, err := f.svc.GetFile(ctx, rec.ID)
		require.NoError(t, err)
		assert.Empty(t, got.DownloadURL)
	})
}

func TestProcessStoredObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{
		FileName:    "Report.PDF",
		ContentType: "application/pdf",
		Data:        bytes.Repeat([]byte("a"), 150000),
	})
	require.NoError(t, err)

	f.now = f.now.Add(5 * time.Second)
	c, err := f.svc.ProcessStoredObject(ctx, f.sink.events[0])
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTypePDF, c.FileType)
	assert.Equal(t, metadata.CategoryDocument, c.Category)
	assert.Equal(t, metadata.SizeSmall, c.SizeCategory)
	assert.Equal(t, int64(3), c.EstimatedPages)
	assert.Equal(t, "pdf", c.FileExtension)

	stored, err := f.svc.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, simplefiles.FileStatusProcessed, stored.Status)
	require.NotNil(t, stored.ProcessingDate)
	assert.Equal(t, f.now, *stored.ProcessingDate)
	assert.Equal(t, map[string]any{
		"extracted_file_size":            int64(150000),
		"extracted_content_type":         "application/pdf",
		"extracted_file_extension":       "pdf",
		"extracted_processing_timestamp": "2024-03-01T12:00:05.000Z",
		"extracted_file_type":            "pdf",
		"extracted_category":             "document",
		"extracted_size_category":        "small",
		"extracted_estimated_pages":      int64(3),
	}, stored.Extracted)
	assert.Equal(t, 1, f.metrics.classified["pdf/document"])

	// Re-delivery overwrites with equivalent attributes.
	_, err = f.svc.ProcessStoredObject(ctx, f.sink.events[0])
	require.NoError(t, err)
	again, err := f.svc.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Extracted, again.Extracted)
	assert.Equal(t, simplefiles.FileStatusProcessed, again.Status)
}

func TestProcessStoredObject_SizeFallsBackToObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.UploadFile(ctx, simplefiles.UploadFileRequest{
		FileName:    "a.txt",
		ContentType: "text/plain",
		Data:        []byte(strings.Repeat("x", 120)),
	})
	require.NoError(t, err)

	c, err := f.svc.ProcessStoredObject(ctx, simplefiles.ObjectStoredEvent{Key: rec.StorageKey})
	require.NoError(t, err)
	assert.Equal(t, int64(120), c.FileSize)
	assert.Equal(t, int64(3), c.EstimatedLines)
}

func TestProcessStoredObject_UnmanagedKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessStoredObject(context.Background(), simplefiles.ObjectStoredEvent{Key: "other/file.txt", Size: 3})
	assert.ErrorIs(t, err, simplefiles.ErrObjectKeyNotManaged)
	assert.Equal(t, 1, f.metrics.skipped["unmanaged_key"])
}

func TestProcessStoredObject_MissingObject(t *testing.T) {
	f := newFixture(t)
	key := objectkey.Key{FileID: uuid.New(), FileName: "a.txt"}.String()

	_, err := f.svc.ProcessStoredObject(context.Background(), simplefiles.ObjectStoredEvent{Key: key, Size: 3})
	assert.ErrorIs(t, err, simplefiles.ErrObjectNotFound)
}

func TestProcessStoredObject_MissingRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := objectkey.Key{FileID: uuid.New(), FileName: "photo.png"}.String()
	require.NoError(t, f.store.UploadWithParams(ctx, strings.NewReader("png"), simplefiles.UploadParams{
		ObjectKey: key,
		MimeType:  "image/png",
	}))

	c, err := f.svc.ProcessStoredObject(ctx, simplefiles.ObjectStoredEvent{Key: key, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, metadata.FileTypeImage, c.FileType)
	assert.Equal(t, "PNG", c.Format)
	assert.Equal(t, 1, f.metrics.skipped["record_missing"])
}

func TestUploadThenClassifyInline(t *testing.T) {
	repo := memory.New()
	store := memorystorage.New()
	sink := &simplefiles.SyncEventSink{}
	svc, err := simplefiles.New(
		simplefiles.WithRepository(repo),
		simplefiles.WithBlobStore(store),
		simplefiles.WithEventSink(sink),
	)
	require.NoError(t, err)
	sink.Handler = func(ctx context.Context, ev simplefiles.ObjectStoredEvent) error {
		_, err := svc.ProcessStoredObject(ctx, ev)
		return err
	}

	rec, err := svc.UploadFile(context.Background(), simplefiles.UploadFileRequest{
		FileName:    "song.mp3",
		ContentType: "audio/mpeg",
		Data:        []byte("ID3"),
	})
	require.NoError(t, err)

	stored, err := svc.GetFile(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, simplefiles.FileStatusProcessed, stored.Status)
	assert.Equal(t, "audio", stored.Extracted["extracted_file_type"])
	assert.Equal(t, "MP3", stored.Extracted["extracted_format"])
}
