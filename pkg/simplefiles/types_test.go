package simplefiles_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
)

func TestFileStatus(t *testing.T) {
	assert.True(t, simplefiles.FileStatusUploaded.IsValid())
	assert.True(t, simplefiles.FileStatusProcessed.IsValid())
	assert.False(t, simplefiles.FileStatus("deleted").IsValid())

	assert.Equal(t, simplefiles.FileStatusProcessed, simplefiles.ParseFileStatus("processed"))
	assert.Equal(t, simplefiles.FileStatusUploaded, simplefiles.ParseFileStatus("bogus"))
}

func TestFileRecordJSON_FlattensExtracted(t *testing.T) {
	id := uuid.MustParse("7a9d9a4e-0f57-4d2f-9c1c-2f5f1f0c9e11")
	processed := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	fields := metadata.New()
	fields.Set("owner", metadata.StringValue("ops"))
	fields.Set("count", metadata.NumberValue(2))

	rec := simplefiles.FileRecord{
		ID:              id,
		FileName:        "a.pdf",
		ContentType:     "application/pdf",
		StorageKey:      "uploads/" + id.String() + "/a.pdf",
		UploadTimestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FileSize:        10,
		Status:          simplefiles.FileStatusProcessed,
		Metadata:        fields,
		ProcessingDate:  &processed,
		Extracted: map[string]any{
			"extracted_file_type":       "pdf",
			"extracted_estimated_pages": int64(1),
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "7a9d9a4e-0f57-4d2f-9c1c-2f5f1f0c9e11",
		"file_name": "a.pdf",
		"content_type": "application/pdf",
		"storage_key": "uploads/7a9d9a4e-0f57-4d2f-9c1c-2f5f1f0c9e11/a.pdf",
		"upload_timestamp": "2024-03-01T12:00:00Z",
		"file_size": 10,
		"status": "processed",
		"metadata": {"owner": "ops", "count": 2},
		"processing_date": "2024-03-01T12:00:05Z",
		"extracted_file_type": "pdf",
		"extracted_estimated_pages": 1
	}`, string(data))

	var decoded simplefiles.FileRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, rec.Status, decoded.Status)
	assert.Equal(t, rec.Extracted, decoded.Extracted)
	assert.Equal(t, []string{"owner", "count"}, decoded.Metadata.Keys())
	require.NotNil(t, decoded.ProcessingDate)
	assert.True(t, processed.Equal(*decoded.ProcessingDate))
}

func TestFileRecordJSON_Minimal(t *testing.T) {
	data, err := json.Marshal(simplefiles.FileRecord{Status: simplefiles.FileStatusUploaded})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, map[string]any{}, m["metadata"])
	assert.NotContains(t, m, "processing_date")
	assert.NotContains(t, m, "download_url")
}

func TestDecodeExtracted(t *testing.T) {
	out, err := simplefiles.DecodeExtracted([]byte(`{"extracted_file_size": 42, "extracted_ratio": 1.5, "extracted_format": "PNG"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"extracted_file_size": int64(42),
		"extracted_ratio":     1.5,
		"extracted_format":    "PNG",
	}, out)

	out, err = simplefiles.DecodeExtracted([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = simplefiles.DecodeExtracted([]byte(`[`))
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	err := &simplefiles.FileTooLargeError{Size: 11 << 20, Limit: 10 << 20}
	assert.Equal(t, "file too large: 11 MiB exceeds the 10 MiB limit", err.Error())

	bodyErr := &simplefiles.FileTooLargeError{Limit: 10 << 20}
	assert.Equal(t, "file too large: request body exceeds the 10 MiB limit", bodyErr.Error())
	assert.ErrorIs(t, bodyErr, simplefiles.ErrFileTooLarge)
	assert.ErrorIs(t, err, simplefiles.ErrFileTooLarge)

	fileErr := &simplefiles.FileError{ID: uuid.Nil, Op: "create", Err: simplefiles.ErrFileNotFound}
	assert.ErrorIs(t, fileErr, simplefiles.ErrFileNotFound)

	storageErr := &simplefiles.StorageError{Backend: "s3", Key: "k", Op: "get", Err: simplefiles.ErrObjectNotFound}
	assert.ErrorIs(t, storageErr, simplefiles.ErrObjectNotFound)
	assert.Contains(t, storageErr.Error(), "backend s3")
}
