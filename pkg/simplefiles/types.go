package simplefiles

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
)

// FileStatus represents the lifecycle state of a file record.
type FileStatus string

const (
	// FileStatusUploaded indicates the bytes are stored and the record exists.
	FileStatusUploaded FileStatus = "uploaded"

	// FileStatusProcessed indicates classification has completed.
	FileStatusProcessed FileStatus = "processed"
)

// IsValid checks if the FileStatus is one of the defined constants.
func (s FileStatus) IsValid() bool {
	switch s {
	case FileStatusUploaded, FileStatusProcessed:
		return true
	default:
		return false
	}
}

// ParseFileStatus maps a stored string to a FileStatus, defaulting to
// FileStatusUploaded for unknown values.
func ParseFileStatus(s string) FileStatus {
	if st := FileStatus(s); st.IsValid() {
		return st
	}
	return FileStatusUploaded
}

// ExtractedPrefix prefixes every derived attribute on a file record.
const ExtractedPrefix = "extracted_"

// FileRecord is the persisted description of an uploaded file.
type FileRecord struct {
	ID              uuid.UUID          `json:"id"`
	FileName        string             `json:"file_name"`
	ContentType     string             `json:"content_type"`
	StorageKey      string             `json:"storage_key"`
	UploadTimestamp time.Time          `json:"upload_timestamp"`
	FileSize        int64              `json:"file_size"`
	Status          FileStatus         `json:"status"`
	Metadata        *metadata.Metadata `json:"metadata"`
	ProcessingDate  *time.Time         `json:"processing_date,omitempty"`

	// Extracted holds the extracted_* attributes written by classification.
	// They are encoded at the top level of the JSON object.
	Extracted map[string]any `json:"-"`

	// DownloadURL is filled in on read when the blob store can produce one.
	// It is never persisted.
	DownloadURL string `json:"download_url,omitempty"`
}

type fileRecordJSON FileRecord

// MarshalJSON encodes the record with its extracted attributes flattened into
// the top-level object.
func (f FileRecord) MarshalJSON() ([]byte, error) {
	if f.Metadata == nil {
		f.Metadata = metadata.New()
	}
	base, err := json.Marshal(fileRecordJSON(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extracted) == 0 {
		return base, nil
	}
	extra, err := json.Marshal(f.Extracted)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(base) + len(extra))
	buf.Write(base[:len(base)-1])
	buf.WriteByte(',')
	buf.Write(extra[1:])
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a record, collecting extracted_* attributes into
// Extracted.
func (f *FileRecord) UnmarshalJSON(data []byte) error {
	var base fileRecordJSON
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if len(k) <= len(ExtractedPrefix) || k[:len(ExtractedPrefix)] != ExtractedPrefix {
			continue
		}
		v, err := decodeJSONValue(raw)
		if err != nil {
			return err
		}
		if base.Extracted == nil {
			base.Extracted = make(map[string]any)
		}
		base.Extracted[k] = v
	}
	*f = FileRecord(base)
	return nil
}

// DecodeExtracted decodes a JSON object of extracted attributes, keeping
// integral numbers as int64.
func DecodeExtracted(data []byte) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		decoded, err := decodeJSONValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = decoded
	}
	return out, nil
}

func decodeJSONValue(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumber(v), nil
}

// normalizeNumber turns integral JSON numbers into int64 and the rest into
// float64 so decoded records compare equal to freshly classified ones.
func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// ObjectStoredEvent signals that an object was written to the blob store.
type ObjectStoredEvent struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
