package simplefiles

import "github.com/tendant/simple-files/pkg/simplefiles/metadata"

// UploadFileRequest contains parameters for storing an uploaded file
type UploadFileRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	Metadata    *metadata.Metadata
}

// ListFilesRequest contains parameters for listing file records
type ListFilesRequest struct {
	Limit  int
	Offset int
}

const (
	// DefaultListLimit is used when ListFilesRequest.Limit is not positive.
	DefaultListLimit = 50

	// MaxListLimit caps ListFilesRequest.Limit.
	MaxListLimit = 1000
)

func (r ListFilesRequest) normalized() ListFilesRequest {
	if r.Limit <= 0 {
		r.Limit = DefaultListLimit
	}
	if r.Limit > MaxListLimit {
		r.Limit = MaxListLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}
