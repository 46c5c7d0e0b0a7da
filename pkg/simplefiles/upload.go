package simplefiles

import (
	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
	"github.com/tendant/simple-files/pkg/simplefiles/multipart"
)

// DefaultMaxUploadBytes is the default file size limit (10 MiB).
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// ParseUpload turns a raw multipart/form-data body into an UploadFileRequest
// using the default size limit.
//
// It fails with ErrMalformedRequest when the content type carries no usable
// boundary, ErrNoFile when no part is named "file", *ValidationFailedError
// when any metadata field was rejected and *FileTooLargeError when the file
// exceeds the limit.
func ParseUpload(contentType string, body []byte) (*UploadFileRequest, error) {
	return parseUpload(contentType, body, DefaultMaxUploadBytes)
}

func parseUpload(contentType string, body []byte, limit int64) (*UploadFileRequest, error) {
	boundary, err := multipart.BoundaryFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	res := metadata.Normalize(multipart.Decode(body, boundary))
	if res.File == nil {
		return nil, ErrNoFile
	}
	if !res.Valid() {
		return nil, &ValidationFailedError{Errors: res.Errors}
	}
	if size := int64(len(res.File.Data)); limit > 0 && size > limit {
		return nil, &FileTooLargeError{Size: size, Limit: limit}
	}

	return &UploadFileRequest{
		FileName:    res.File.FileName,
		ContentType: res.File.ContentType,
		Data:        res.File.Data,
		Metadata:    res.Fields,
	}, nil
}
