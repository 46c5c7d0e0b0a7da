// Package multipart decodes raw multipart/form-data request bodies.
//
// The decoder works on a fully buffered body and never fails on an individual
// part: sections that cannot be parsed are dropped and decoding continues with
// the next section. Only the request-level preconditions handled by
// BoundaryFromContentType produce an error.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// ErrMalformedRequest indicates the request does not carry a usable multipart boundary.
var ErrMalformedRequest = errors.New("malformed request")

var (
	crlf          = []byte("\r\n")
	headerBodySep = []byte("\r\n\r\n")
	closeMarker   = []byte("--")
)

// Part is one section of a multipart body.
type Part struct {
	Name        string // form field name
	FileName    string // empty unless the part is a file part
	ContentType string // declared media type, empty if absent
	Data        []byte
}

// IsFile reports whether the part declared a filename.
func (p Part) IsFile() bool {
	return p.FileName != ""
}

// BoundaryFromContentType extracts the boundary parameter of a multipart/form-data
// Content-Type header value.
func BoundaryFromContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", fmt.Errorf("%w: missing content-type header", ErrMalformedRequest)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: invalid content-type header: %v", ErrMalformedRequest, err)
	}
	if mediaType != "multipart/form-data" {
		return "", fmt.Errorf("%w: content-type must be multipart/form-data, got %s", ErrMalformedRequest, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("%w: missing boundary parameter", ErrMalformedRequest)
	}
	return boundary, nil
}

// Decode splits body into parts using the given boundary.
//
// Parts are returned in the order they appear. Anything before the first
// delimiter is ignored, decoding stops at the closing delimiter, and a body
// that ends without one simply ends the scan. A section after the last
// delimiter that is not followed by another delimiter is not a part.
func Decode(body []byte, boundary string) []Part {
	if boundary == "" {
		return nil
	}
	delim := []byte("--" + boundary)

	start := bytes.Index(body, delim)
	if start < 0 {
		return nil
	}
	pos := start + len(delim)

	var parts []Part
	for pos <= len(body) {
		rest := body[pos:]
		if bytes.HasPrefix(rest, closeMarker) {
			break
		}
		next := bytes.Index(rest, delim)
		if next < 0 {
			break
		}
		if part, ok := parseSection(rest[:next]); ok {
			parts = append(parts, part)
		}
		pos += next + len(delim)
	}
	return parts
}

// parseSection parses the bytes between two delimiters.
func parseSection(section []byte) (Part, bool) {
	// The delimiter line ends with CRLF; drop it along with any transport padding.
	if i := bytes.Index(section, crlf); i >= 0 && len(bytes.TrimSpace(section[:i])) == 0 {
		section = section[i+len(crlf):]
	}

	sep := bytes.Index(section, headerBodySep)
	if sep < 0 {
		return Part{}, false
	}
	header := string(section[:sep])
	data := section[sep+len(headerBodySep):]
	data = bytes.TrimSuffix(data, crlf)

	disposition, ok := parseHeaders(header)
	if !ok {
		return Part{}, false
	}

	// Copy so the part does not alias the caller's buffer.
	payload := make([]byte, len(data))
	copy(payload, data)

	return Part{
		Name:        disposition.name,
		FileName:    disposition.fileName,
		ContentType: disposition.contentType,
		Data:        payload,
	}, true
}
