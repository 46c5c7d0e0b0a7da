package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tendant/simple-files/pkg/simplefiles/multipart"
)

const (
	// FileFieldName is the form field that carries the uploaded file.
	FileFieldName = "file"

	// MaxFields is the maximum number of client metadata fields per request.
	MaxFields = 50

	DefaultFileName    = "unnamed_file"
	DefaultContentType = "application/octet-stream"
)

var numberRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// FilePart is the uploaded file extracted from a multipart body.
type FilePart struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ValidationError describes a metadata field that was rejected.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Result is the output of Normalize. Fields is safe to store only when Errors
// is empty.
type Result struct {
	File   *FilePart
	Fields *Metadata
	Errors []ValidationError
}

// Valid reports whether no validation errors were found.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Normalize separates the file part from the metadata parts and converts each
// metadata payload into a typed value.
//
// When several parts are named "file" the last one wins.
func Normalize(parts []multipart.Part) Result {
	res := Result{Fields: New()}

	for _, p := range parts {
		if p.Name == FileFieldName {
			res.File = filePartOf(p)
			continue
		}
		if p.Name == "" || len(p.Data) == 0 {
			continue
		}

		key := SanitizeKey(p.Name)
		v, err := ParseValue(key, p.Data)
		if err != nil {
			res.Errors = append(res.Errors, *err)
			continue
		}
		res.Fields.Set(key, v)
	}

	if res.Fields.Len() > MaxFields {
		res.Errors = append(res.Errors, ValidationError{
			Message: fmt.Sprintf("too many metadata fields (max %d)", MaxFields),
		})
	}
	return res
}

func filePartOf(p multipart.Part) *FilePart {
	f := &FilePart{
		FileName:    p.FileName,
		ContentType: p.ContentType,
		Data:        p.Data,
	}
	if f.FileName == "" {
		f.FileName = DefaultFileName
	}
	if f.ContentType == "" {
		f.ContentType = DefaultContentType
	}
	return f
}

// SanitizeKey replaces every character outside [A-Za-z0-9_] with an
// underscore and lower-cases the result.
func SanitizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ParseValue infers a typed value from a text payload.
func ParseValue(key string, data []byte) (Value, *ValidationError) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	text = strings.TrimSpace(text)

	switch {
	case text == "":
		return Value{}, &ValidationError{Key: key, Message: fmt.Sprintf("empty string value for key %s", key)}
	case numberRe.MatchString(text):
		f, err := strconv.ParseFloat(text, 64)
		v := NumberValue(f)
		if err != nil || !v.IsValid() {
			return Value{}, &ValidationError{Key: key, Message: fmt.Sprintf("non-finite number for key %s", key)}
		}
		return v, nil
	case strings.EqualFold(text, "true"):
		return BoolValue(true), nil
	case strings.EqualFold(text, "false"):
		return BoolValue(false), nil
	default:
		return StringValue(text), nil
	}
}
