package metadata

import (
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used for processing timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	bytesPerPage = 50000
	bytesPerLine = 50
)

// Classification is the metadata derived from a stored object. Format,
// EstimatedPages and EstimatedLines are zero when they do not apply.
type Classification struct {
	FileSize            int64        `json:"file_size"`
	ContentType         string       `json:"content_type"`
	FileExtension       string       `json:"file_extension"`
	ProcessingTimestamp time.Time    `json:"processing_timestamp"`
	FileType            FileType     `json:"file_type"`
	Category            Category     `json:"category"`
	SizeCategory        SizeCategory `json:"size_category"`
	Format              string       `json:"format,omitempty"`
	EstimatedPages      int64        `json:"estimated_pages,omitempty"`
	EstimatedLines      int64        `json:"estimated_lines,omitempty"`
}

// Fields flattens the classification into prefixed record attributes.
// Optional attributes are only present when set.
func (c Classification) Fields(prefix string) map[string]any {
	out := map[string]any{
		prefix + "file_size":            c.FileSize,
		prefix + "content_type":         c.ContentType,
		prefix + "file_extension":       c.FileExtension,
		prefix + "processing_timestamp": c.ProcessingTimestamp.UTC().Format(TimestampLayout),
		prefix + "file_type":            string(c.FileType),
		prefix + "category":             string(c.Category),
		prefix + "size_category":        string(c.SizeCategory),
	}
	if c.Format != "" {
		out[prefix+"format"] = c.Format
	}
	if c.EstimatedPages > 0 {
		out[prefix+"estimated_pages"] = c.EstimatedPages
	}
	if c.EstimatedLines > 0 {
		out[prefix+"estimated_lines"] = c.EstimatedLines
	}
	return out
}

// Classifier classifies stored objects. The zero value uses time.Now.
type Classifier struct {
	Now func() time.Time
}

var defaultClassifier Classifier

// Classify classifies an object using the current time as processing timestamp.
func Classify(contentType, fileName string, size int64) Classification {
	return defaultClassifier.Classify(contentType, fileName, size)
}

var (
	textExtensions     = setOf("txt", "md", "csv", "json", "xml", "html", "css", "js", "ts")
	videoExtensions    = setOf("mp4", "avi", "mov", "wmv", "flv", "webm", "mkv")
	audioExtensions    = setOf("mp3", "wav", "flac", "aac", "ogg", "m4a")
	archiveExtensions  = setOf("zip", "rar", "7z", "tar", "gz")
	officeFormatsByExt = map[string]string{
		"doc":  "Word Document",
		"docx": "Word Document",
		"xls":  "Excel Spreadsheet",
		"xlsx": "Excel Spreadsheet",
		"ppt":  "PowerPoint Presentation",
		"pptx": "PowerPoint Presentation",
	}
)

type formatRule struct {
	match  string
	format string
}

var (
	imageFormats = []formatRule{
		{"jpeg", "JPEG"}, {"jpg", "JPEG"}, {"png", "PNG"}, {"gif", "GIF"}, {"webp", "WebP"}, {"svg", "SVG"},
	}
	videoFormats = []formatRule{{"mp4", "MP4"}, {"webm", "WebM"}, {"avi", "AVI"}, {"msvideo", "AVI"}}
	audioFormats = []formatRule{{"mp3", "MP3"}, {"mpeg", "MP3"}, {"wav", "WAV"}, {"flac", "FLAC"}}
)

// Classify classifies an object from its declared content type, file name and size.
// The first matching rule wins; objects matching none are unknown/other.
func (c Classifier) Classify(contentType, fileName string, size int64) Classification {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ext := Extension(fileName)
	ct := strings.ToLower(strings.TrimSpace(contentType))

	out := Classification{
		FileSize:            size,
		ContentType:         contentType,
		FileExtension:       ext,
		ProcessingTimestamp: now().UTC(),
		FileType:            FileTypeUnknown,
		Category:            CategoryOther,
		SizeCategory:        SizeCategoryOf(size),
	}

	switch {
	case strings.HasPrefix(ct, "image/"):
		out.FileType, out.Category = FileTypeImage, CategoryMedia
		out.Format = matchFormat(imageFormats, ct, "")
	case ct == "application/pdf" || ext == "pdf":
		out.FileType, out.Category = FileTypePDF, CategoryDocument
		out.EstimatedPages = max(1, ceilDiv(size, bytesPerPage))
	case strings.HasPrefix(ct, "text/") || textExtensions[ext]:
		out.FileType, out.Category = FileTypeText, CategoryDocument
		if size > 0 {
			out.EstimatedLines = max(1, ceilDiv(size, bytesPerLine))
		}
	case strings.HasPrefix(ct, "video/") || videoExtensions[ext]:
		out.FileType, out.Category = FileTypeVideo, CategoryMedia
		out.Format = matchFormat(videoFormats, ct, ext)
	case strings.HasPrefix(ct, "audio/") || audioExtensions[ext]:
		out.FileType, out.Category = FileTypeAudio, CategoryMedia
		out.Format = matchFormat(audioFormats, ct, ext)
	case officeFormatsByExt[ext] != "":
		out.FileType, out.Category = FileTypeDocument, CategoryDocument
		out.Format = officeFormatsByExt[ext]
	case archiveExtensions[ext]:
		out.FileType, out.Category = FileTypeArchive, CategoryCompressed
		out.Format = strings.ToUpper(ext)
	}
	return out
}

// Extension returns the lower-cased text after the last dot of name, or "".
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// matchFormat returns the label of the first rule found in the content type
// or equal to the extension.
func matchFormat(rules []formatRule, contentType, ext string) string {
	for _, r := range rules {
		if strings.Contains(contentType, r.match) || (ext != "" && ext == r.match) {
			return r.format
		}
	}
	return ""
}

func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
