package metadata

// FileType is the coarse type assigned to a stored object.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeImage    FileType = "image"
	FileTypeText     FileType = "text"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeArchive  FileType = "archive"
	FileTypeUnknown  FileType = "unknown"
)

// ParseFileType maps a stored string to a FileType, defaulting to FileTypeUnknown.
func ParseFileType(s string) FileType {
	switch t := FileType(s); t {
	case FileTypePDF, FileTypeImage, FileTypeText, FileTypeVideo,
		FileTypeAudio, FileTypeDocument, FileTypeArchive:
		return t
	default:
		return FileTypeUnknown
	}
}

// Category groups file types.
type Category string

const (
	CategoryDocument   Category = "document"
	CategoryMedia      Category = "media"
	CategoryCompressed Category = "compressed"
	CategoryText       Category = "text"
	CategoryOther      Category = "other"
)

// ParseCategory maps a stored string to a Category, defaulting to CategoryOther.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryDocument, CategoryMedia, CategoryCompressed, CategoryText:
		return c
	default:
		return CategoryOther
	}
}

// SizeCategory buckets an object's byte size.
type SizeCategory string

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// Size thresholds in bytes.
const (
	MediumSizeThreshold = 1 << 20  // 1 MiB
	LargeSizeThreshold  = 10 << 20 // 10 MiB
)

// ParseSizeCategory maps a stored string to a SizeCategory, defaulting to SizeSmall.
func ParseSizeCategory(s string) SizeCategory {
	switch c := SizeCategory(s); c {
	case SizeMedium, SizeLarge:
		return c
	default:
		return SizeSmall
	}
}

// SizeCategoryOf returns the bucket for size bytes.
func SizeCategoryOf(size int64) SizeCategory {
	switch {
	case size < MediumSizeThreshold:
		return SizeSmall
	case size < LargeSizeThreshold:
		return SizeMedium
	default:
		return SizeLarge
	}
}
