// Package objectkey builds and parses the storage keys of uploaded files.
//
// Keys have the form uploads/{file id}/{file name}. Storage notifications for
// keys outside that layout are not ours and are ignored by callers.
package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix is the first path segment of every managed key.
const Prefix = "uploads"

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates the storage key for a file
	GenerateKey(fileID uuid.UUID, fileName string) string
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(fileID uuid.UUID, fileName string) string

func (f GeneratorFunc) GenerateKey(fileID uuid.UUID, fileName string) string {
	return f(fileID, fileName)
}

// UploadsGenerator produces uploads/{id}/{filename} keys.
type UploadsGenerator struct{}

func NewUploadsGenerator() *UploadsGenerator {
	return &UploadsGenerator{}
}

func (g *UploadsGenerator) GenerateKey(fileID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", Prefix, fileID, SanitizeFileName(fileName))
}

// Key is a parsed managed key.
type Key struct {
	FileID   uuid.UUID
	FileName string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", Prefix, k.FileID, k.FileName)
}

// Parse splits a managed key into its file id and file name. ok is false for
// keys that do not follow the uploads/{id}/{filename} layout.
func Parse(key string) (Key, bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != Prefix || parts[2] == "" {
		return Key{}, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Key{}, false
	}
	return Key{FileID: id, FileName: parts[2]}, true
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"\x00", "_",
)

// SanitizeFileName strips path separators so a client file name stays a
// single key segment.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "unnamed_file"
	}
	return name
}
