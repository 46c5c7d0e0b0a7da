package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// Repository implements simplefiles.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]*simplefiles.FileRecord
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files: make(map[uuid.UUID]*simplefiles.FileRecord),
	}
}

var _ simplefiles.Repository = (*Repository)(nil)

// clone copies a record so callers cannot modify stored state.
func clone(f *simplefiles.FileRecord) *simplefiles.FileRecord {
	c := *f
	c.Extracted = maps.Clone(f.Extracted)
	c.Metadata = f.Metadata.Clone()
	if f.ProcessingDate != nil {
		t := *f.ProcessingDate
		c.ProcessingDate = &t
	}
	return &c
}

func (r *Repository) CreateFile(ctx context.Context, file *simplefiles.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[file.ID] = clone(file)
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplefiles.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, simplefiles.ErrFileNotFound
	}
	return clone(file), nil
}

func (r *Repository) ListFiles(ctx context.Context, limit, offset int) ([]*simplefiles.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*simplefiles.FileRecord, 0, len(r.files))
	for _, f := range r.files {
		all = append(all, f)
	}
	slices.SortFunc(all, func(a, b *simplefiles.FileRecord) int {
		if c := b.UploadTimestamp.Compare(a.UploadTimestamp); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	if offset >= len(all) {
		return []*simplefiles.FileRecord{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*simplefiles.FileRecord, 0, end-offset)
	for _, f := range all[offset:end] {
		out = append(out, clone(f))
	}
	return out, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, extracted map[string]any, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return simplefiles.ErrFileNotFound
	}

	if file.Extracted == nil {
		file.Extracted = make(map[string]any, len(extracted))
	}
	maps.Copy(file.Extracted, extracted)
	file.Status = simplefiles.FileStatusProcessed
	t := processedAt.UTC()
	file.ProcessingDate = &t
	return nil
}
