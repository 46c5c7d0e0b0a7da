// Package redis stores file records in Redis as JSON documents with a sorted
// set index ordered by upload time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-files/pkg/simplefiles"
)

// DefaultPrefix namespaces every key written by the repository.
const DefaultPrefix = "simplefiles:"

const maxTxRetries = 5

// Repository implements simplefiles.Repository on top of Redis
type Repository struct {
	client redis.UniversalClient
	prefix string
}

// New creates a new Redis repository. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repository{client: client, prefix: prefix}
}

var _ simplefiles.Repository = (*Repository)(nil)

func (r *Repository) fileKey(id uuid.UUID) string {
	return r.prefix + "file:" + id.String()
}

func (r *Repository) indexKey() string {
	return r.prefix + "files:by_upload"
}

// Ping checks if the Redis connection is healthy.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Repository) CreateFile(ctx context.Context, file *simplefiles.FileRecord) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode file %s: %w", file.ID, err)
	}

	created, err := r.client.SetNX(ctx, r.fileKey(file.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis create file error: %w", err)
	}
	if !created {
		return fmt.Errorf("file already exists: %s", file.ID)
	}

	err = r.client.ZAdd(ctx, r.indexKey(), redis.Z{
		Score:  float64(file.UploadTimestamp.UnixMilli()),
		Member: file.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis index file error: %w", err)
	}
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplefiles.FileRecord, error) {
	data, err := r.client.Get(ctx, r.fileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, simplefiles.ErrFileNotFound
		}
		return nil, fmt.Errorf("redis get file error: %w", err)
	}
	return decodeFile(data)
}

func (r *Repository) ListFiles(ctx context.Context, limit, offset int) ([]*simplefiles.FileRecord, error) {
	if limit <= 0 {
		return []*simplefiles.FileRecord{}, nil
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list files error: %w", err)
	}
	if len(ids) == 0 {
		return []*simplefiles.FileRecord{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.prefix+"file:"+id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list files error: %w", err)
	}

	files := make([]*simplefiles.FileRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		file, err := decodeFile([]byte(s))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// MarkProcessed updates the record inside a WATCH transaction so concurrent
// deliveries of the same event cannot interleave their writes.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, extracted map[string]any, processedAt time.Time) error {
	key := r.fileKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return simplefiles.ErrFileNotFound
		}
		if err != nil {
			return err
		}
		file, err := decodeFile(data)
		if err != nil {
			return err
		}

		if file.Extracted == nil {
			file.Extracted = make(map[string]any, len(extracted))
		}
		maps.Copy(file.Extracted, extracted)
		file.Status = simplefiles.FileStatusProcessed
		at := processedAt.UTC()
		file.ProcessingDate = &at

		updated, err := json.Marshal(file)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, simplefiles.ErrFileNotFound) {
			return fmt.Errorf("redis mark processed error: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis mark processed error: too much contention on %s", key)
}

func decodeFile(data []byte) (*simplefiles.FileRecord, error) {
	var file simplefiles.FileRecord
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	file.Status = simplefiles.ParseFileStatus(string(file.Status))
	file.DownloadURL = ""
	return &file, nil
}
