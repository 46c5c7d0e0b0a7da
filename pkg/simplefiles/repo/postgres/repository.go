package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/metadata"
)

// Schema creates the files table. Client metadata is stored as json (not
// jsonb) so key order survives a round trip.
const Schema = `
CREATE TABLE IF NOT EXISTS files (
	id               UUID PRIMARY KEY,
	file_name        TEXT NOT NULL,
	content_type     TEXT NOT NULL,
	storage_key      TEXT NOT NULL UNIQUE,
	upload_timestamp TIMESTAMPTZ NOT NULL,
	file_size        BIGINT NOT NULL,
	status           TEXT NOT NULL,
	metadata         JSON NOT NULL DEFAULT '{}',
	extracted        JSONB NOT NULL DEFAULT '{}',
	processing_date  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS files_upload_timestamp_idx ON files (upload_timestamp DESC, id DESC);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplefiles.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

var _ simplefiles.Repository = (*Repository)(nil)

// EnsureSchema creates the files table and its index when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("file already exists: %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simplefiles.ErrFileNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const fileColumns = `id, file_name, content_type, storage_key, upload_timestamp,
	file_size, status, metadata, extracted, processing_date`

func (r *Repository) CreateFile(ctx context.Context, file *simplefiles.FileRecord) error {
	md := file.Metadata
	if md == nil {
		md = metadata.New()
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	extracted := file.Extracted
	if extracted == nil {
		extracted = map[string]any{}
	}
	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to encode extracted attributes: %w", err)
	}

	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::json, $9::jsonb, $10)`

	_, err = r.db.Exec(ctx, query,
		file.ID, file.FileName, file.ContentType, file.StorageKey, file.UploadTimestamp,
		file.FileSize, string(file.Status), string(mdJSON), string(extractedJSON), file.ProcessingDate)
	if err != nil {
		return handlePostgresError("create file", err)
	}
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplefiles.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, handlePostgresError("get file", err)
	}
	return file, nil
}

func (r *Repository) ListFiles(ctx context.Context, limit, offset int) ([]*simplefiles.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		ORDER BY upload_timestamp DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, handlePostgresError("list files", err)
	}
	defer rows.Close()

	files := []*simplefiles.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, handlePostgresError("list files", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list files", err)
	}
	return files, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, extracted map[string]any, processedAt time.Time) error {
	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to encode extracted attributes: %w", err)
	}

	query := `
		UPDATE files SET
			extracted = extracted || $2::jsonb,
			status = $3,
			processing_date = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(extractedJSON), string(simplefiles.FileStatusProcessed), processedAt.UTC())
	if err != nil {
		return handlePostgresError("mark processed", err)
	}
	if tag.RowsAffected() == 0 {
		return simplefiles.ErrFileNotFound
	}
	return nil
}

func scanFile(row pgx.Row) (*simplefiles.FileRecord, error) {
	var (
		file          simplefiles.FileRecord
		status        string
		mdJSON        []byte
		extractedJSON []byte
	)
	err := row.Scan(
		&file.ID, &file.FileName, &file.ContentType, &file.StorageKey, &file.UploadTimestamp,
		&file.FileSize, &status, &mdJSON, &extractedJSON, &file.ProcessingDate)
	if err != nil {
		return nil, err
	}

	file.Status = simplefiles.ParseFileStatus(status)
	file.Metadata = metadata.New()
	if len(mdJSON) > 0 {
		if err := json.Unmarshal(mdJSON, file.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for file %s: %w", file.ID, err)
		}
	}
	if len(extractedJSON) > 0 {
		file.Extracted, err = simplefiles.DecodeExtracted(extractedJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode extracted attributes for file %s: %w", file.ID, err)
		}
	}
	return &file, nil
}
