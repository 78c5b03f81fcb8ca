package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/customs-screening-pipeline/internal/database"
	"github.com/customs-screening-pipeline/internal/models"
)

// UploadRepository defines the interface for upload data operations.
// GetByID returns nil, nil when the upload does not exist.
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	Update(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id string) (*models.Upload, error)
	ReplaceValidation(ctx context.Context, upload *models.Upload) (bool, error)
	MarkProcessing(ctx context.Context, id string) (bool, error)
}

// PackageResultRepository defines the interface for screening verdicts
type PackageResultRepository interface {
	Create(ctx context.Context, result *models.PackageResult) error
	ListByUpload(ctx context.Context, uploadID string) ([]*models.PackageResult, error)
}

// FailureRepository defines the interface for failure records.
// Records are never deleted. GetByID returns nil, nil when not found.
type FailureRepository interface {
	Create(ctx context.Context, failure *models.FailureRecord) error
	GetByID(ctx context.Context, id string) (*models.FailureRecord, error)
	List(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.FailureRecord, error)
	ClaimForRetry(ctx context.Context, id string, now time.Time) (bool, error)
	Update(ctx context.Context, failure *models.FailureRecord) error
	Resolve(ctx context.Context, id, notes string, now, staleBefore time.Time) (bool, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Upload        UploadRepository
	PackageResult PackageResultRepository
	Failure       FailureRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Upload:        NewUploadRepo(db),
		PackageResult: NewPackageResultRepo(db),
		Failure:       NewFailureRepo(db),
	}
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}

// nullJSON stores empty or null raw JSON as SQL NULL
func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
