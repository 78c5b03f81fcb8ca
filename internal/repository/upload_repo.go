package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/customs-screening-pipeline/internal/database"
	"github.com/customs-screening-pipeline/internal/models"
)

// uploadRepo is the concrete implementation of UploadRepository
type uploadRepo struct {
	db *database.DB
}

// NewUploadRepo creates a new upload repository
func NewUploadRepo(db *database.DB) UploadRepository {
	return &uploadRepo{db: db}
}

// Create inserts a new upload
func (r *uploadRepo) Create(ctx context.Context, upload *models.Upload) error {
	columns, validation, summary, err := encodeUpload(upload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO uploads (id, filename, status, environment, encoding, columns,
			validation, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		upload.ID, upload.Filename, upload.Status, upload.Environment, nullString(upload.Encoding),
		columns, validation, summary, upload.CreatedAt, upload.UpdatedAt,
	)
	return err
}

// Update writes status, validation and summary of an upload
func (r *uploadRepo) Update(ctx context.Context, upload *models.Upload) error {
	columns, validation, summary, err := encodeUpload(upload)
	if err != nil {
		return err
	}

	query := `
		UPDATE uploads SET
			status = $1, columns = $2, validation = $3, summary = $4,
			updated_at = $5, submitted_at = $6, completed_at = $7
		WHERE id = $8
	`
	_, err = r.db.ExecContext(ctx, query,
		upload.Status, columns, validation, summary,
		upload.UpdatedAt, upload.SubmittedAt, upload.CompletedAt, upload.ID,
	)
	return err
}

// ReplaceValidation stores a new validation result while the upload is
// still editable. It reports false when the upload was submitted meanwhile.
func (r *uploadRepo) ReplaceValidation(ctx context.Context, upload *models.Upload) (bool, error) {
	_, validation, _, err := encodeUpload(upload)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE uploads SET status = $1, validation = $2, updated_at = $3
		WHERE id = $4 AND status IN ('validated', 'invalid')
	`
	result, err := r.db.ExecContext(ctx, query, upload.Status, validation, upload.UpdatedAt, upload.ID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetByID retrieves an upload by ID
func (r *uploadRepo) GetByID(ctx context.Context, id string) (*models.Upload, error) {
	query := `
		SELECT id, filename, status, environment, encoding, columns, validation, summary,
			created_at, updated_at, submitted_at, completed_at
		FROM uploads WHERE id = $1
	`

	var upload models.Upload
	var encoding sql.NullString
	var columns, validation, summary []byte
	var submittedAt, completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&upload.ID, &upload.Filename, &upload.Status, &upload.Environment, &encoding,
		&columns, &validation, &summary,
		&upload.CreatedAt, &upload.UpdatedAt, &submittedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	upload.Encoding = encoding.String
	upload.SubmittedAt = timePtr(submittedAt)
	upload.CompletedAt = timePtr(completedAt)

	if len(columns) > 0 {
		if err := json.Unmarshal(columns, &upload.Columns); err != nil {
			return nil, fmt.Errorf("decode upload columns: %w", err)
		}
	}
	if len(validation) > 0 {
		upload.Validation = &models.FileValidationResult{}
		if err := json.Unmarshal(validation, upload.Validation); err != nil {
			return nil, fmt.Errorf("decode upload validation: %w", err)
		}
	}
	if len(summary) > 0 {
		upload.Summary = &models.BatchSummary{}
		if err := json.Unmarshal(summary, upload.Summary); err != nil {
			return nil, fmt.Errorf("decode upload summary: %w", err)
		}
	}

	return &upload, nil
}

// MarkProcessing atomically claims an upload for submission
func (r *uploadRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE uploads SET status = 'processing', submitted_at = $1, updated_at = $1
		WHERE id = $2 AND status IN ('validated', 'invalid')
	`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func encodeUpload(upload *models.Upload) (columns []byte, validation, summary interface{}, err error) {
	cols := upload.Columns
	if cols == nil {
		cols = []string{}
	}
	if columns, err = json.Marshal(cols); err != nil {
		return nil, nil, nil, fmt.Errorf("encode upload columns: %w", err)
	}
	if upload.Validation != nil {
		b, err := json.Marshal(upload.Validation)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode upload validation: %w", err)
		}
		validation = b
	}
	if upload.Summary != nil {
		b, err := json.Marshal(upload.Summary)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode upload summary: %w", err)
		}
		summary = b
	}
	return columns, validation, summary, nil
}
