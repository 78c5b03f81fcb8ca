package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/customs-screening-pipeline/internal/database"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/lib/pq"
)

const failureColumns = `
	id, endpoint, method, request_snapshot, http_status, error_code, error_message, error_details,
	external_id, row_number, package_id, upload_id, environment, retry_count, max_retries,
	next_retry_at, retry_status, resolution_notes, created_at, last_retry_at, resolved_at, updated_at
`

// failureRepo is the concrete implementation of FailureRepository
type failureRepo struct {
	db *database.DB
}

// NewFailureRepo creates a new failure repository
func NewFailureRepo(db *database.DB) FailureRepository {
	return &failureRepo{db: db}
}

// Create inserts a new failure record
func (r *failureRepo) Create(ctx context.Context, f *models.FailureRecord) error {
	query := `
		INSERT INTO api_failures (id, endpoint, method, request_snapshot, http_status, error_code,
			error_message, error_details, external_id, row_number, package_id, upload_id, environment,
			retry_count, max_retries, next_retry_at, retry_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Endpoint, f.Method, nullJSON(f.RequestSnapshot), nullInt(f.HTTPStatus), nullString(f.ErrorCode),
		f.ErrorMessage, nullJSON(f.ErrorDetails), nullString(f.ExternalID), nullInt(f.RowNumber),
		nullString(f.PackageID), nullString(f.UploadID), f.Environment,
		f.RetryCount, f.MaxRetries, f.NextRetryAt, f.RetryStatus, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

// GetByID retrieves a failure record by ID
func (r *failureRepo) GetByID(ctx context.Context, id string) (*models.FailureRecord, error) {
	query := `SELECT ` + failureColumns + ` FROM api_failures WHERE id = $1`

	f, err := scanFailure(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// List returns failure records matching filter, newest first
func (r *failureRepo) List(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("retry_status = ANY($%d)", len(args)))
	}
	if filter.UploadID != "" {
		args = append(args, filter.UploadID)
		where = append(where, fmt.Sprintf("upload_id = $%d", len(args)))
	}
	if filter.Environment != "" {
		args = append(args, filter.Environment)
		where = append(where, fmt.Sprintf("environment = $%d", len(args)))
	}

	query := `SELECT ` + failureColumns + ` FROM api_failures`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, query, args...)
}

// ListDue returns pending records whose next retry time has passed
func (r *failureRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.FailureRecord, error) {
	query := `SELECT ` + failureColumns + `
		FROM api_failures
		WHERE retry_status = 'pending' AND next_retry_at <= $1 AND retry_count < max_retries
		ORDER BY next_retry_at
		LIMIT $2
	`
	return r.query(ctx, query, now, limit)
}

// ClaimForRetry atomically moves a retriable record to retrying. It reports
// false when the record is terminal or another retry holds it.
func (r *failureRepo) ClaimForRetry(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE api_failures SET retry_status = 'retrying', updated_at = $1
		WHERE id = $2 AND retry_status IN ('pending', 'manual_required') AND retry_count < max_retries
	`
	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Update writes the outcome of a retry attempt. created_at is never changed.
func (r *failureRepo) Update(ctx context.Context, f *models.FailureRecord) error {
	query := `
		UPDATE api_failures SET
			http_status = $1, error_code = $2, error_message = $3, error_details = $4,
			package_id = $5, retry_count = $6, next_retry_at = $7, retry_status = $8,
			last_retry_at = $9, resolved_at = $10, updated_at = $11
		WHERE id = $12
	`
	_, err := r.db.ExecContext(ctx, query,
		nullInt(f.HTTPStatus), nullString(f.ErrorCode), f.ErrorMessage, nullJSON(f.ErrorDetails),
		nullString(f.PackageID), f.RetryCount, f.NextRetryAt, f.RetryStatus,
		f.LastRetryAt, f.ResolvedAt, f.UpdatedAt, f.ID,
	)
	return err
}

// Resolve closes a record by operator decision. Records in success or
// resolved, and retrying records updated after staleBefore, are left
// untouched and false is returned.
func (r *failureRepo) Resolve(ctx context.Context, id, notes string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE api_failures SET
			retry_status = 'resolved', resolution_notes = $1, resolved_at = $2,
			next_retry_at = NULL, updated_at = $2
		WHERE id = $3 AND (
			retry_status IN ('pending', 'manual_required', 'exhausted')
			OR (retry_status = 'retrying' AND updated_at <= $4)
		)
	`
	result, err := r.db.ExecContext(ctx, query, nullString(notes), now, id, staleBefore)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (r *failureRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.FailureRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := []*models.FailureRecord{}
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFailure(row rowScanner) (*models.FailureRecord, error) {
	var f models.FailureRecord
	var snapshot, details []byte
	var httpStatus, rowNumber sql.NullInt64
	var errorCode, externalID, packageID, uploadID, notes sql.NullString
	var nextRetryAt, lastRetryAt, resolvedAt sql.NullTime

	err := row.Scan(
		&f.ID, &f.Endpoint, &f.Method, &snapshot, &httpStatus, &errorCode, &f.ErrorMessage, &details,
		&externalID, &rowNumber, &packageID, &uploadID, &f.Environment, &f.RetryCount, &f.MaxRetries,
		&nextRetryAt, &f.RetryStatus, &notes, &f.CreatedAt, &lastRetryAt, &resolvedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.RequestSnapshot = snapshot
	f.ErrorDetails = details
	f.HTTPStatus = int(httpStatus.Int64)
	f.RowNumber = int(rowNumber.Int64)
	f.ErrorCode = errorCode.String
	f.ExternalID = externalID.String
	f.PackageID = packageID.String
	f.UploadID = uploadID.String
	f.ResolutionNotes = notes.String
	f.NextRetryAt = timePtr(nextRetryAt)
	f.LastRetryAt = timePtr(lastRetryAt)
	f.ResolvedAt = timePtr(resolvedAt)

	return &f, nil
}
