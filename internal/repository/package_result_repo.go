package repository

import (
	"context"
	"database/sql"

	"github.com/customs-screening-pipeline/internal/database"
	"github.com/customs-screening-pipeline/internal/models"
)

// packageResultRepo is the concrete implementation of PackageResultRepository
type packageResultRepo struct {
	db *database.DB
}

// NewPackageResultRepo creates a new package result repository
func NewPackageResultRepo(db *database.DB) PackageResultRepository {
	return &packageResultRepo{db: db}
}

// Create inserts a screening verdict
func (r *packageResultRepo) Create(ctx context.Context, res *models.PackageResult) error {
	query := `
		INSERT INTO package_results (id, upload_id, row_number, external_id, screening_id,
			code, status, label_qr_code, raw_response, environment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID, nullString(res.UploadID), res.RowNumber, res.ExternalID, nullString(res.ScreeningID),
		res.Code, res.Status, nullString(res.LabelQRCode), nullJSON(res.RawResponse),
		res.Environment, res.CreatedAt,
	)
	return err
}

// ListByUpload returns the verdicts of an upload ordered by row number
func (r *packageResultRepo) ListByUpload(ctx context.Context, uploadID string) ([]*models.PackageResult, error) {
	query := `
		SELECT id, upload_id, row_number, external_id, screening_id, code, status,
			label_qr_code, raw_response, environment, created_at
		FROM package_results WHERE upload_id = $1
		ORDER BY row_number, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.PackageResult{}
	for rows.Next() {
		var res models.PackageResult
		var upload, screeningID, label sql.NullString
		var raw []byte
		if err := rows.Scan(
			&res.ID, &upload, &res.RowNumber, &res.ExternalID, &screeningID, &res.Code, &res.Status,
			&label, &raw, &res.Environment, &res.CreatedAt,
		); err != nil {
			return nil, err
		}
		res.UploadID = upload.String
		res.ScreeningID = screeningID.String
		res.LabelQRCode = label.String
		res.RawResponse = raw
		results = append(results, &res)
	}

	return results, rows.Err()
}
