package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/parser"
	"github.com/customs-screening-pipeline/internal/repository"
	"github.com/customs-screening-pipeline/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// uploadService is the concrete implementation of UploadService
type uploadService struct {
	uploads     repository.UploadRepository
	results     repository.PackageResultRepository
	validator   *validation.Validator
	environment string
	log         zerolog.Logger
	now         func() time.Time
}

// newUploadService creates a new UploadService
func newUploadService(repos *repository.Repositories, validator *validation.Validator, environment string, log zerolog.Logger) *uploadService {
	return &uploadService{
		uploads:     repos.Upload,
		results:     repos.PackageResult,
		validator:   validator,
		environment: environment,
		log:         log.With().Str("service", "upload").Logger(),
		now:         utcNow,
	}
}

// CreateUpload parses and validates a CSV file and stores the outcome.
// A file that validates with errors is still stored so rows can be fixed.
func (s *uploadService) CreateUpload(ctx context.Context, filename string, r io.Reader) (*models.Upload, error) {
	parsed, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	result := s.validator.ValidateFile(parsed.Header, parsed.Rows, true)

	now := s.now()
	upload := &models.Upload{
		ID:          uuid.New().String(),
		Filename:    filename,
		Status:      statusFor(result),
		Environment: s.environment,
		Encoding:    parsed.Encoding,
		Columns:     parsed.Header,
		Validation:  result,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	s.log.Info().
		Str("upload_id", upload.ID).
		Str("filename", filename).
		Str("encoding", parsed.Encoding).
		Int("total", result.TotalRows).
		Int("valid", result.ValidRows).
		Int("invalid", result.InvalidRows).
		Strs("missing_columns", result.MissingColumns).
		Msg("Upload validated")

	return upload, nil
}

// GetUpload retrieves an upload by ID
func (s *uploadService) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrUploadNotFound
	}
	return upload, nil
}

// UpdateRows merges edited cells into the stored rows and validates the
// whole file again. Edits are keyed by 1-based row number.
func (s *uploadService) UpdateRows(ctx context.Context, id string, edits map[int]models.RawRow) (*models.Upload, error) {
	upload, err := s.GetUpload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !upload.Status.Editable() {
		return nil, ErrUploadLocked
	}

	var rows []models.RawRow
	if upload.Validation != nil {
		rows = upload.Validation.RawRows
	}

	merged := make(map[int]models.RawRow, len(edits))
	for rowNumber, cells := range edits {
		if rowNumber < 1 || rowNumber > len(rows) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidRowNumber, rowNumber)
		}
		row := make(models.RawRow, len(rows[rowNumber-1])+len(cells))
		for k, v := range rows[rowNumber-1] {
			row[k] = v
		}
		for k, v := range cells {
			row[k] = v
		}
		merged[rowNumber] = row
	}

	result := s.validator.Revalidate(upload.Columns, rows, merged)
	upload.Validation = result
	upload.Status = statusFor(result)
	upload.UpdatedAt = s.now()

	replaced, err := s.uploads.ReplaceValidation(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to store validation: %w", err)
	}
	if !replaced {
		return nil, ErrUploadLocked
	}

	s.log.Info().
		Str("upload_id", id).
		Int("edited_rows", len(edits)).
		Int("valid", result.ValidRows).
		Int("invalid", result.InvalidRows).
		Msg("Upload revalidated")

	return upload, nil
}

// GetResults returns the screening verdicts stored for an upload
func (s *uploadService) GetResults(ctx context.Context, id string) ([]*models.PackageResult, error) {
	if _, err := s.GetUpload(ctx, id); err != nil {
		return nil, err
	}
	return s.results.ListByUpload(ctx, id)
}

func statusFor(result *models.FileValidationResult) models.UploadStatus {
	if result.IsValid {
		return models.UploadStatusValidated
	}
	return models.UploadStatusInvalid
}
