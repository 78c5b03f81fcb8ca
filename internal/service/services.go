package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/media"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/repository"
	"github.com/customs-screening-pipeline/internal/screening"
	"github.com/customs-screening-pipeline/internal/validation"
	"github.com/rs/zerolog"
)

var (
	ErrUploadNotFound     = errors.New("upload not found")
	ErrUploadLocked       = errors.New("upload has already been submitted")
	ErrInvalidFile        = errors.New("invalid csv file")
	ErrInvalidRowNumber   = errors.New("row number out of range")
	ErrNothingToSubmit    = errors.New("upload has no valid rows to submit")
	ErrFailureNotFound    = errors.New("failure record not found")
	ErrNotRetriable       = errors.New("failure record is not retriable")
	ErrRetryInFlight      = errors.New("a retry for this failure is already in progress")
	ErrNoFailuresSelected = errors.New("no failures selected for retry")
)

// UploadService defines the interface for upload validation and editing
type UploadService interface {
	CreateUpload(ctx context.Context, filename string, r io.Reader) (*models.Upload, error)
	GetUpload(ctx context.Context, id string) (*models.Upload, error)
	UpdateRows(ctx context.Context, id string, edits map[int]models.RawRow) (*models.Upload, error)
	GetResults(ctx context.Context, id string) ([]*models.PackageResult, error)
}

// SubmissionService defines the interface for submitting validated rows
type SubmissionService interface {
	SubmitUpload(ctx context.Context, id string) (*models.BatchSummary, error)
	ProcessRows(ctx context.Context, uploadID string, rows []models.RowValidationResult) (*models.BatchSummary, error)
}

// FailureService defines the interface for failure tracking and retries
type FailureService interface {
	RecordFailure(ctx context.Context, call FailedCall) (*models.FailureRecord, error)
	GetFailure(ctx context.Context, id string) (*models.FailureRecord, error)
	ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error)
	Retry(ctx context.Context, id string) (*models.FailureRecord, error)
	BatchRetry(ctx context.Context, req models.BatchRetryRequest) (*models.BatchRetrySummary, error)
	Resolve(ctx context.Context, id, notes string) (*models.FailureRecord, error)
	StartScheduler(ctx context.Context)
	StopScheduler()
}

// FailedCall describes a screening API call that did not succeed
type FailedCall struct {
	Endpoint   string
	Method     string
	Request    json.RawMessage
	Err        error
	ExternalID string
	RowNumber  int
	UploadID   string
}

// Services holds all service interfaces
type Services struct {
	Upload     UploadService
	Submission SubmissionService
	Failure    FailureService
	Screening  screening.API
}

// NewServices creates all services
func NewServices(
	repos *repository.Repositories,
	api screening.API,
	fetcher media.Fetcher,
	catalog *validation.Catalog,
	cfg *config.Config,
	log zerolog.Logger,
) *Services {
	failureSvc := newFailureService(repos, api, &cfg.Retry, cfg.Screening.Environment, log)
	uploadSvc := newUploadService(repos, validation.NewValidator(catalog), cfg.Screening.Environment, log)
	submissionSvc := newSubmissionService(repos, api, fetcher, failureSvc, &cfg.Screening, log)

	return &Services{
		Upload:     uploadSvc,
		Submission: submissionSvc,
		Failure:    failureSvc,
		Screening:  api,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
