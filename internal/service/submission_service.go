package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/media"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/repository"
	"github.com/customs-screening-pipeline/internal/screening"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// submissionService is the concrete implementation of SubmissionService
type submissionService struct {
	uploads     repository.UploadRepository
	results     repository.PackageResultRepository
	failures    FailureService
	api         screening.API
	builder     *requestBuilder
	environment string
	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

// newSubmissionService creates a new SubmissionService
func newSubmissionService(
	repos *repository.Repositories,
	api screening.API,
	fetcher media.Fetcher,
	failures FailureService,
	cfg *config.ScreeningConfig,
	log zerolog.Logger,
) *submissionService {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	svcLog := log.With().Str("service", "submission").Logger()
	return &submissionService{
		uploads:     repos.Upload,
		results:     repos.PackageResult,
		failures:    failures,
		api:         api,
		builder:     newRequestBuilder(fetcher, svcLog),
		environment: cfg.Environment,
		concurrency: concurrency,
		log:         svcLog,
		now:         utcNow,
	}
}

// SubmitUpload claims an upload and submits its valid rows. When ctx is
// cancelled the row in flight finishes, the remaining rows are skipped and
// the upload is stored as cancelled with the partial summary.
func (s *submissionService) SubmitUpload(ctx context.Context, id string) (*models.BatchSummary, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrUploadNotFound
	}
	if !upload.Status.Editable() {
		return nil, ErrUploadLocked
	}

	var rows []models.RowValidationResult
	if upload.Validation != nil {
		rows = upload.Validation.ValidRecords()
	}
	if len(rows) == 0 {
		return nil, ErrNothingToSubmit
	}

	claimed, err := s.uploads.MarkProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrUploadLocked
	}

	startTime := s.now()
	upload.Status = models.UploadStatusProcessing
	upload.SubmittedAt = &startTime

	s.log.Info().
		Str("upload_id", id).
		Int("rows", len(rows)).
		Int("concurrency", s.concurrency).
		Msg("Starting submission")

	summary, procErr := s.ProcessRows(ctx, id, rows)

	completedAt := s.now()
	upload.Summary = summary
	upload.UpdatedAt = completedAt
	upload.CompletedAt = &completedAt
	switch {
	case procErr != nil:
		upload.Status = models.UploadStatusCancelled
	case summary.Failed == 0:
		upload.Status = models.UploadStatusCompleted
	default:
		upload.Status = models.UploadStatusCompletedWithErrors
	}

	if err := s.uploads.Update(context.WithoutCancel(ctx), upload); err != nil {
		s.log.Error().Err(err).Str("upload_id", id).Msg("Failed to store submission summary")
		return summary, fmt.Errorf("failed to store submission summary: %w", err)
	}

	event := s.log.Info()
	if procErr != nil {
		event = s.log.Warn().Err(procErr)
	}
	event.
		Str("upload_id", id).
		Str("status", string(upload.Status)).
		Int("total", summary.Total).
		Int("processed", summary.Processed).
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Int("inconclusive", summary.Inconclusive).
		Int("audit_required", summary.AuditRequired).
		Int("failed", summary.Failed).
		Dur("duration", completedAt.Sub(startTime)).
		Msg("Submission finished")

	if procErr != nil {
		return summary, procErr
	}
	return summary, nil
}

// ProcessRows submits rows with bounded concurrency and returns exactly one
// result per processed row, ordered by row number. A failed screening call
// becomes a failed result and a FailureRecord; only storage errors and
// cancellation stop the batch.
func (s *submissionService) ProcessRows(ctx context.Context, uploadID string, rows []models.RowValidationResult) (*models.BatchSummary, error) {
	summary := &models.BatchSummary{Total: len(rows), Results: []models.SubmissionResult{}}
	outcomes := make([]*models.SubmissionResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, row := range rows {
		if gctx.Err() != nil {
			break
		}
		i, row := i, row
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := s.submitRow(gctx, uploadID, row)
			if err != nil {
				return err
			}
			outcomes[i] = res
			return nil
		})
	}
	err := g.Wait()

	for _, res := range outcomes {
		if res != nil {
			summary.Add(*res)
		}
	}

	if err == nil {
		err = ctx.Err()
	}
	return summary, err
}

// submitRow screens one package. The call runs detached from cancellation
// so a row that has started always completes and is recorded.
func (s *submissionService) submitRow(ctx context.Context, uploadID string, row models.RowValidationResult) (*models.SubmissionResult, error) {
	rec := row.SanitizedData
	callCtx := context.WithoutCancel(ctx)
	rowLog := s.log.With().Str("upload_id", uploadID).Int("row", row.RowNumber).Str("external_id", rec.ExternalID).Logger()

	req := s.builder.Build(callCtx, rec)
	result, err := s.api.ScreenPackage(callCtx, req)

	var status models.SubmissionStatus
	if err == nil {
		var known bool
		if status, known = models.StatusForCode(result.Code); !known {
			err = &screening.APIError{
				StatusCode: http.StatusOK,
				Code:       screening.CodeMalformedResponse,
				Message:    fmt.Sprintf("unknown screening code %d", result.Code),
			}
		}
	}

	if err != nil {
		snapshot, merr := json.Marshal(req)
		if merr != nil {
			return nil, fmt.Errorf("snapshot request for row %d: %w", row.RowNumber, merr)
		}
		failure, ferr := s.failures.RecordFailure(callCtx, FailedCall{
			Endpoint:   screening.EndpointScreenPackage,
			Method:     http.MethodPost,
			Request:    snapshot,
			Err:        err,
			ExternalID: rec.ExternalID,
			RowNumber:  row.RowNumber,
			UploadID:   uploadID,
		})
		if ferr != nil {
			return nil, fmt.Errorf("record failure for row %d: %w", row.RowNumber, ferr)
		}
		rowLog.Warn().Err(err).Str("failure_id", failure.ID).Msg("Screening call failed")
		return &models.SubmissionResult{
			RowNumber:  row.RowNumber,
			ExternalID: rec.ExternalID,
			Status:     models.SubmissionFailed,
			Error:      err.Error(),
			FailureID:  failure.ID,
		}, nil
	}

	pkg := &models.PackageResult{
		ID:          uuid.New().String(),
		UploadID:    uploadID,
		RowNumber:   row.RowNumber,
		ExternalID:  rec.ExternalID,
		ScreeningID: result.PackageID,
		Code:        result.Code,
		Status:      status,
		LabelQRCode: result.LabelQRCode,
		RawResponse: result.Raw,
		Environment: s.environment,
		CreatedAt:   s.now(),
	}
	if err := s.results.Create(callCtx, pkg); err != nil {
		return nil, fmt.Errorf("store result for row %d: %w", row.RowNumber, err)
	}

	rowLog.Debug().Int("code", result.Code).Str("status", string(status)).Msg("Package screened")

	return &models.SubmissionResult{
		RowNumber:     row.RowNumber,
		ExternalID:    rec.ExternalID,
		Status:        status,
		ScreeningCode: result.Code,
		ScreeningID:   result.PackageID,
	}, nil
}

// IsCancelled reports whether err ended a submission early because the
// caller went away
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
