package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/repository"
	"github.com/customs-screening-pipeline/internal/screening"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Error codes stored for failures that never reached the screening API
const (
	ErrorCodeTimeout = "TIMEOUT"
	ErrorCodeNetwork = "NETWORK_ERROR"
)

// failureService is the concrete implementation of FailureService
type failureService struct {
	failures    repository.FailureRepository
	results     repository.PackageResultRepository
	api         screening.API
	cfg         *config.RetryConfig
	environment string
	log         zerolog.Logger
	now         func() time.Time

	// at most one retry per failure ID in this process; the repository
	// claim guards across processes
	inflight singleflight.Group
	held     map[string]bool
	heldMu   sync.Mutex

	// scheduler state
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	sem     chan struct{}
}

// newFailureService creates a new FailureService
func newFailureService(repos *repository.Repositories, api screening.API, cfg *config.RetryConfig, environment string, log zerolog.Logger) *failureService {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &failureService{
		failures:    repos.Failure,
		results:     repos.PackageResult,
		api:         api,
		cfg:         cfg,
		environment: environment,
		log:         log.With().Str("service", "failure").Logger(),
		now:         utcNow,
		held:        make(map[string]bool),
		sem:         make(chan struct{}, concurrency),
	}
}

// RecordFailure stores a new FailureRecord for a failed call. Errors that a
// retry cannot fix start as manual_required; all others are scheduled.
func (s *failureService) RecordFailure(ctx context.Context, call FailedCall) (*models.FailureRecord, error) {
	now := s.now()
	f := &models.FailureRecord{
		ID:              uuid.New().String(),
		Endpoint:        call.Endpoint,
		Method:          call.Method,
		RequestSnapshot: call.Request,
		ExternalID:      call.ExternalID,
		RowNumber:       call.RowNumber,
		UploadID:        call.UploadID,
		Environment:     s.environment,
		RetryCount:      0,
		MaxRetries:      s.cfg.MaxAttempts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	applyError(f, call.Err)

	if screening.IsRetryable(call.Err) {
		next := now.Add(s.backoff(0))
		f.RetryStatus = models.RetryStatusPending
		f.NextRetryAt = &next
	} else {
		f.RetryStatus = models.RetryStatusManualRequired
	}

	if err := s.failures.Create(ctx, f); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("failure_id", f.ID).
		Str("upload_id", f.UploadID).
		Int("row", f.RowNumber).
		Str("external_id", f.ExternalID).
		Str("error_code", f.ErrorCode).
		Str("retry_status", string(f.RetryStatus)).
		Msg("Failure recorded")

	return f, nil
}

// GetFailure retrieves a failure record by ID
func (s *failureService) GetFailure(ctx context.Context, id string) (*models.FailureRecord, error) {
	f, err := s.failures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFailureNotFound
	}
	return f, nil
}

// ListFailures returns failure records matching filter
func (s *failureService) ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error) {
	return s.failures.List(ctx, filter)
}

// Retry re-issues the stored request of one failure. Concurrent callers for
// the same ID share a single attempt. The returned record carries the new
// state; a failing call is not an error of Retry itself.
func (s *failureService) Retry(ctx context.Context, id string) (*models.FailureRecord, error) {
	v, err, _ := s.inflight.Do(id, func() (interface{}, error) {
		return s.retryOnce(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.FailureRecord), nil
}

func (s *failureService) retryOnce(ctx context.Context, id string) (*models.FailureRecord, error) {
	f, err := s.GetFailure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.RetryStatus.Retriable() {
		return nil, notRetriable(f)
	}

	claimed, err := s.failures.ClaimForRetry(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.GetFailure(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, notRetriable(current)
	}
	s.hold(id)
	defer s.release(id)
	prior := *f

	log := s.log.With().Str("failure_id", id).Int("attempt", f.RetryCount+1).Logger()

	env, callErr := s.api.Do(ctx, f.Method, f.Endpoint, f.RequestSnapshot)
	var result *screening.ScreeningResult
	if callErr == nil && f.Endpoint == screening.EndpointScreenPackage {
		result, callErr = screening.DecodeScreeningResult(env)
	}

	now := s.now()
	f.LastRetryAt = &now
	f.UpdatedAt = now

	if callErr == nil {
		f.RetryStatus = models.RetryStatusSuccess
		f.ResolvedAt = &now
		f.NextRetryAt = nil
		if result != nil {
			f.PackageID = result.PackageID
		}
	} else {
		applyError(f, callErr)
		f.RetryCount++
		switch {
		case f.RetryCount >= f.MaxRetries:
			f.RetryStatus = models.RetryStatusExhausted
			f.NextRetryAt = nil
		case !screening.IsRetryable(callErr):
			f.RetryStatus = models.RetryStatusManualRequired
			f.NextRetryAt = nil
		default:
			next := now.Add(s.backoff(f.RetryCount))
			f.RetryStatus = models.RetryStatusPending
			f.NextRetryAt = &next
		}
	}

	if err := s.failures.Update(ctx, f); err != nil {
		log.Error().Err(err).Msg("Failed to store retry outcome")
		// hand the claim back so the record is not left in retrying
		prior.LastRetryAt = &now
		prior.UpdatedAt = now
		if rerr := s.failures.Update(context.WithoutCancel(ctx), &prior); rerr != nil {
			log.Error().Err(rerr).Msg("Failed to release retry claim")
		}
		return nil, fmt.Errorf("failed to store retry outcome: %w", err)
	}

	if result != nil {
		if status, ok := models.StatusForCode(result.Code); ok {
			pkg := &models.PackageResult{
				ID:          uuid.New().String(),
				UploadID:    f.UploadID,
				RowNumber:   f.RowNumber,
				ExternalID:  f.ExternalID,
				ScreeningID: result.PackageID,
				Code:        result.Code,
				Status:      status,
				LabelQRCode: result.LabelQRCode,
				RawResponse: result.Raw,
				Environment: f.Environment,
				CreatedAt:   now,
			}
			if err := s.results.Create(ctx, pkg); err != nil {
				return nil, fmt.Errorf("failed to store retry result: %w", err)
			}
		}
	}

	if callErr != nil {
		event := log.Warn()
		if f.RetryStatus.Terminal() {
			event = log.Error()
		}
		event.Err(callErr).
			Int("retry_count", f.RetryCount).
			Str("retry_status", string(f.RetryStatus)).
			Msg("Retry failed")
	} else {
		log.Info().Msg("Retry succeeded")
	}

	return f, nil
}

// BatchRetry retries the selected failures concurrently. Records that are
// terminal, already being retried or unknown are skipped and never retried.
func (s *failureService) BatchRetry(ctx context.Context, req models.BatchRetryRequest) (*models.BatchRetrySummary, error) {
	selected, skipped, err := s.selectForRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := &models.BatchRetrySummary{Total: len(selected) + skipped, Skipped: skipped}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(s.sem))
	for _, f := range selected {
		if !f.RetryStatus.Retriable() {
			summary.Skipped++
			continue
		}
		id := f.ID
		g.Go(func() error {
			updated, err := s.Retry(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNotRetriable), errors.Is(err, ErrRetryInFlight), errors.Is(err, ErrFailureNotFound):
				summary.Skipped++
			case err != nil:
				return err
			case updated.RetryStatus == models.RetryStatusSuccess:
				summary.Successful++
			default:
				summary.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	s.log.Info().
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("Batch retry finished")

	return summary, nil
}

// selectForRetry resolves explicit IDs, or the configured implicit scope
// when none are given. Unknown IDs are counted as skipped.
func (s *failureService) selectForRetry(ctx context.Context, req models.BatchRetryRequest) ([]*models.FailureRecord, int, error) {
	if len(req.IDs) > 0 {
		seen := make(map[string]bool, len(req.IDs))
		var selected []*models.FailureRecord
		skipped := 0
		for _, id := range req.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			f, err := s.failures.GetByID(ctx, id)
			if err != nil {
				return nil, 0, err
			}
			if f == nil {
				skipped++
				continue
			}
			selected = append(selected, f)
		}
		return selected, skipped, nil
	}

	filter := models.FailureFilter{
		Statuses: []models.RetryStatus{models.RetryStatusPending, models.RetryStatusManualRequired},
	}
	switch s.cfg.ImplicitScope {
	case config.RetryScopeAll:
	case config.RetryScopeUpload:
		if req.UploadID == "" {
			return nil, 0, fmt.Errorf("%w: upload_id is required", ErrNoFailuresSelected)
		}
		filter.UploadID = req.UploadID
	default:
		return nil, 0, ErrNoFailuresSelected
	}

	selected, err := s.failures.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return selected, 0, nil
}

// Resolve closes a failure by operator decision. Resolving a record that
// already succeeded or was resolved returns it unchanged. A retrying record
// can be resolved once no attempt in this process holds it and it has not
// been touched for StaleAfter.
func (s *failureService) Resolve(ctx context.Context, id, notes string) (*models.FailureRecord, error) {
	f, err := s.GetFailure(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.RetryStatus == models.RetryStatusSuccess || f.RetryStatus == models.RetryStatusResolved {
		return f, nil
	}
	if f.RetryStatus == models.RetryStatusRetrying && s.holding(id) {
		return nil, ErrRetryInFlight
	}

	now := s.now()
	resolved, err := s.failures.Resolve(ctx, id, notes, now, now.Add(-s.cfg.StaleAfter))
	if err != nil {
		return nil, err
	}

	f, err = s.GetFailure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resolved && f.RetryStatus == models.RetryStatusRetrying {
		return nil, ErrRetryInFlight
	}

	s.log.Info().
		Str("failure_id", id).
		Str("retry_status", string(f.RetryStatus)).
		Msg("Failure resolved")

	return f, nil
}

func (s *failureService) hold(id string) {
	s.heldMu.Lock()
	s.held[id] = true
	s.heldMu.Unlock()
}

func (s *failureService) release(id string) {
	s.heldMu.Lock()
	delete(s.held, id)
	s.heldMu.Unlock()
}

func (s *failureService) holding(id string) bool {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	return s.held[id]
}

// backoff returns the delay before the next attempt after n failed retries:
// base, then base·2^(n-1), capped at the configured maximum.
func (s *failureService) backoff(n int) time.Duration {
	d := s.cfg.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if s.cfg.MaxDelay > 0 && d >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if s.cfg.MaxDelay > 0 && d > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return d
}

func notRetriable(f *models.FailureRecord) error {
	if f.RetryStatus == models.RetryStatusRetrying {
		return ErrRetryInFlight
	}
	return fmt.Errorf("%w: status is %s", ErrNotRetriable, f.RetryStatus)
}

// applyError copies the details of err onto f, replacing earlier ones
func applyError(f *models.FailureRecord, err error) {
	f.ErrorMessage = err.Error()
	f.HTTPStatus = 0
	f.ErrorDetails = nil

	var apiErr *screening.APIError
	switch {
	case errors.As(err, &apiErr):
		f.HTTPStatus = apiErr.StatusCode
		f.ErrorCode = apiErr.Code
		f.ErrorMessage = apiErr.Message
		f.ErrorDetails = apiErr.Details
	case errors.Is(err, context.DeadlineExceeded):
		f.ErrorCode = ErrorCodeTimeout
	default:
		f.ErrorCode = ErrorCodeNetwork
	}

	if len(f.ErrorDetails) > 0 && !json.Valid(f.ErrorDetails) {
		f.ErrorDetails = nil
	}
}
