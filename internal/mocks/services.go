package mocks

import (
	"context"
	"io"

	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/service"
)

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	CreateFunc     func(ctx context.Context, filename string, r io.Reader) (*models.Upload, error)
	GetFunc        func(ctx context.Context, id string) (*models.Upload, error)
	UpdateRowsFunc func(ctx context.Context, id string, edits map[int]models.RawRow) (*models.Upload, error)
	ResultsFunc    func(ctx context.Context, id string) ([]*models.PackageResult, error)
	Uploads        map[string]*models.Upload
	CreatedNames   []string
}

// Verify interface compliance
var _ service.UploadService = (*MockUploadService)(nil)

func NewMockUploadService() *MockUploadService {
	return &MockUploadService{Uploads: make(map[string]*models.Upload)}
}

func (m *MockUploadService) CreateUpload(ctx context.Context, filename string, r io.Reader) (*models.Upload, error) {
	m.CreatedNames = append(m.CreatedNames, filename)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, filename, r)
	}
	upload := &models.Upload{
		ID:       "test-upload-id",
		Filename: filename,
		Status:   models.UploadStatusValidated,
	}
	m.Uploads[upload.ID] = upload
	return upload, nil
}

func (m *MockUploadService) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	upload, ok := m.Uploads[id]
	if !ok {
		return nil, service.ErrUploadNotFound
	}
	return upload, nil
}

func (m *MockUploadService) UpdateRows(ctx context.Context, id string, edits map[int]models.RawRow) (*models.Upload, error) {
	if m.UpdateRowsFunc != nil {
		return m.UpdateRowsFunc(ctx, id, edits)
	}
	return m.GetUpload(ctx, id)
}

func (m *MockUploadService) GetResults(ctx context.Context, id string) ([]*models.PackageResult, error) {
	if m.ResultsFunc != nil {
		return m.ResultsFunc(ctx, id)
	}
	if _, err := m.GetUpload(ctx, id); err != nil {
		return nil, err
	}
	return []*models.PackageResult{}, nil
}

// MockSubmissionService is a mock implementation of SubmissionService
type MockSubmissionService struct {
	SubmitFunc   func(ctx context.Context, id string) (*models.BatchSummary, error)
	ProcessFunc  func(ctx context.Context, uploadID string, rows []models.RowValidationResult) (*models.BatchSummary, error)
	SubmittedIDs []string
}

// Verify interface compliance
var _ service.SubmissionService = (*MockSubmissionService)(nil)

func NewMockSubmissionService() *MockSubmissionService {
	return &MockSubmissionService{}
}

func (m *MockSubmissionService) SubmitUpload(ctx context.Context, id string) (*models.BatchSummary, error) {
	m.SubmittedIDs = append(m.SubmittedIDs, id)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, id)
	}
	return &models.BatchSummary{Results: []models.SubmissionResult{}}, nil
}

func (m *MockSubmissionService) ProcessRows(ctx context.Context, uploadID string, rows []models.RowValidationResult) (*models.BatchSummary, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, uploadID, rows)
	}
	return &models.BatchSummary{Total: len(rows), Results: []models.SubmissionResult{}}, nil
}

// MockFailureService is a mock implementation of FailureService
type MockFailureService struct {
	RecordFunc     func(ctx context.Context, call service.FailedCall) (*models.FailureRecord, error)
	ListFunc       func(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error)
	RetryFunc      func(ctx context.Context, id string) (*models.FailureRecord, error)
	BatchRetryFunc func(ctx context.Context, req models.BatchRetryRequest) (*models.BatchRetrySummary, error)
	ResolveFunc    func(ctx context.Context, id, notes string) (*models.FailureRecord, error)
	Failures       map[string]*models.FailureRecord
	LastFilter     models.FailureFilter
	Recorded       []service.FailedCall
}

// Verify interface compliance
var _ service.FailureService = (*MockFailureService)(nil)

func NewMockFailureService() *MockFailureService {
	return &MockFailureService{Failures: make(map[string]*models.FailureRecord)}
}

func (m *MockFailureService) RecordFailure(ctx context.Context, call service.FailedCall) (*models.FailureRecord, error) {
	m.Recorded = append(m.Recorded, call)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, call)
	}
	return &models.FailureRecord{ID: "test-failure-id", RetryStatus: models.RetryStatusPending}, nil
}

func (m *MockFailureService) GetFailure(ctx context.Context, id string) (*models.FailureRecord, error) {
	f, ok := m.Failures[id]
	if !ok {
		return nil, service.ErrFailureNotFound
	}
	return f, nil
}

func (m *MockFailureService) ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error) {
	m.LastFilter = filter
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	out := make([]*models.FailureRecord, 0, len(m.Failures))
	for _, f := range m.Failures {
		out = append(out, f)
	}
	return out, nil
}

func (m *MockFailureService) Retry(ctx context.Context, id string) (*models.FailureRecord, error) {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, id)
	}
	return m.GetFailure(ctx, id)
}

func (m *MockFailureService) BatchRetry(ctx context.Context, req models.BatchRetryRequest) (*models.BatchRetrySummary, error) {
	if m.BatchRetryFunc != nil {
		return m.BatchRetryFunc(ctx, req)
	}
	return &models.BatchRetrySummary{Total: len(req.IDs), Skipped: len(req.IDs)}, nil
}

func (m *MockFailureService) Resolve(ctx context.Context, id, notes string) (*models.FailureRecord, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id, notes)
	}
	f, err := m.GetFailure(ctx, id)
	if err != nil {
		return nil, err
	}
	f.RetryStatus = models.RetryStatusResolved
	f.ResolutionNotes = notes
	return f, nil
}

func (m *MockFailureService) StartScheduler(ctx context.Context) {}

func (m *MockFailureService) StopScheduler() {}
