package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/repository"
)

// NewRepositories returns in-memory repositories wired together
func NewRepositories() (*repository.Repositories, *MockUploadRepository, *MockPackageResultRepository, *MockFailureRepository) {
	uploads := NewMockUploadRepository()
	results := NewMockPackageResultRepository()
	failures := NewMockFailureRepository()
	return &repository.Repositories{
		Upload:        uploads,
		PackageResult: results,
		Failure:       failures,
	}, uploads, results, failures
}

// MockUploadRepository is an in-memory UploadRepository
type MockUploadRepository struct {
	mu          sync.Mutex
	Uploads     map[string]*models.Upload
	CreateError error
	UpdateError error
	UpdateCalls int
}

// Verify interface compliance
var _ repository.UploadRepository = (*MockUploadRepository)(nil)

func NewMockUploadRepository() *MockUploadRepository {
	return &MockUploadRepository{Uploads: make(map[string]*models.Upload)}
}

func (m *MockUploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *upload
	m.Uploads[upload.ID] = &cp
	return nil
}

func (m *MockUploadRepository) Update(ctx context.Context, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	cp := *upload
	m.Uploads[upload.ID] = &cp
	return nil
}

func (m *MockUploadRepository) GetByID(ctx context.Context, id string) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Uploads[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MockUploadRepository) ReplaceValidation(ctx context.Context, upload *models.Upload) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Uploads[upload.ID]
	if !ok || !u.Status.Editable() {
		return false, nil
	}
	u.Validation = upload.Validation
	u.Status = upload.Status
	u.UpdatedAt = upload.UpdatedAt
	return true, nil
}

func (m *MockUploadRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Uploads[id]
	if !ok || !u.Status.Editable() {
		return false, nil
	}
	u.Status = models.UploadStatusProcessing
	return true, nil
}

// Get returns the stored upload without copying, for assertions
func (m *MockUploadRepository) Get(id string) *models.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Uploads[id]
}

// MockPackageResultRepository is an in-memory PackageResultRepository
type MockPackageResultRepository struct {
	mu          sync.Mutex
	Results     []*models.PackageResult
	CreateError error
}

// Verify interface compliance
var _ repository.PackageResultRepository = (*MockPackageResultRepository)(nil)

func NewMockPackageResultRepository() *MockPackageResultRepository {
	return &MockPackageResultRepository{}
}

func (m *MockPackageResultRepository) Create(ctx context.Context, result *models.PackageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *result
	m.Results = append(m.Results, &cp)
	return nil
}

func (m *MockPackageResultRepository) ListByUpload(ctx context.Context, uploadID string) ([]*models.PackageResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PackageResult, 0)
	for _, r := range m.Results {
		if r.UploadID == uploadID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out, nil
}

// Count returns the number of stored results
func (m *MockPackageResultRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Results)
}

// MockFailureRepository is an in-memory FailureRepository with the same
// conditional claim and resolve semantics as the SQL implementation
type MockFailureRepository struct {
	mu              sync.Mutex
	Failures        map[string]*models.FailureRecord
	order           []string
	CreateError     error
	UpdateError     error
	UpdateErrorOnce error // fails the next Update only
	ListError       error
	ClaimCalls      int
}

// Verify interface compliance
var _ repository.FailureRepository = (*MockFailureRepository)(nil)

func NewMockFailureRepository() *MockFailureRepository {
	return &MockFailureRepository{Failures: make(map[string]*models.FailureRecord)}
}

func (m *MockFailureRepository) Create(ctx context.Context, f *models.FailureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *f
	m.Failures[f.ID] = &cp
	m.order = append(m.order, f.ID)
	return nil
}

func (m *MockFailureRepository) GetByID(ctx context.Context, id string) (*models.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Failures[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

// List returns matching records newest first
func (m *MockFailureRepository) List(ctx context.Context, filter models.FailureFilter) ([]*models.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]*models.FailureRecord, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		f := m.Failures[m.order[i]]
		if !matches(f, filter) {
			continue
		}
		cp := *f
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(f *models.FailureRecord, filter models.FailureFilter) bool {
	if filter.UploadID != "" && f.UploadID != filter.UploadID {
		return false
	}
	if filter.Environment != "" && f.Environment != filter.Environment {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, s := range filter.Statuses {
		if f.RetryStatus == s {
			return true
		}
	}
	return false
}

func (m *MockFailureRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]*models.FailureRecord, 0)
	for _, id := range m.order {
		f := m.Failures[id]
		if f.RetryStatus != models.RetryStatusPending || f.RetryCount >= f.MaxRetries {
			continue
		}
		if f.NextRetryAt != nil && f.NextRetryAt.After(now) {
			continue
		}
		cp := *f
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockFailureRepository) ClaimForRetry(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimCalls++
	f, ok := m.Failures[id]
	if !ok || !f.RetryStatus.Retriable() || f.RetryCount >= f.MaxRetries {
		return false, nil
	}
	f.RetryStatus = models.RetryStatusRetrying
	f.UpdatedAt = now
	return true, nil
}

func (m *MockFailureRepository) Update(ctx context.Context, f *models.FailureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErrorOnce != nil {
		err := m.UpdateErrorOnce
		m.UpdateErrorOnce = nil
		return err
	}
	if m.UpdateError != nil {
		return m.UpdateError
	}
	existing, ok := m.Failures[f.ID]
	if !ok {
		return nil
	}
	cp := *f
	cp.CreatedAt = existing.CreatedAt
	m.Failures[f.ID] = &cp
	return nil
}

func (m *MockFailureRepository) Resolve(ctx context.Context, id, notes string, now, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Failures[id]
	if !ok {
		return false, nil
	}
	switch f.RetryStatus {
	case models.RetryStatusPending, models.RetryStatusManualRequired, models.RetryStatusExhausted:
	case models.RetryStatusRetrying:
		if f.UpdatedAt.After(staleBefore) {
			return false, nil
		}
	default:
		return false, nil
	}
	f.RetryStatus = models.RetryStatusResolved
	f.ResolutionNotes = notes
	f.ResolvedAt = &now
	f.NextRetryAt = nil
	f.UpdatedAt = now
	return true, nil
}

// Put stores a record as is, for test setup
func (m *MockFailureRepository) Put(f *models.FailureRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	if _, ok := m.Failures[f.ID]; !ok {
		m.order = append(m.order, f.ID)
	}
	m.Failures[f.ID] = &cp
}

// Get returns a copy of a stored record, or nil
func (m *MockFailureRepository) Get(id string) *models.FailureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Failures[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

// All returns copies of every record in creation order
func (m *MockFailureRepository) All() []*models.FailureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.FailureRecord, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.Failures[id]
		out = append(out, &cp)
	}
	return out
}
