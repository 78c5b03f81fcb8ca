package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/customs-screening-pipeline/internal/media"
	"github.com/customs-screening-pipeline/internal/screening"
)

// MockScreeningAPI is a mock implementation of screening.API. Without
// ScreenFunc every package is accepted.
type MockScreeningAPI struct {
	mu          sync.Mutex
	ScreenFunc  func(ctx context.Context, req *screening.ScreeningRequest) (*screening.ScreeningResult, error)
	DoFunc      func(ctx context.Context, method, endpoint string, body json.RawMessage) (*screening.Envelope, error)
	Platforms   json.RawMessage
	Screened    []*screening.ScreeningRequest
	ScreenCalls int
	DoCalls     int
	OpaqueCalls map[string]int
}

// Verify interface compliance
var _ screening.API = (*MockScreeningAPI)(nil)

func NewMockScreeningAPI() *MockScreeningAPI {
	return &MockScreeningAPI{OpaqueCalls: make(map[string]int)}
}

func (m *MockScreeningAPI) ScreenPackage(ctx context.Context, req *screening.ScreeningRequest) (*screening.ScreeningResult, error) {
	m.mu.Lock()
	m.ScreenCalls++
	m.Screened = append(m.Screened, req)
	fn := m.ScreenFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &screening.ScreeningResult{
		PackageID:  "pkg-" + req.ExternalID,
		ExternalID: req.ExternalID,
		Code:       1,
		Raw:        json.RawMessage(`{"success":true}`),
	}, nil
}

func (m *MockScreeningAPI) Do(ctx context.Context, method, endpoint string, body json.RawMessage) (*screening.Envelope, error) {
	m.mu.Lock()
	m.DoCalls++
	fn := m.DoFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, method, endpoint, body)
	}
	return &screening.Envelope{
		Success: true,
		Data:    json.RawMessage(`{"packageId":"pkg-retried","code":1}`),
		Raw:     json.RawMessage(`{"success":true,"data":{"packageId":"pkg-retried","code":1}}`),
	}, nil
}

func (m *MockScreeningAPI) opaque(name string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpaqueCalls[name]++
	return json.RawMessage(`{}`), nil
}

func (m *MockScreeningAPI) RegisterShipment(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return m.opaque("register")
}

func (m *MockScreeningAPI) VerifyShipment(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return m.opaque("verify")
}

func (m *MockScreeningAPI) GetPlatforms(ctx context.Context) (json.RawMessage, error) {
	if m.Platforms != nil {
		m.opaque("platforms")
		return m.Platforms, nil
	}
	return m.opaque("platforms")
}

func (m *MockScreeningAPI) PayDuty(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return m.opaque("pay")
}

func (m *MockScreeningAPI) SubmitAudit(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	return m.opaque("audit")
}

// Calls returns the number of ScreenPackage and Do calls
func (m *MockScreeningAPI) Calls() (screen, do int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ScreenCalls, m.DoCalls
}

// MockFetcher is a mock implementation of media.Fetcher. References listed
// in Images resolve to their value; everything else fails.
type MockFetcher struct {
	mu     sync.Mutex
	Images map[string]string
	Calls  int
}

// Verify interface compliance
var _ media.Fetcher = (*MockFetcher)(nil)

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{Images: make(map[string]string)}
}

func (m *MockFetcher) FetchAndEncode(ctx context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if data, ok := m.Images[ref]; ok {
		return data, nil
	}
	return "", errors.New("image not found")
}
