package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/mocks"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/service"
	"github.com/customs-screening-pipeline/internal/validation"
	"github.com/rs/zerolog"
)

// testdataPath returns the absolute path to a file in the testdata directory.
func testdataPath(t testing.TB, filename string) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(currentFile)))
	path := filepath.Join(projectRoot, "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("testdata file not found: %s", path)
	}
	return path
}

type testHarness struct {
	services    *service.Services
	cfg         *config.Config
	api         *mocks.MockScreeningAPI
	fetcher     *mocks.MockFetcher
	uploadRepo  *mocks.MockUploadRepository
	resultRepo  *mocks.MockPackageResultRepository
	failureRepo *mocks.MockFailureRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Screening: config.ScreeningConfig{
			Environment: "sandbox",
			Timeout:     time.Second,
			Concurrency: 1,
		},
		Retry: config.RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         time.Minute,
			MaxDelay:          time.Hour,
			Concurrency:       4,
			ImplicitScope:     config.RetryScopeUpload,
			SchedulerInterval: 10 * time.Millisecond,
			SchedulerBatch:    10,
			StaleAfter:        15 * time.Minute,
		},
	}
}

func newTestHarness(t testing.TB, configure ...func(*config.Config)) *testHarness {
	t.Helper()

	repos, uploadRepo, resultRepo, failureRepo := mocks.NewRepositories()
	api := mocks.NewMockScreeningAPI()
	fetcher := mocks.NewMockFetcher()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	services := service.NewServices(repos, api, fetcher, validation.DefaultCatalog(), cfg, zerolog.Nop())

	return &testHarness{
		services:    services,
		cfg:         cfg,
		api:         api,
		fetcher:     fetcher,
		uploadRepo:  uploadRepo,
		resultRepo:  resultRepo,
		failureRepo: failureRepo,
	}
}

// createSampleUpload stores the sample file: rows 1, 2 and 5 are valid.
func createSampleUpload(t *testing.T, h *testHarness) *models.Upload {
	t.Helper()
	f, err := os.Open(testdataPath(t, "packages_sample.csv"))
	if err != nil {
		t.Fatalf("open sample: %v", err)
	}
	defer f.Close()

	upload, err := h.services.Upload.CreateUpload(context.Background(), "packages_sample.csv", f)
	if err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}
	return upload
}

// validRows builds n valid row results numbered from 1
func validRows(n int) []models.RowValidationResult {
	rows := make([]models.RowValidationResult, n)
	for i := range rows {
		rows[i] = models.RowValidationResult{
			RowNumber: i + 1,
			IsValid:   true,
			SanitizedData: &models.PackageRecord{
				ExternalID: fmt.Sprintf("PKG-%03d", i+1),
				PlatformID: "amazon",
				Products:   []models.Product{{SKU: "SKU-1", Name: "Mouse", Quantity: 1}},
			},
		}
	}
	return rows
}

// storeUpload puts an upload with the given rows straight into the repository
func storeUpload(h *testHarness, id string, rows []models.RowValidationResult) {
	now := time.Now().UTC()
	h.uploadRepo.Create(context.Background(), &models.Upload{
		ID:     id,
		Status: models.UploadStatusValidated,
		Validation: &models.FileValidationResult{
			IsValid:   true,
			TotalRows: len(rows),
			ValidRows: len(rows),
			Results:   rows,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
