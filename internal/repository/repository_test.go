package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/customs-screening-pipeline/internal/mocks"
	"github.com/customs-screening-pipeline/internal/models"
)

func TestMockUploadRepository_MarkProcessing(t *testing.T) {
	repo := mocks.NewMockUploadRepository()
	ctx := context.Background()

	repo.Create(ctx, &models.Upload{ID: "upload-1", Status: models.UploadStatusValidated})
	repo.Create(ctx, &models.Upload{ID: "upload-2", Status: models.UploadStatusCompleted})

	// First claim should succeed
	marked, err := repo.MarkProcessing(ctx, "upload-1")
	if err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if !marked {
		t.Error("first claim should succeed")
	}

	// Second claim should fail (already processing)
	marked, _ = repo.MarkProcessing(ctx, "upload-1")
	if marked {
		t.Error("second claim should fail")
	}

	if marked, _ := repo.MarkProcessing(ctx, "upload-2"); marked {
		t.Error("completed upload should not be claimed")
	}
	if marked, _ := repo.MarkProcessing(ctx, "missing"); marked {
		t.Error("missing upload should not be claimed")
	}
}

func TestMockUploadRepository_ReplaceValidation(t *testing.T) {
	repo := mocks.NewMockUploadRepository()
	ctx := context.Background()

	repo.Create(ctx, &models.Upload{ID: "upload-1", Status: models.UploadStatusInvalid})

	replaced, err := repo.ReplaceValidation(ctx, &models.Upload{
		ID:         "upload-1",
		Status:     models.UploadStatusValidated,
		Validation: &models.FileValidationResult{IsValid: true, TotalRows: 2, ValidRows: 2},
	})
	if err != nil {
		t.Fatalf("ReplaceValidation failed: %v", err)
	}
	if !replaced {
		t.Fatal("editable upload should be replaced")
	}

	stored, _ := repo.GetByID(ctx, "upload-1")
	if stored.Status != models.UploadStatusValidated || stored.Validation.ValidRows != 2 {
		t.Errorf("unexpected stored upload: %+v", stored)
	}

	repo.MarkProcessing(ctx, "upload-1")
	replaced, _ = repo.ReplaceValidation(ctx, &models.Upload{ID: "upload-1", Status: models.UploadStatusInvalid})
	if replaced {
		t.Error("processing upload should not be replaced")
	}
}

func TestMockPackageResultRepository_ListByUpload(t *testing.T) {
	repo := mocks.NewMockPackageResultRepository()
	ctx := context.Background()

	for _, row := range []int{3, 1, 2} {
		repo.Create(ctx, &models.PackageResult{ID: fmt.Sprintf("r-%d", row), UploadID: "upload-1", RowNumber: row})
	}
	repo.Create(ctx, &models.PackageResult{ID: "other", UploadID: "upload-2", RowNumber: 1})

	results, err := repo.ListByUpload(ctx, "upload-1")
	if err != nil {
		t.Fatalf("ListByUpload failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.RowNumber != i+1 {
			t.Errorf("Expected row %d at %d, got %d", i+1, i, r.RowNumber)
		}
	}

	empty, _ := repo.ListByUpload(ctx, "none")
	if empty == nil || len(empty) != 0 {
		t.Error("Expected empty non-nil slice")
	}
}

func TestMockFailureRepository_ListDue(t *testing.T) {
	repo := mocks.NewMockFailureRepository()
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	repo.Create(ctx, &models.FailureRecord{ID: "due", RetryStatus: models.RetryStatusPending, MaxRetries: 3, NextRetryAt: &past})
	repo.Create(ctx, &models.FailureRecord{ID: "later", RetryStatus: models.RetryStatusPending, MaxRetries: 3, NextRetryAt: &future})
	repo.Create(ctx, &models.FailureRecord{ID: "spent", RetryStatus: models.RetryStatusPending, RetryCount: 3, MaxRetries: 3, NextRetryAt: &past})
	repo.Create(ctx, &models.FailureRecord{ID: "manual", RetryStatus: models.RetryStatusManualRequired, MaxRetries: 3})

	due, err := repo.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Errorf("Expected only the due record, got %d records", len(due))
	}
}

func TestMockFailureRepository_ClaimForRetry(t *testing.T) {
	repo := mocks.NewMockFailureRepository()
	ctx := context.Background()
	now := time.Now()

	repo.Create(ctx, &models.FailureRecord{ID: "f-1", RetryStatus: models.RetryStatusPending, MaxRetries: 3})
	repo.Create(ctx, &models.FailureRecord{ID: "f-2", RetryStatus: models.RetryStatusExhausted, RetryCount: 3, MaxRetries: 3})

	claimed, err := repo.ClaimForRetry(ctx, "f-1", now)
	if err != nil {
		t.Fatalf("ClaimForRetry failed: %v", err)
	}
	if !claimed {
		t.Error("pending record should be claimed")
	}
	if claimed, _ := repo.ClaimForRetry(ctx, "f-1", now); claimed {
		t.Error("record already retrying should not be claimed twice")
	}
	if claimed, _ := repo.ClaimForRetry(ctx, "f-2", now); claimed {
		t.Error("exhausted record should not be claimed")
	}

	stored, _ := repo.GetByID(ctx, "f-1")
	if stored.RetryStatus != models.RetryStatusRetrying {
		t.Errorf("Expected status retrying, got %s", stored.RetryStatus)
	}
}

func TestMockFailureRepository_Resolve(t *testing.T) {
	repo := mocks.NewMockFailureRepository()
	ctx := context.Background()
	now := time.Now()
	next := now.Add(time.Minute)

	repo.Create(ctx, &models.FailureRecord{ID: "f-1", RetryStatus: models.RetryStatusPending, NextRetryAt: &next})
	repo.Create(ctx, &models.FailureRecord{ID: "f-2", RetryStatus: models.RetryStatusSuccess})
	repo.Put(&models.FailureRecord{ID: "f-3", RetryStatus: models.RetryStatusRetrying, UpdatedAt: now.Add(-time.Minute)})
	repo.Put(&models.FailureRecord{ID: "f-4", RetryStatus: models.RetryStatusRetrying, UpdatedAt: now.Add(-time.Hour)})
	staleBefore := now.Add(-30 * time.Minute)

	resolved, err := repo.Resolve(ctx, "f-1", "handled by broker", now, staleBefore)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !resolved {
		t.Fatal("pending record should resolve")
	}
	stored, _ := repo.GetByID(ctx, "f-1")
	if stored.RetryStatus != models.RetryStatusResolved || stored.NextRetryAt != nil || stored.ResolutionNotes != "handled by broker" {
		t.Errorf("unexpected resolved record: %+v", stored)
	}

	if resolved, _ := repo.Resolve(ctx, "f-2", "n/a", now, staleBefore); resolved {
		t.Error("successful record should not resolve")
	}
	if resolved, _ := repo.Resolve(ctx, "f-3", "n/a", now, staleBefore); resolved {
		t.Error("recently claimed record should not resolve")
	}
	if resolved, _ := repo.Resolve(ctx, "f-4", "abandoned", now, staleBefore); !resolved {
		t.Error("stale retrying record should resolve")
	}
}

func TestMockFailureRepository_ListFilter(t *testing.T) {
	repo := mocks.NewMockFailureRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		status := models.RetryStatusPending
		if i%2 == 1 {
			status = models.RetryStatusExhausted
		}
		repo.Create(ctx, &models.FailureRecord{
			ID:          fmt.Sprintf("f-%d", i),
			UploadID:    "upload-1",
			Environment: "sandbox",
			RetryStatus: status,
		})
	}

	tests := []struct {
		name   string
		filter models.FailureFilter
		want   int
	}{
		{"all", models.FailureFilter{}, 5},
		{"pending", models.FailureFilter{Statuses: []models.RetryStatus{models.RetryStatusPending}}, 3},
		{"upload", models.FailureFilter{UploadID: "upload-2"}, 0},
		{"environment", models.FailureFilter{Environment: "sandbox"}, 5},
		{"limit", models.FailureFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("Expected %d records, got %d", tt.want, len(list))
			}
		})
	}

	// newest first
	list, _ := repo.List(ctx, models.FailureFilter{Limit: 1})
	if list[0].ID != "f-4" {
		t.Errorf("Expected newest record first, got %s", list[0].ID)
	}
}
