package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/service"
)

func TestUploadService_CreateUpload_SampleCSV(t *testing.T) {
	h := newTestHarness(t)
	upload := createSampleUpload(t, h)

	if upload.ID == "" {
		t.Fatal("upload should have an ID")
	}
	if upload.Status != models.UploadStatusInvalid {
		t.Errorf("Expected status invalid, got %s", upload.Status)
	}
	if upload.Environment != "sandbox" {
		t.Errorf("Expected environment sandbox, got %s", upload.Environment)
	}
	v := upload.Validation
	if v.TotalRows != 6 || v.ValidRows != 3 || v.InvalidRows != 3 {
		t.Errorf("Expected 6/3/3 rows, got %d/%d/%d", v.TotalRows, v.ValidRows, v.InvalidRows)
	}
	if len(v.RawRows) != 6 {
		t.Errorf("raw rows should be kept for editing, got %d", len(v.RawRows))
	}

	stored := h.uploadRepo.Get(upload.ID)
	if stored == nil {
		t.Fatal("upload should be stored")
	}
	if stored.Filename != "packages_sample.csv" {
		t.Errorf("Expected filename to be stored, got %q", stored.Filename)
	}
}

func TestUploadService_CreateUpload_EmptyFile(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Upload.CreateUpload(context.Background(), "empty.csv", strings.NewReader(""))
	if !errors.Is(err, service.ErrInvalidFile) {
		t.Fatalf("Expected ErrInvalidFile, got %v", err)
	}
	if len(h.uploadRepo.Uploads) != 0 {
		t.Error("nothing should be stored for an unreadable file")
	}
}

func TestUploadService_CreateUpload_MissingColumns(t *testing.T) {
	h := newTestHarness(t)

	upload, err := h.services.Upload.CreateUpload(context.Background(), "short.csv",
		strings.NewReader("external_id,weight\nPKG-1,1.0\n"))
	if err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}
	if upload.Status != models.UploadStatusInvalid {
		t.Errorf("Expected status invalid, got %s", upload.Status)
	}
	if len(upload.Validation.MissingColumns) == 0 {
		t.Error("missing columns should be reported")
	}
}

func TestUploadService_UpdateRows_FixesInvalidRows(t *testing.T) {
	h := newTestHarness(t)
	upload := createSampleUpload(t, h)

	edits := map[int]models.RawRow{
		3: {"product_url": "https://www.amazon.com/dp/B000000003"},
		4: {"product_hs_code": "8471.60.70", "weight": "2.5"},
		6: {"destination_country": "MEX"},
	}
	updated, err := h.services.Upload.UpdateRows(context.Background(), upload.ID, edits)
	if err != nil {
		t.Fatalf("UpdateRows failed: %v", err)
	}

	if updated.Status != models.UploadStatusValidated {
		t.Errorf("Expected status validated, got %s", updated.Status)
	}
	if updated.Validation.ValidRows != 6 || updated.Validation.InvalidRows != 0 {
		t.Errorf("Expected all 6 rows valid, got %d valid %d invalid",
			updated.Validation.ValidRows, updated.Validation.InvalidRows)
	}
	if got := updated.Validation.RawRows[5]["destination_country"]; got != "MEX" {
		t.Errorf("edit should be merged into the raw row, got %q", got)
	}
	if got := updated.Validation.RawRows[5]["external_id"]; got != "PKG-1006" {
		t.Errorf("unedited cells should be kept, got %q", got)
	}

	stored := h.uploadRepo.Get(upload.ID)
	if stored.Status != models.UploadStatusValidated {
		t.Errorf("stored status should be validated, got %s", stored.Status)
	}
}

func TestUploadService_UpdateRows_PartialFixStaysInvalid(t *testing.T) {
	h := newTestHarness(t)
	upload := createSampleUpload(t, h)

	updated, err := h.services.Upload.UpdateRows(context.Background(), upload.ID, map[int]models.RawRow{
		6: {"destination_country": "MEX"},
	})
	if err != nil {
		t.Fatalf("UpdateRows failed: %v", err)
	}
	if updated.Status != models.UploadStatusInvalid {
		t.Errorf("Expected status invalid, got %s", updated.Status)
	}
	if updated.Validation.ValidRows != 4 {
		t.Errorf("Expected 4 valid rows, got %d", updated.Validation.ValidRows)
	}
}

func TestUploadService_UpdateRows_Errors(t *testing.T) {
	h := newTestHarness(t)
	upload := createSampleUpload(t, h)
	ctx := context.Background()

	if _, err := h.services.Upload.UpdateRows(ctx, "missing", nil); !errors.Is(err, service.ErrUploadNotFound) {
		t.Errorf("Expected ErrUploadNotFound, got %v", err)
	}

	for _, row := range []int{0, 7, -1} {
		_, err := h.services.Upload.UpdateRows(ctx, upload.ID, map[int]models.RawRow{row: {"weight": "1"}})
		if !errors.Is(err, service.ErrInvalidRowNumber) {
			t.Errorf("row %d: Expected ErrInvalidRowNumber, got %v", row, err)
		}
	}

	h.uploadRepo.Uploads[upload.ID].Status = models.UploadStatusCompleted
	_, err := h.services.Upload.UpdateRows(ctx, upload.ID, map[int]models.RawRow{1: {"weight": "1"}})
	if !errors.Is(err, service.ErrUploadLocked) {
		t.Errorf("Expected ErrUploadLocked, got %v", err)
	}
}

func TestUploadService_GetUploadAndResults(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if _, err := h.services.Upload.GetUpload(ctx, "missing"); !errors.Is(err, service.ErrUploadNotFound) {
		t.Errorf("Expected ErrUploadNotFound, got %v", err)
	}
	if _, err := h.services.Upload.GetResults(ctx, "missing"); !errors.Is(err, service.ErrUploadNotFound) {
		t.Errorf("Expected ErrUploadNotFound, got %v", err)
	}

	upload := createSampleUpload(t, h)
	results, err := h.services.Upload.GetResults(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetResults failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty non-nil results, got %v", results)
	}
}
