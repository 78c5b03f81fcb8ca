package models

import (
	"encoding/json"
	"time"
)

// UploadStatus represents the lifecycle of an uploaded file
type UploadStatus string

const (
	UploadStatusValidated           UploadStatus = "validated"
	UploadStatusInvalid             UploadStatus = "invalid"
	UploadStatusProcessing          UploadStatus = "processing"
	UploadStatusCompleted           UploadStatus = "completed"
	UploadStatusCompletedWithErrors UploadStatus = "completed_with_errors"
	UploadStatusCancelled           UploadStatus = "cancelled"
)

// Editable reports whether rows of an upload in this status may still change
func (s UploadStatus) Editable() bool {
	return s == UploadStatusValidated || s == UploadStatusInvalid
}

// Upload is one uploaded CSV file with its validation and submission state
type Upload struct {
	ID          string                `json:"upload_id" db:"id"`
	Filename    string                `json:"filename" db:"filename"`
	Status      UploadStatus          `json:"status" db:"status"`
	Environment string                `json:"environment" db:"environment"`
	Encoding    string                `json:"encoding,omitempty" db:"encoding"`
	Columns     []string              `json:"columns" db:"columns"`
	Validation  *FileValidationResult `json:"validation,omitempty" db:"validation"`
	Summary     *BatchSummary         `json:"summary,omitempty" db:"summary"`
	CreatedAt   time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at" db:"updated_at"`
	SubmittedAt *time.Time            `json:"submitted_at,omitempty" db:"submitted_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty" db:"completed_at"`
}

// SubmissionStatus is the per-row outcome of a screening call
type SubmissionStatus string

const (
	SubmissionAccepted      SubmissionStatus = "accepted"
	SubmissionRejected      SubmissionStatus = "rejected"
	SubmissionInconclusive  SubmissionStatus = "inconclusive"
	SubmissionAuditRequired SubmissionStatus = "audit_required"
	SubmissionFailed        SubmissionStatus = "failed"
)

// Screening codes returned by the screening API
const (
	ScreeningCodeAccepted     = 1
	ScreeningCodeRejected     = 2
	ScreeningCodeInconclusive = 3
	ScreeningCodeAudit        = 4
)

// StatusForCode maps a screening code to a submission status
func StatusForCode(code int) (SubmissionStatus, bool) {
	switch code {
	case ScreeningCodeAccepted:
		return SubmissionAccepted, true
	case ScreeningCodeRejected:
		return SubmissionRejected, true
	case ScreeningCodeInconclusive:
		return SubmissionInconclusive, true
	case ScreeningCodeAudit:
		return SubmissionAuditRequired, true
	}
	return "", false
}

// SubmissionResult is the outcome of submitting one row
type SubmissionResult struct {
	RowNumber     int              `json:"row_number"`
	ExternalID    string           `json:"external_id"`
	Status        SubmissionStatus `json:"status"`
	ScreeningCode int              `json:"screening_code,omitempty"`
	ScreeningID   string           `json:"screening_id,omitempty"`
	Error         string           `json:"error,omitempty"`
	FailureID     string           `json:"failure_id,omitempty"`
}

// BatchSummary aggregates one processing run of an upload
type BatchSummary struct {
	Total         int                `json:"total"`
	Processed     int                `json:"processed"`
	Accepted      int                `json:"accepted"`
	Rejected      int                `json:"rejected"`
	Inconclusive  int                `json:"inconclusive"`
	AuditRequired int                `json:"audit_required"`
	Failed        int                `json:"failed"`
	Results       []SubmissionResult `json:"results"`
}

// Add counts one row outcome
func (b *BatchSummary) Add(res SubmissionResult) {
	b.Processed++
	switch res.Status {
	case SubmissionAccepted:
		b.Accepted++
	case SubmissionRejected:
		b.Rejected++
	case SubmissionInconclusive:
		b.Inconclusive++
	case SubmissionAuditRequired:
		b.AuditRequired++
	default:
		b.Failed++
	}
	b.Results = append(b.Results, res)
}

// PackageResult is the persisted screening verdict for one package
type PackageResult struct {
	ID          string           `json:"id" db:"id"`
	UploadID    string           `json:"upload_id,omitempty" db:"upload_id"`
	RowNumber   int              `json:"row_number" db:"row_number"`
	ExternalID  string           `json:"external_id" db:"external_id"`
	ScreeningID string           `json:"screening_id,omitempty" db:"screening_id"`
	Code        int              `json:"code" db:"code"`
	Status      SubmissionStatus `json:"status" db:"status"`
	LabelQRCode string           `json:"label_qr_code,omitempty" db:"label_qr_code"`
	RawResponse json.RawMessage  `json:"raw_response,omitempty" db:"raw_response"`
	Environment string           `json:"environment" db:"environment"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
